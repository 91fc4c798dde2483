package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/avatarframe/internal/cache"
	"github.com/dunamismax/avatarframe/internal/compositor"
	"github.com/dunamismax/avatarframe/internal/config"
	"github.com/dunamismax/avatarframe/internal/domain"
	"github.com/dunamismax/avatarframe/internal/metrics"
	"github.com/dunamismax/avatarframe/internal/runner"
	"github.com/dunamismax/avatarframe/internal/storage"
	"github.com/dunamismax/avatarframe/internal/store"
	"github.com/dunamismax/avatarframe/internal/telemetry"
	"github.com/dunamismax/avatarframe/internal/webhook"
	"github.com/redis/go-redis/v9"
)

const usage = "usage: avatarframe <avatar_path> <frame_path> <output_path> [opacity]"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run returns 1 only for invocation errors. A failed composition still exits
// 0; callers read the final JSON line to learn the outcome.
func run(args []string, stdout io.Writer) int {
	logger := log.New(stdout, "[avatarframe] ", log.LstdFlags|log.Lmsgprefix)

	if len(args) < 3 {
		fmt.Fprintln(stdout, usage)
		return 1
	}

	opacity := domain.DefaultOpacity
	if len(args) > 3 {
		parsed, clamped, err := domain.ParseOpacity(args[3])
		if err != nil {
			fmt.Fprintln(stdout, err)
			fmt.Fprintln(stdout, usage)
			return 1
		}
		if clamped {
			logger.Printf("opacity %s out of range, clamped to %s", args[3], parsed)
		}
		opacity = parsed
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "avatarframe",
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Printf("tracing disabled err=%v", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	if err := compositor.Startup(); err != nil {
		logger.Printf("image runtime startup failed err=%v", err)
		return writeStatus(stdout, logger, domain.NewStatus(false, ""))
	}
	defer compositor.Shutdown()

	deps := openDependencies(ctx, cfg, logger)

	processor, err := compositor.NewProcessor(logger, compositor.Options{
		MaxProcessSize: cfg.Compositor.MaxProcessSize,
		MaxOutputSize:  cfg.Compositor.MaxOutputSize,
		JPEGQuality:    cfg.Compositor.JPEGQuality,
	}, deps.objects, deps.cache)
	if err != nil {
		logger.Printf("initialize compositor failed err=%v", err)
		return finish(stdout, logger, deps, domain.NewStatus(false, ""))
	}

	recorder := metrics.NewRecorder()
	r := runner.New(logger, processor, runner.Options{
		WebhookClient: deps.webhook,
		WebhookURL:    cfg.Webhook.URL,
		UsageStore:    deps.usage,
		Metrics:       recorder,
	})

	status := r.Run(ctx, compositor.Request{
		AvatarPath: args[0],
		FramePath:  args[1],
		OutputPath: args[2],
		Opacity:    opacity,
	})

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := recorder.Flush(flushCtx, metrics.FlushConfig{
		PushgatewayURL: cfg.Metrics.PushgatewayURL,
		Job:            cfg.Metrics.Job,
		Instance:       cfg.Metrics.Instance,
		TextfilePath:   cfg.Metrics.TextfilePath,
	}); err != nil {
		logger.Printf("metrics flush failed err=%v", err)
	}
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Printf("tracing shutdown failed err=%v", err)
	}

	return finish(stdout, logger, deps, status)
}

// finish releases the backends before printing the status so that any close
// diagnostics land above the final JSON line.
func finish(stdout io.Writer, logger *log.Logger, deps *dependencies, status domain.Status) int {
	deps.close(logger)
	return writeStatus(stdout, logger, status)
}

func writeStatus(stdout io.Writer, logger *log.Logger, status domain.Status) int {
	if err := json.NewEncoder(stdout).Encode(status); err != nil {
		logger.Printf("write status failed err=%v", err)
	}
	return 0
}

type dependencies struct {
	objects *storage.Client
	cache   compositor.ResultCache
	usage   store.UsageStore
	webhook *webhook.Client
	closers []func() error
}

// openDependencies connects the optional backends. Each one that is not
// configured or cannot be reached is left out and the run continues.
func openDependencies(ctx context.Context, cfg config.Config, logger *log.Logger) *dependencies {
	deps := &dependencies{}

	if cfg.Storage.Enabled() {
		client, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Region:   cfg.Storage.Region,
			UseSSL:   cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Printf("object storage disabled err=%v", err)
		} else {
			deps.objects = client
		}
	}

	if cfg.Cache.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Printf("result cache disabled redis=%s err=%v", cfg.Cache.RedisAddr, err)
			_ = client.Close()
		} else if c, err := cache.NewRedisCache(client, cfg.Cache.TTL, cfg.Cache.KeyPrefix); err != nil {
			logger.Printf("result cache disabled err=%v", err)
			_ = client.Close()
		} else {
			deps.cache = c
			deps.closers = append(deps.closers, client.Close)
		}
	}

	if cfg.Database.DSN != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		usageStore, err := store.NewPostgresUsageStore(dbCtx, cfg.Database.DSN)
		cancel()
		if err != nil {
			logger.Printf("usage ledger disabled err=%v", err)
		} else {
			deps.usage = usageStore
			deps.closers = append(deps.closers, usageStore.Close)
		}
	}

	if cfg.Webhook.URL != "" {
		deps.webhook = webhook.NewClient(webhook.Config{
			SigningSecret:  cfg.Webhook.SigningSecret,
			Timeout:        cfg.Webhook.Timeout,
			MaxAttempts:    cfg.Webhook.MaxAttempts,
			InitialBackoff: cfg.Webhook.InitialBackoff,
			MaxBackoff:     cfg.Webhook.MaxBackoff,
		})
	}

	return deps
}

func (d *dependencies) close(logger *log.Logger) {
	for _, closeFn := range d.closers {
		if err := closeFn(); err != nil {
			logger.Printf("dependency close error: %v", err)
		}
	}
	d.closers = nil
}
