package runner

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/dunamismax/avatarframe/internal/compositor"
	"github.com/dunamismax/avatarframe/internal/domain"
	"github.com/dunamismax/avatarframe/internal/id"
	"github.com/dunamismax/avatarframe/internal/metrics"
	"github.com/dunamismax/avatarframe/internal/store"
	"github.com/dunamismax/avatarframe/internal/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type processor interface {
	Process(ctx context.Context, req compositor.Request) (compositor.Result, error)
}

type webhookSender interface {
	Deliver(ctx context.Context, endpoint string, ev webhook.Event) error
}

type Options struct {
	WebhookClient webhookSender
	WebhookURL    string
	UsageStore    store.UsageStore
	Metrics       *metrics.Recorder
}

// Runner executes one composition and turns its outcome into a Status.
// Usage, metrics and webhook side effects never change that outcome.
type Runner struct {
	logger        *log.Logger
	processor     processor
	webhookClient webhookSender
	webhookURL    string
	usageStore    store.UsageStore
	metrics       *metrics.Recorder
	tracer        trace.Tracer
	now           func() time.Time
}

func New(logger *log.Logger, p processor, opts Options) *Runner {
	return &Runner{
		logger:        logger,
		processor:     p,
		webhookClient: opts.WebhookClient,
		webhookURL:    opts.WebhookURL,
		usageStore:    opts.UsageStore,
		metrics:       opts.Metrics,
		tracer:        otel.Tracer("avatarframe/runner"),
		now:           time.Now,
	}
}

func (r *Runner) Run(ctx context.Context, req compositor.Request) domain.Status {
	startedAt := r.now()
	if req.RunID == "" {
		req.RunID = id.NewRun()
	}

	ctx, span := r.tracer.Start(ctx, "avatarframe.run")
	span.SetAttributes(
		attribute.String("run.id", req.RunID),
		attribute.String("run.avatar", req.AvatarPath),
		attribute.String("run.frame", req.FramePath),
		attribute.String("run.output", req.OutputPath),
		attribute.Float64("run.opacity", float64(req.Opacity)),
	)
	defer span.End()

	r.logger.Printf(
		"apply frame run_id=%s avatar=%s frame=%s output=%s opacity=%s",
		req.RunID,
		req.AvatarPath,
		req.FramePath,
		req.OutputPath,
		req.Opacity,
	)

	result, err := r.processor.Process(ctx, req)
	elapsed := r.now().Sub(startedAt)
	r.observe(result, err == nil, elapsed)

	if err != nil {
		kind := ErrorKind(err)
		r.logger.Printf("apply frame failed run_id=%s kind=%s err=%v", req.RunID, kind, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		r.notify(ctx, webhook.Event{
			Type:       webhook.EventFrameFailed,
			RunID:      req.RunID,
			AvatarPath: req.AvatarPath,
			FramePath:  req.FramePath,
			OccurredAt: r.now().UTC(),
			ErrorKind:  kind,
			Error:      err.Error(),
		})
		return domain.NewStatus(false, "")
	}

	r.logger.Printf(
		"apply frame succeeded run_id=%s output=%s size=%dx%d bytes=%d cache_hit=%t elapsed=%s",
		req.RunID,
		result.OutputPath,
		result.Stats.OutputSize,
		result.Stats.OutputSize,
		result.OutputBytes,
		result.CacheHit,
		elapsed.Round(time.Millisecond),
	)
	span.SetStatus(codes.Ok, "applied")

	r.recordUsage(ctx, req, result, elapsed)
	r.notify(ctx, webhook.Event{
		Type:        webhook.EventFrameApplied,
		RunID:       req.RunID,
		Success:     true,
		AvatarPath:  req.AvatarPath,
		FramePath:   req.FramePath,
		OccurredAt:  r.now().UTC(),
		OutputPath:  result.OutputPath,
		Format:      result.Format,
		OutputSize:  result.Stats.OutputSize,
		OutputBytes: result.OutputBytes,
		CacheHit:    result.CacheHit,
	})

	return domain.NewStatus(true, req.OutputPath)
}

// ErrorKind names the stage family an error came from.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, compositor.ErrDecode):
		return "decode"
	case errors.Is(err, compositor.ErrProcess):
		return "process"
	case errors.Is(err, compositor.ErrEncode):
		return "encode"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}

func (r *Runner) observe(result compositor.Result, success bool, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.Observe(metrics.Run{
		Success:     success,
		CacheHit:    result.CacheHit,
		Duration:    elapsed,
		AvatarBytes: result.AvatarBytes,
		FrameBytes:  result.FrameBytes,
		OutputBytes: result.OutputBytes,
		OutputSize:  result.Stats.OutputSize,
	})
}

func (r *Runner) recordUsage(ctx context.Context, req compositor.Request, result compositor.Result, elapsed time.Duration) {
	if r.usageStore == nil {
		return
	}

	computeTimeMS := elapsed.Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}

	usage := domain.UsageLog{
		RunID:         req.RunID,
		AvatarPath:    req.AvatarPath,
		FramePath:     req.FramePath,
		OutputPath:    result.OutputPath,
		Opacity:       req.Opacity,
		AvatarBytes:   int64(result.AvatarBytes),
		FrameBytes:    int64(result.FrameBytes),
		OutputBytes:   int64(result.OutputBytes),
		SquareSize:    result.Stats.SquareSize,
		OutputSize:    result.Stats.OutputSize,
		Pixels:        int64(result.Stats.OutputSize) * int64(result.Stats.OutputSize),
		ComputeTimeMS: computeTimeMS,
		CacheHit:      result.CacheHit,
		CreatedAt:     r.now().UTC(),
	}
	if err := r.usageStore.CreateUsageLog(ctx, usage); err != nil {
		r.logger.Printf("usage log write failed run_id=%s err=%v", req.RunID, err)
	}
}

func (r *Runner) notify(ctx context.Context, ev webhook.Event) {
	if r.webhookURL == "" || r.webhookClient == nil {
		return
	}
	if err := r.webhookClient.Deliver(ctx, r.webhookURL, ev); err != nil {
		r.logger.Printf("webhook delivery failed run_id=%s event=%s err=%v", ev.RunID, ev.Type, err)
	}
}
