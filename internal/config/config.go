package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Compositor CompositorConfig
	Storage    StorageConfig
	Cache      CacheConfig
	Database   DatabaseConfig
	Webhook    WebhookConfig
	Metrics    MetricsConfig
	Tracing    TracingConfig
}

type CompositorConfig struct {
	MaxProcessSize int
	MaxOutputSize  int
	JPEGQuality    int
}

// StorageConfig is only consulted for s3:// inputs and outputs.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	KeyPrefix     string
}

func (c CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}

type DatabaseConfig struct {
	DSN string
}

type WebhookConfig struct {
	URL            string
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type MetricsConfig struct {
	PushgatewayURL string
	Job            string
	Instance       string
	TextfilePath   string
}

type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	return Config{
		Compositor: CompositorConfig{
			MaxProcessSize: envInt("AVATARFRAME_MAX_PROCESS_SIZE", 1200),
			MaxOutputSize:  envInt("AVATARFRAME_MAX_OUTPUT_SIZE", 2000),
			JPEGQuality:    envInt("AVATARFRAME_JPEG_QUALITY", 90),
		},
		Storage: StorageConfig{
			Endpoint:  env("MINIO_ENDPOINT", ""),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Region:    env("MINIO_REGION", ""),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Cache: CacheConfig{
			RedisAddr:     env("REDIS_ADDR", ""),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			TTL:           envDuration("AVATARFRAME_CACHE_TTL", 24*time.Hour),
			KeyPrefix:     env("AVATARFRAME_CACHE_PREFIX", "avatarframe:result"),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Webhook: WebhookConfig{
			URL:            env("AVATARFRAME_WEBHOOK_URL", ""),
			SigningSecret:  env("AVATARFRAME_WEBHOOK_SECRET", ""),
			Timeout:        envDuration("AVATARFRAME_WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("AVATARFRAME_WEBHOOK_MAX_ATTEMPTS", 1),
			InitialBackoff: envDuration("AVATARFRAME_WEBHOOK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envDuration("AVATARFRAME_WEBHOOK_MAX_BACKOFF", 10*time.Second),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: env("AVATARFRAME_PUSHGATEWAY_URL", ""),
			Job:            env("AVATARFRAME_METRICS_JOB", "avatarframe"),
			Instance:       env("AVATARFRAME_METRICS_INSTANCE", ""),
			TextfilePath:   env("AVATARFRAME_METRICS_TEXTFILE", ""),
		},
		Tracing: TracingConfig{
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
