package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder collects the metrics of one run. Nothing is served: the values
// are flushed once at exit to a Pushgateway and/or a node-exporter textfile.
type Recorder struct {
	registry    *prometheus.Registry
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	inputBytes  *prometheus.CounterVec
	outputBytes prometheus.Counter
	outputSize  prometheus.Gauge
	pixelsTotal prometheus.Counter
	lastSuccess prometheus.Gauge
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avatarframe_runs_total",
			Help: "Total compositor runs by final status and cache outcome.",
		}, []string{"status", "cache"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "avatarframe_run_duration_seconds",
			Help:    "Wall time of each compositor run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		inputBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avatarframe_input_bytes_total",
			Help: "Bytes read for avatar and frame inputs.",
		}, []string{"role"}),
		outputBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avatarframe_output_bytes_total",
			Help: "Bytes written for composed outputs.",
		}),
		outputSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avatarframe_output_size_pixels",
			Help: "Side length of the last composed output.",
		}),
		pixelsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avatarframe_pixels_processed_total",
			Help: "Pixels of composed output produced.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avatarframe_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
	}

	registry.MustRegister(
		r.runsTotal,
		r.runDuration,
		r.inputBytes,
		r.outputBytes,
		r.outputSize,
		r.pixelsTotal,
		r.lastSuccess,
	)
	return r
}

type Run struct {
	Success     bool
	CacheHit    bool
	Duration    time.Duration
	AvatarBytes int
	FrameBytes  int
	OutputBytes int
	OutputSize  int
}

func (r *Recorder) Observe(run Run) {
	status := "failed"
	if run.Success {
		status = "succeeded"
	}
	cache := "miss"
	if run.CacheHit {
		cache = "hit"
	}

	r.runsTotal.WithLabelValues(status, cache).Inc()
	r.runDuration.WithLabelValues(status).Observe(run.Duration.Seconds())
	r.inputBytes.WithLabelValues("avatar").Add(float64(run.AvatarBytes))
	r.inputBytes.WithLabelValues("frame").Add(float64(run.FrameBytes))

	if !run.Success {
		return
	}
	r.outputBytes.Add(float64(run.OutputBytes))
	r.outputSize.Set(float64(run.OutputSize))
	r.pixelsTotal.Add(float64(run.OutputSize) * float64(run.OutputSize))
	r.lastSuccess.SetToCurrentTime()
}

type FlushConfig struct {
	PushgatewayURL string
	Job            string
	Instance       string
	TextfilePath   string
}

// Flush pushes to the Pushgateway and writes the textfile, whichever are
// configured. Both are attempted even if the first fails.
func (r *Recorder) Flush(ctx context.Context, cfg FlushConfig) error {
	var errs []string

	if url := strings.TrimSpace(cfg.PushgatewayURL); url != "" {
		job := cfg.Job
		if job == "" {
			job = "avatarframe"
		}
		pusher := push.New(url, job).Gatherer(r.registry)
		if cfg.Instance != "" {
			pusher = pusher.Grouping("instance", cfg.Instance)
		}
		if err := pusher.PushContext(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("push to gateway: %v", err))
		}
	}

	if path := strings.TrimSpace(cfg.TextfilePath); path != "" {
		if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
			errs = append(errs, fmt.Sprintf("write textfile: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("flush metrics: %s", strings.Join(errs, "; "))
	}
	return nil
}
