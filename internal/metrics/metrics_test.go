package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFlushWritesTextfile(t *testing.T) {
	r := NewRecorder()
	r.Observe(Run{
		Success:     true,
		Duration:    120 * time.Millisecond,
		AvatarBytes: 1000,
		FrameBytes:  500,
		OutputBytes: 700,
		OutputSize:  600,
	})

	path := filepath.Join(t.TempDir(), "avatarframe.prom")
	if err := r.Flush(context.Background(), FlushConfig{TextfilePath: path}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`avatarframe_runs_total{cache="miss",status="succeeded"} 1`,
		`avatarframe_pixels_processed_total 360000`,
		`avatarframe_output_size_pixels 600`,
		`avatarframe_input_bytes_total{role="avatar"} 1000`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in textfile:\n%s", want, text)
		}
	}
}

func TestFlushPushesToGateway(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRecorder()
	r.Observe(Run{Success: false, Duration: time.Millisecond})

	if err := r.Flush(context.Background(), FlushConfig{PushgatewayURL: srv.URL, Job: "avatarframe-test"}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %s", gotMethod)
	}
	if gotPath != "/metrics/job/avatarframe-test" {
		t.Fatalf("unexpected push path %s", gotPath)
	}
}

func TestFlushGroupsByInstance(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRecorder()
	r.Observe(Run{Success: true, Duration: time.Millisecond, OutputSize: 10})

	err := r.Flush(context.Background(), FlushConfig{PushgatewayURL: srv.URL, Job: "avatarframe", Instance: "render-7"})
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if gotPath != "/metrics/job/avatarframe/instance/render-7" {
		t.Fatalf("unexpected push path %s", gotPath)
	}
}

func TestFlushNoopWithoutTargets(t *testing.T) {
	if err := NewRecorder().Flush(context.Background(), FlushConfig{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
