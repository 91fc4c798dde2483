package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dunamismax/avatarframe/internal/domain"
)

func TestRunRequiresThreeArguments(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"a.png", "f.png"}, &out); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(out.String(), "usage:") {
		t.Fatalf("expected usage message, got %q", out.String())
	}
}

func TestRunRejectsInvalidOpacity(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"a.png", "f.png", "o.png", "half"}, &out); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestRunComposesAndPrintsStatus(t *testing.T) {
	isolateEnv(t)

	tmp := t.TempDir()
	avatarPath := filepath.Join(tmp, "avatar.png")
	framePath := filepath.Join(tmp, "frame.png")
	outputPath := filepath.Join(tmp, "result.png")
	writePNG(t, avatarPath, 800, 600, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	writePNG(t, framePath, 500, 500, color.NRGBA{R: 0, G: 0, B: 255, A: 255})

	var out bytes.Buffer
	if code := run([]string{avatarPath, framePath, outputPath, "0.8"}, &out); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}

	status := lastStatus(t, out.String())
	if !status.Success || status.OutputPath == nil || *status.OutputPath != outputPath {
		t.Fatalf("unexpected status %+v", status)
	}

	f, err := os.Open(outputPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 600 || cfg.Height != 600 {
		t.Fatalf("expected 600x600 output, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRunMissingAvatarReportsFailure(t *testing.T) {
	isolateEnv(t)

	tmp := t.TempDir()
	framePath := filepath.Join(tmp, "frame.png")
	outputPath := filepath.Join(tmp, "result.png")
	writePNG(t, framePath, 50, 50, color.NRGBA{A: 255})

	var out bytes.Buffer
	code := run([]string{filepath.Join(tmp, "missing.png"), framePath, outputPath}, &out)
	if code != 0 {
		t.Fatalf("expected exit code 0 on pipeline failure, got %d", code)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if got := lines[len(lines)-1]; got != `{"success":false,"outputPath":null}` {
		t.Fatalf("unexpected final line %q", got)
	}
	if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err=%v", err)
	}
}

func TestFinishClosesDependenciesBeforeStatus(t *testing.T) {
	var out bytes.Buffer
	logger := log.New(&out, "[avatarframe] ", log.LstdFlags|log.Lmsgprefix)
	closed := 0
	deps := &dependencies{closers: []func() error{
		func() error {
			closed++
			return errors.New("redis: connection reset")
		},
	}}

	if code := finish(&out, logger, deps, domain.NewStatus(true, "out.png")); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if closed != 1 {
		t.Fatalf("expected closer to run once, ran %d times", closed)
	}
	if !strings.Contains(out.String(), "dependency close error") {
		t.Fatalf("expected close error to be logged, got %q", out.String())
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if got := lines[len(lines)-1]; got != `{"success":true,"outputPath":"out.png"}` {
		t.Fatalf("expected status as final line, got %q", got)
	}
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MINIO_ENDPOINT",
		"REDIS_ADDR",
		"POSTGRES_DSN",
		"AVATARFRAME_WEBHOOK_URL",
		"AVATARFRAME_PUSHGATEWAY_URL",
		"AVATARFRAME_METRICS_TEXTFILE",
		"OTEL_TRACES_EXPORTER",
	} {
		t.Setenv(key, "")
	}
}

func lastStatus(t *testing.T, output string) domain.Status {
	t.Helper()

	lines := strings.Split(strings.TrimSpace(output), "\n")
	var status domain.Status
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &status); err != nil {
		t.Fatalf("final line is not a status: %q: %v", lines[len(lines)-1], err)
	}
	return status
}

func writePNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}
