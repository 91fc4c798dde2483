package compositor

import (
	"context"
	"image/color"
	"io"
	"log"
	"testing"

	"github.com/dunamismax/avatarframe/internal/domain"
)

func BenchmarkProcessorApplyFrame(b *testing.B) {
	benchmarkProcessor(b, 1024, 768)
}

func BenchmarkProcessorApplyFrameDownscaled(b *testing.B) {
	benchmarkProcessor(b, 2400, 1800)
}

func benchmarkProcessor(b *testing.B, w, h int) {
	avatar := buildTestPNG(b, gradientImage(w, h))
	frame := buildTestPNG(b, solidImage(500, 500, color.NRGBA{R: 230, G: 180, B: 40, A: 160}))

	processor, err := NewProcessor(log.New(io.Discard, "", 0), Options{}, nil, nil)
	if err != nil {
		b.Fatalf("new processor: %v", err)
	}
	processor.fetcher = staticFetcher{avatar: avatar, frame: frame}
	processor.emitter = discardEmitter{}

	req := Request{
		AvatarPath: "avatar",
		FramePath:  "frame",
		OutputPath: "out.png",
		Opacity:    domain.DefaultOpacity,
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := processor.Process(context.Background(), req); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}

type staticFetcher struct {
	avatar []byte
	frame  []byte
}

func (f staticFetcher) Fetch(_ context.Context, location string) ([]byte, error) {
	if location == "frame" {
		return f.frame, nil
	}
	return f.avatar, nil
}

type discardEmitter struct{}

func (discardEmitter) Emit(context.Context, string, []byte, string) error {
	return nil
}
