package compositor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"log"
	"math"
	"strings"

	"github.com/dunamismax/avatarframe/internal/domain"
	"github.com/dunamismax/avatarframe/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Request struct {
	RunID      string
	AvatarPath string
	FramePath  string
	OutputPath string
	Opacity    domain.Opacity
}

type Result struct {
	OutputPath  string
	Format      string
	AvatarBytes int
	FrameBytes  int
	OutputBytes int
	Stats       Stats
	CacheHit    bool
}

// ResultCache stores encoded outputs keyed by a digest of everything that
// determines them.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

type Processor struct {
	logger     *log.Logger
	opts       Options
	fetcher    Fetcher
	compositor *Compositor
	encoder    Encoder
	emitter    Emitter
	cache      ResultCache
	tracer     trace.Tracer
}

// NewProcessor builds a processor for local paths and, when objects is
// non-nil, s3:// URIs. cache may be nil.
func NewProcessor(logger *log.Logger, opts Options, objects *storage.Client, cache ResultCache) (*Processor, error) {
	opts = opts.withDefaults()

	compositor, err := New(logger, opts)
	if err != nil {
		return nil, err
	}
	encoder, err := newEncoder(opts.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("build encoder: %w", err)
	}

	fetcher := LocationFetcher{Local: LocalFileFetcher{}}
	emitter := LocationEmitter{Local: LocalFileEmitter{}}
	if objects != nil {
		fetcher.Object = ObjectStoreFetcher{Storage: objects}
		emitter.Object = ObjectStoreEmitter{Storage: objects}
	}

	return &Processor{
		logger:     logger,
		opts:       opts,
		fetcher:    fetcher,
		compositor: compositor,
		encoder:    encoder,
		emitter:    emitter,
		cache:      cache,
		tracer:     otel.Tracer("avatarframe/compositor"),
	}, nil
}

// Process runs the whole operation: fetch both inputs, compose, encode and
// write the output. The output is written only when every stage succeeds.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	out := Result{OutputPath: req.OutputPath}

	if strings.TrimSpace(req.OutputPath) == "" {
		return out, fmt.Errorf("%w: output path is required", ErrEncode)
	}
	format, err := FormatFromPath(req.OutputPath)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	out.Format = format

	avatarData, err := p.fetch(ctx, "avatar", req.AvatarPath)
	if err != nil {
		return out, err
	}
	frameData, err := p.fetch(ctx, "frame", req.FramePath)
	if err != nil {
		return out, err
	}
	out.AvatarBytes = len(avatarData)
	out.FrameBytes = len(frameData)

	key := CacheKey(avatarData, frameData, req.Opacity, format, p.opts)
	if data, ok := p.cachedResult(ctx, key); ok {
		stats, err := p.inputStats(avatarData, frameData)
		if err != nil {
			return out, err
		}
		out.Stats = stats
		out.CacheHit = true
		out.OutputBytes = len(data)
		p.logger.Printf("cache hit key=%s square=%d output=%d", shortKey(key), stats.SquareSize, stats.OutputSize)
		if err := p.emit(ctx, req.OutputPath, data, format); err != nil {
			return out, err
		}
		return out, nil
	}

	avatar, err := p.decode(ctx, "avatar", avatarData)
	if err != nil {
		return out, err
	}
	frame, err := p.decode(ctx, "frame", frameData)
	if err != nil {
		return out, err
	}

	composeCtx, span := p.tracer.Start(ctx, "compositor.apply_frame")
	span.SetAttributes(attribute.Float64("frame.opacity", float64(req.Opacity)))
	result, stats, err := p.compositor.ApplyFrame(composeCtx, avatar, frame, req.Opacity)
	out.Stats = stats
	if err != nil {
		endSpan(span, err)
		return out, err
	}
	span.SetAttributes(
		attribute.Int("image.square_size", stats.SquareSize),
		attribute.Int("image.process_size", stats.ProcessSize),
		attribute.Int("image.output_size", stats.OutputSize),
	)
	endSpan(span, nil)

	_, span = p.tracer.Start(ctx, "compositor.encode")
	span.SetAttributes(attribute.String("image.format", format))
	data, err := p.encoder.Encode(result, format)
	endSpan(span, err)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	out.OutputBytes = len(data)

	if err := p.emit(ctx, req.OutputPath, data, format); err != nil {
		return out, err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, data); err != nil {
			p.logger.Printf("cache store failed key=%s err=%v", shortKey(key), err)
		}
	}
	return out, nil
}

func (p *Processor) fetch(ctx context.Context, role, location string) ([]byte, error) {
	ctx, span := p.tracer.Start(ctx, "compositor.fetch")
	span.SetAttributes(attribute.String("input.role", role), attribute.String("input.location", location))

	data, err := p.fetcher.Fetch(ctx, location)
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrDecode, role, err)
	}
	return data, nil
}

func (p *Processor) decode(ctx context.Context, role string, data []byte) (*image.NRGBA, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img, format, err := decodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, role, err)
	}
	p.logger.Printf("decoded %s format=%s", role, format)
	return img, nil
}

// inputStats reads only the image headers, so a cache hit reports the same
// geometry a full run would.
func (p *Processor) inputStats(avatarData, frameData []byte) (Stats, error) {
	avatar, _, err := image.DecodeConfig(bytes.NewReader(avatarData))
	if err != nil {
		return Stats{}, fmt.Errorf("%w: avatar header: %w", ErrDecode, err)
	}
	frame, _, err := image.DecodeConfig(bytes.NewReader(frameData))
	if err != nil {
		return Stats{}, fmt.Errorf("%w: frame header: %w", ErrDecode, err)
	}
	return p.compositor.plan(avatar.Width, avatar.Height, frame.Width, frame.Height), nil
}

func (p *Processor) emit(ctx context.Context, location string, data []byte, format string) error {
	ctx, span := p.tracer.Start(ctx, "compositor.emit")
	span.SetAttributes(attribute.String("output.location", location), attribute.Int("output.bytes", len(data)))

	err := p.emitter.Emit(ctx, location, data, format)
	endSpan(span, err)
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrEncode, location, err)
	}
	p.logger.Printf("saved output=%s bytes=%d", location, len(data))
	return nil
}

func (p *Processor) cachedResult(ctx context.Context, key string) ([]byte, bool) {
	if p.cache == nil {
		return nil, false
	}
	data, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Printf("cache lookup failed key=%s err=%v", shortKey(key), err)
		return nil, false
	}
	if !ok || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// CacheKey digests every input that determines the encoded output.
func CacheKey(avatar, frame []byte, opacity domain.Opacity, format string, opts Options) string {
	opts = opts.withDefaults()

	h := sha256.New()
	var scratch [8]byte
	writeField := func(b []byte) {
		binary.BigEndian.PutUint64(scratch[:], uint64(len(b)))
		h.Write(scratch[:])
		h.Write(b)
	}

	writeField(avatar)
	writeField(frame)
	var bits [8]byte
	binary.BigEndian.PutUint64(bits[:], math.Float64bits(float64(opacity)))
	writeField(bits[:])
	writeField([]byte(format))
	writeField([]byte(fmt.Sprintf("%d/%d/%d", opts.MaxProcessSize, opts.MaxOutputSize, opts.JPEGQuality)))
	return hex.EncodeToString(h.Sum(nil))
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
