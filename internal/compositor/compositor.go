package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/avatarframe/internal/domain"
)

const (
	DefaultMaxProcessSize = 1200
	DefaultMaxOutputSize  = 2000
	DefaultJPEGQuality    = 90
)

var (
	ErrDecode            = errors.New("decode input image")
	ErrProcess           = errors.New("process image")
	ErrEncode            = errors.New("encode output image")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

type Options struct {
	// MaxProcessSize caps the side of the square the composite is computed at.
	MaxProcessSize int
	// MaxOutputSize caps the side a downscaled result is restored to.
	MaxOutputSize int
	JPEGQuality   int
}

func (o Options) withDefaults() Options {
	if o.MaxProcessSize <= 0 {
		o.MaxProcessSize = DefaultMaxProcessSize
	}
	if o.MaxOutputSize <= 0 {
		o.MaxOutputSize = DefaultMaxOutputSize
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = DefaultJPEGQuality
	}
	return o
}

// Stats records the geometry of each stage of a single composition.
type Stats struct {
	AvatarWidth  int
	AvatarHeight int
	FrameWidth   int
	FrameHeight  int
	SquareSize   int
	ProcessSize  int
	OutputSize   int
	Downscaled   bool
}

type Compositor struct {
	logger    *log.Logger
	resampler Resampler
	opts      Options
}

func New(logger *log.Logger, opts Options) (*Compositor, error) {
	resampler, err := newResampler()
	if err != nil {
		return nil, fmt.Errorf("build resampler: %w", err)
	}
	return newCompositor(logger, resampler, opts), nil
}

func newCompositor(logger *log.Logger, resampler Resampler, opts Options) *Compositor {
	return &Compositor{
		logger:    logger,
		resampler: resampler,
		opts:      opts.withDefaults(),
	}
}

// ApplyFrame crops avatar to a centred square, lays frame over it with its
// alpha scaled by opacity and cuts the result to the inscribed circle.
// Neither input is modified.
func (c *Compositor) ApplyFrame(ctx context.Context, avatar, frame image.Image, opacity domain.Opacity) (*image.NRGBA, Stats, error) {
	var stats Stats

	if avatar == nil || frame == nil {
		return nil, stats, fmt.Errorf("%w: avatar and frame are required", ErrProcess)
	}

	ab := avatar.Bounds()
	fb := frame.Bounds()
	stats.AvatarWidth, stats.AvatarHeight = ab.Dx(), ab.Dy()
	stats.FrameWidth, stats.FrameHeight = fb.Dx(), fb.Dy()
	c.logger.Printf("avatar size=%dx%d", stats.AvatarWidth, stats.AvatarHeight)
	c.logger.Printf("frame size=%dx%d", stats.FrameWidth, stats.FrameHeight)

	if stats.AvatarWidth <= 0 || stats.AvatarHeight <= 0 {
		return nil, stats, fmt.Errorf("%w: avatar has invalid dimensions %dx%d", ErrProcess, stats.AvatarWidth, stats.AvatarHeight)
	}
	if stats.FrameWidth <= 0 || stats.FrameHeight <= 0 {
		return nil, stats, fmt.Errorf("%w: frame has invalid dimensions %dx%d", ErrProcess, stats.FrameWidth, stats.FrameHeight)
	}

	stats = c.plan(stats.AvatarWidth, stats.AvatarHeight, stats.FrameWidth, stats.FrameHeight)
	square := imaging.CropCenter(avatar, stats.SquareSize, stats.SquareSize)
	c.logger.Printf("cropped square=%dx%d", stats.SquareSize, stats.SquareSize)

	if stats.Downscaled {
		c.logger.Printf("downscale square=%d process=%d", stats.SquareSize, stats.ProcessSize)

		var err error
		square, err = c.resample(ctx, square, stats.ProcessSize)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: downscale avatar: %w", ErrProcess, err)
		}
	}

	overlay, err := c.resample(ctx, imaging.Clone(frame), stats.ProcessSize)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: resize frame: %w", ErrProcess, err)
	}
	c.logger.Printf("frame resized=%dx%d", stats.ProcessSize, stats.ProcessSize)

	scaleAlpha(overlay, float64(opacity))
	result := compositeOver(square, overlay)
	applyMask(result, newCircleMask(stats.ProcessSize))

	if stats.Downscaled {
		c.logger.Printf("upscale result=%dx%d", stats.OutputSize, stats.OutputSize)

		result, err = c.resample(ctx, result, stats.OutputSize)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: restore result size: %w", ErrProcess, err)
		}
	}

	return result, stats, nil
}

// plan derives the size of every stage from the input dimensions alone.
func (c *Compositor) plan(avatarW, avatarH, frameW, frameH int) Stats {
	stats := Stats{
		AvatarWidth:  avatarW,
		AvatarHeight: avatarH,
		FrameWidth:   frameW,
		FrameHeight:  frameH,
		SquareSize:   min(avatarW, avatarH),
	}

	stats.ProcessSize = stats.SquareSize
	stats.OutputSize = stats.SquareSize
	if stats.SquareSize > c.opts.MaxProcessSize {
		stats.ProcessSize = c.opts.MaxProcessSize
		stats.OutputSize = min(stats.SquareSize, c.opts.MaxOutputSize)
		stats.Downscaled = true
	}
	return stats
}

func (c *Compositor) resample(ctx context.Context, img *image.NRGBA, size int) (*image.NRGBA, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return img, nil
	}
	return c.resampler.Resample(img, size)
}
