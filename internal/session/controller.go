package session

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/mahirjain10/poster-formatter/internal/transformation"
	"github.com/mahirjain10/poster-formatter/internal/types"
	"golang.org/x/sync/singleflight"
)

// Recorder receives controller events for metrics. Nil-safe via noopRecorder.
type Recorder interface {
	UploadDecoded(format string)
	DecodeFailed()
	Composed(preset string, elapsed time.Duration)
	Superseded()
}

type noopRecorder struct{}

func (noopRecorder) UploadDecoded(string)           {}
func (noopRecorder) DecodeFailed()                  {}
func (noopRecorder) Composed(string, time.Duration) {}
func (noopRecorder) Superseded()                    {}

type Options struct {
	MaxPixels int
	BlurSigma float64
	Recorder  Recorder
}

// Source is a decoded upload. It is never modified after decoding. The
// encoded bytes are not retained.
type Source struct {
	Image      image.Image
	Generation uint64
}

// Rendered is a composed output for one (upload generation, preset) pairing.
// Only the PNG encoding is kept; the raster is recomputed when needed.
type Rendered struct {
	Generation uint64
	Preset     types.Preset
	Placement  transformation.Placement
	PNG        []byte
}

type Snapshot struct {
	State        string
	Generation   uint64
	Preset       *types.Preset
	SourceWidth  int
	SourceHeight int
}

// Controller owns the current image and the current preset of one browser
// session. Decoding and composing run outside the lock; results are committed
// only while the generation and preset they were computed for are current.
type Controller struct {
	mu         sync.Mutex
	generation uint64
	source     *Source
	preset     *types.Preset
	rendered   *Rendered

	renders singleflight.Group
	opts    Options

	decode  func(buffer []byte, maxPixels int) (image.Image, string, error)
	compose func(src image.Image, width, height int, opts ...transformation.Option) *image.NRGBA
}

func NewController(opts Options) *Controller {
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.BlurSigma == 0 {
		opts.BlurSigma = transformation.DefaultBlurSigma
	}
	return &Controller{
		opts:    opts,
		decode:  transformation.Decode,
		compose: transformation.Compose,
	}
}

// Upload replaces the current image. The preset selection is reset at once,
// before decoding starts. On decode failure the session is left empty.
func (c *Controller) Upload(ctx context.Context, blob []byte) (uint64, error) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.source = nil
	c.preset = nil
	c.rendered = nil
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return gen, err
	}

	img, format, err := c.decode(blob, c.opts.MaxPixels)
	if err != nil {
		c.opts.Recorder.DecodeFailed()
		return gen, fmt.Errorf("upload %d: %w", gen, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		c.opts.Recorder.Superseded()
		return gen, fmt.Errorf("upload %d: %w", gen, types.ErrSuperseded)
	}
	c.source = &Source{Image: img, Generation: gen}
	c.opts.Recorder.UploadDecoded(format)

	b := img.Bounds()
	slog.Debug("Image loaded", "generation", gen, "format", format, "width", b.Dx(), "height", b.Dy())
	return gen, nil
}

// SelectPreset makes preset current and renders the current image for it.
func (c *Controller) SelectPreset(ctx context.Context, preset types.Preset) (*Rendered, error) {
	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return nil, types.ErrNoImage
	}
	p := preset
	c.preset = &p
	if c.rendered != nil && (c.rendered.Preset.Name != preset.Name || c.rendered.Generation != c.source.Generation) {
		c.rendered = nil
	}
	c.mu.Unlock()

	return c.Output(ctx)
}

// Output returns the rendered image for the current pairing, composing it if
// it is not cached.
func (c *Controller) Output(ctx context.Context) (*Rendered, error) {
	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return nil, types.ErrNoImage
	}
	if c.preset == nil {
		c.mu.Unlock()
		return nil, types.ErrNoPreset
	}
	if c.rendered != nil {
		r := c.rendered
		c.mu.Unlock()
		return r, nil
	}
	src, preset := c.source, *c.preset
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The render is shared by every waiter on key, so it is not bound to
	// any one caller's context.
	key := fmt.Sprintf("%d/%s", src.Generation, preset.Name)
	v, err, _ := c.renders.Do(key, func() (interface{}, error) {
		return c.render(src, preset)
	})
	if err != nil {
		return nil, err
	}
	r := v.(*Rendered)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil || c.source.Generation != r.Generation || c.preset == nil || c.preset.Name != r.Preset.Name {
		c.opts.Recorder.Superseded()
		return nil, fmt.Errorf("render %s: %w", key, types.ErrSuperseded)
	}
	c.rendered = r
	return r, nil
}

func (c *Controller) render(src *Source, preset types.Preset) (*Rendered, error) {
	start := time.Now()

	b := src.Image.Bounds()
	img := c.compose(src.Image, preset.TargetWidth, preset.TargetHeight,
		transformation.WithBlurSigma(c.opts.BlurSigma))
	data, err := transformation.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	c.opts.Recorder.Composed(preset.Name, elapsed)
	slog.Debug("Composed image", "generation", src.Generation, "preset", preset.Name, "elapsed", elapsed)

	return &Rendered{
		Generation: src.Generation,
		Preset:     preset,
		Placement:  transformation.Fit(b.Dx(), b.Dy(), preset.TargetWidth, preset.TargetHeight),
		PNG:        data,
	}, nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{State: types.EMPTY, Generation: c.generation}
	if c.source == nil {
		return s
	}
	b := c.source.Image.Bounds()
	s.SourceWidth, s.SourceHeight = b.Dx(), b.Dy()
	s.State = types.IMAGE_LOADED
	if c.preset != nil {
		p := *c.preset
		s.Preset = &p
		s.State = types.PREVIEWING
	}
	return s
}
