package session

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/mahirjain10/poster-formatter/internal/transformation"
	"github.com/mahirjain10/poster-formatter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBlob(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(w, h, color.NRGBA{120, 80, 40, 255})))
	return buf.Bytes()
}

type countingRecorder struct {
	mu         sync.Mutex
	decoded    int
	failed     int
	composed   map[string]int
	superseded int
}

func (r *countingRecorder) UploadDecoded(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoded++
}

func (r *countingRecorder) DecodeFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *countingRecorder) Composed(preset string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.composed == nil {
		r.composed = make(map[string]int)
	}
	r.composed[preset]++
}

func (r *countingRecorder) Superseded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.superseded++
}

func TestController_StartsEmpty(t *testing.T) {
	c := NewController(Options{})

	snap := c.Snapshot()
	assert.Equal(t, types.EMPTY, snap.State)
	assert.Nil(t, snap.Preset)

	_, err := c.SelectPreset(context.Background(), types.Instagram)
	assert.ErrorIs(t, err, types.ErrNoImage)

	_, err = c.Output(context.Background())
	assert.ErrorIs(t, err, types.ErrNoImage)
}

func TestController_UploadThenSelect(t *testing.T) {
	rec := &countingRecorder{}
	c := NewController(Options{Recorder: rec, BlurSigma: 2})
	ctx := context.Background()

	gen, err := c.Upload(ctx, pngBlob(t, 1000, 1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	snap := c.Snapshot()
	assert.Equal(t, types.IMAGE_LOADED, snap.State)
	assert.Equal(t, 1000, snap.SourceWidth)

	_, err = c.Output(ctx)
	assert.ErrorIs(t, err, types.ErrNoPreset)

	r, err := c.SelectPreset(ctx, types.Instagram)
	require.NoError(t, err)
	assert.Equal(t, gen, r.Generation)
	assert.Equal(t, "instagram", r.Preset.Name)
	assert.InDelta(t, 135, r.Placement.OffsetY, 1e-9)

	cfg, err := png.DecodeConfig(bytes.NewReader(r.PNG))
	require.NoError(t, err)
	assert.Equal(t, 1080, cfg.Width)
	assert.Equal(t, 1350, cfg.Height)

	snap = c.Snapshot()
	assert.Equal(t, types.PREVIEWING, snap.State)
	require.NotNil(t, snap.Preset)
	assert.Equal(t, "instagram", snap.Preset.Name)

	// Cached output is reused.
	again, err := c.Output(ctx)
	require.NoError(t, err)
	assert.Same(t, r, again)
	assert.Equal(t, 1, rec.composed["instagram"])
	assert.Equal(t, 1, rec.decoded)
}

func TestController_SwitchPresets(t *testing.T) {
	c := NewController(Options{BlurSigma: 2})
	ctx := context.Background()
	_, err := c.Upload(ctx, pngBlob(t, 1600, 900))
	require.NoError(t, err)

	insta, err := c.SelectPreset(ctx, types.Instagram)
	require.NoError(t, err)
	tv, err := c.SelectPreset(ctx, types.TV)
	require.NoError(t, err)

	assert.Equal(t, "tv", tv.Preset.Name)
	assert.NotEqual(t, insta.PNG, tv.PNG)
	assert.InDelta(t, 1920, tv.Placement.DrawWidth, 1e-9)

	cur, err := c.Output(ctx)
	require.NoError(t, err)
	assert.Same(t, tv, cur)
}

func TestController_NewUploadResetsPreset(t *testing.T) {
	c := NewController(Options{BlurSigma: 2})
	ctx := context.Background()

	_, err := c.Upload(ctx, pngBlob(t, 100, 300))
	require.NoError(t, err)
	_, err = c.SelectPreset(ctx, types.TV)
	require.NoError(t, err)

	gen, err := c.Upload(ctx, pngBlob(t, 300, 100))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gen)

	snap := c.Snapshot()
	assert.Equal(t, types.IMAGE_LOADED, snap.State)
	assert.Nil(t, snap.Preset)
	_, err = c.Output(ctx)
	assert.ErrorIs(t, err, types.ErrNoPreset)
}

func TestController_DecodeFailureLeavesNoPreview(t *testing.T) {
	rec := &countingRecorder{}
	c := NewController(Options{Recorder: rec, BlurSigma: 2})
	ctx := context.Background()

	_, err := c.Upload(ctx, pngBlob(t, 50, 50))
	require.NoError(t, err)
	_, err = c.SelectPreset(ctx, types.Instagram)
	require.NoError(t, err)

	_, err = c.Upload(ctx, []byte("garbage"))
	assert.ErrorIs(t, err, types.ErrDecode)

	assert.Equal(t, types.EMPTY, c.Snapshot().State)
	_, err = c.Output(ctx)
	assert.ErrorIs(t, err, types.ErrNoImage)
	assert.Equal(t, 1, rec.failed)
}

func TestController_MaxPixels(t *testing.T) {
	c := NewController(Options{MaxPixels: 100})

	_, err := c.Upload(context.Background(), pngBlob(t, 20, 20))
	assert.ErrorIs(t, err, types.ErrTooLarge)
	assert.Equal(t, types.EMPTY, c.Snapshot().State)
}

func TestController_StaleDecodeIsDiscarded(t *testing.T) {
	rec := &countingRecorder{}
	c := NewController(Options{Recorder: rec, BlurSigma: 2})
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	c.decode = func(buffer []byte, maxPixels int) (image.Image, string, error) {
		mu.Lock()
		calls++
		isFirst := calls == 1
		mu.Unlock()
		if isFirst {
			close(entered)
			<-release
		}
		return transformation.Decode(buffer, maxPixels)
	}

	first := pngBlob(t, 10, 10)
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Upload(ctx, first)
		errCh <- err
	}()
	<-entered

	gen, err := c.Upload(ctx, pngBlob(t, 40, 20))
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-errCh, types.ErrSuperseded)

	snap := c.Snapshot()
	assert.Equal(t, gen, snap.Generation)
	assert.Equal(t, 40, snap.SourceWidth)
	assert.Equal(t, 1, rec.superseded)
}

func TestController_StaleRenderIsDiscarded(t *testing.T) {
	c := NewController(Options{BlurSigma: 2})
	ctx := context.Background()
	_, err := c.Upload(ctx, pngBlob(t, 30, 30))
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c.compose = func(src image.Image, w, h int, opts ...transformation.Option) *image.NRGBA {
		if w == types.Instagram.TargetWidth {
			once.Do(func() { close(entered) })
			<-release
		}
		return transformation.Compose(src, w, h, opts...)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := c.SelectPreset(ctx, types.Instagram)
		errCh <- err
	}()
	<-entered

	tv, err := c.SelectPreset(ctx, types.TV)
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-errCh, types.ErrSuperseded)

	cur, err := c.Output(ctx)
	require.NoError(t, err)
	assert.Same(t, tv, cur)
	assert.Equal(t, "tv", c.Snapshot().Preset.Name)
}

func TestController_ConcurrentOutputSharesRender(t *testing.T) {
	rec := &countingRecorder{}
	c := NewController(Options{Recorder: rec, BlurSigma: 2})
	ctx := context.Background()
	_, err := c.Upload(ctx, pngBlob(t, 30, 60))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Rendered, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.SelectPreset(ctx, types.TV)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].PNG, r.PNG)
	}
}

func TestController_CancelledContext(t *testing.T) {
	c := NewController(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Upload(ctx, pngBlob(t, 10, 10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.EMPTY, c.Snapshot().State)
}

func TestController_CancelledCallerDoesNotFailSharedRender(t *testing.T) {
	rec := &countingRecorder{}
	c := NewController(Options{Recorder: rec, BlurSigma: 2})
	_, err := c.Upload(context.Background(), pngBlob(t, 30, 30))
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c.compose = func(src image.Image, w, h int, opts ...transformation.Option) *image.NRGBA {
		once.Do(func() { close(entered) })
		<-release
		return transformation.Compose(src, w, h, opts...)
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.SelectPreset(firstCtx, types.TV)
		firstErr <- err
	}()
	<-entered

	type result struct {
		r   *Rendered
		err error
	}
	second := make(chan result, 1)
	go func() {
		r, err := c.Output(context.Background())
		second <- result{r, err}
	}()

	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "tv", got.r.Preset.Name)
	assert.NoError(t, <-firstErr)
	assert.Equal(t, 1, rec.composed["tv"])
}

func TestController_CancelledOutputLeavesStateUsable(t *testing.T) {
	c := NewController(Options{BlurSigma: 2})
	_, err := c.Upload(context.Background(), pngBlob(t, 30, 30))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.SelectPreset(ctx, types.Instagram)
	assert.ErrorIs(t, err, context.Canceled)

	r, err := c.Output(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "instagram", r.Preset.Name)
}
