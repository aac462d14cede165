package transformation

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	// Register decoders for every format an upload may arrive in.
	// imaging.Decode goes through image.Decode, so these are what it can read.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/mahirjain10/poster-formatter/internal/types"
)

// DefaultBlurSigma is the background blur strength in output pixels.
const DefaultBlurSigma = 20.0

type options struct {
	blurSigma float64
}

type Option func(*options)

// WithBlurSigma sets the gaussian sigma of the background pass. Values <= 0 disable the blur.
func WithBlurSigma(sigma float64) Option {
	return func(o *options) { o.blurSigma = sigma }
}

// Compose renders src onto a targetWidth x targetHeight surface: a blurred copy
// stretched over the whole surface, with the unblurred source contain-fitted and
// centered on top. src is not modified.
func Compose(src image.Image, targetWidth int, targetHeight int, opts ...Option) *image.NRGBA {
	o := options{blurSigma: DefaultBlurSigma}
	for _, opt := range opts {
		opt(&o)
	}

	// 1. Surface
	canvas := imaging.New(targetWidth, targetHeight, color.Transparent)

	// 2. Background: stretch to cover, then blur in output space
	background := imaging.Resize(src, targetWidth, targetHeight, imaging.Linear)
	if o.blurSigma > 0 {
		background = imaging.Blur(background, o.blurSigma)
	}
	canvas = imaging.Overlay(canvas, background, image.Pt(0, 0), 1)

	// 3. Foreground: contain fit, centered
	b := src.Bounds()
	rect := Fit(b.Dx(), b.Dy(), targetWidth, targetHeight).Bounds(targetWidth, targetHeight)
	foreground := imaging.Resize(src, rect.Dx(), rect.Dy(), imaging.Lanczos)

	return imaging.Overlay(canvas, foreground, rect.Min, 1)
}

// Decode reads an uploaded image. maxPixels bounds width*height before the
// pixel data is decoded; 0 means unlimited.
func Decode(buffer []byte, maxPixels int) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(buffer))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", types.ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: empty %dx%d %s image", types.ErrDecode, cfg.Width, cfg.Height, format)
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", types.ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(buffer), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", types.ErrDecode, err)
	}
	return img, format, nil
}

// EncodePNG encodes a rendered surface for preview and download.
func EncodePNG(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("error while encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
