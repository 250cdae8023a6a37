package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // decoder registration
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // decoder registration
)

// Output formats accepted in ImageOptions.Format.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// DefaultImageQuality is used for JPEG output when Quality is unset.
const DefaultImageQuality = 80

// ImageOptions controls how a fetched image is transcoded before it is cached.
// The zero value keeps the original bytes.
type ImageOptions struct {
	MaxWidth  int `json:"max_width,omitempty" form:"max_width"`
	MaxHeight int `json:"max_height,omitempty" form:"max_height"`
	// Quality is the JPEG quality, 1 to 100.
	Quality int    `json:"quality,omitempty" form:"quality"`
	Format  string `json:"format,omitempty" form:"format"`
}

// IsZero reports whether no transcoding was requested.
func (o ImageOptions) IsZero() bool {
	return o == ImageOptions{}
}

// Normalize clamps values and canonicalizes the format name.
func (o ImageOptions) Normalize() ImageOptions {
	o.MaxWidth = max(o.MaxWidth, 0)
	o.MaxHeight = max(o.MaxHeight, 0)
	if o.Quality < 0 {
		o.Quality = 0
	}
	if o.Quality > 100 {
		o.Quality = 100
	}
	o.Format = strings.ToLower(strings.TrimSpace(o.Format))
	if o.Format == "jpg" {
		o.Format = FormatJPEG
	}
	return o
}

// String serializes normalized options. Equal options always serialize the same way.
func (o ImageOptions) String() string {
	o = o.Normalize()
	return fmt.Sprintf("w=%d;h=%d;q=%d;f=%s", o.MaxWidth, o.MaxHeight, o.Quality, o.Format)
}

// Transcode resizes and re-encodes data according to opts. Any failure, or a format this
// process cannot encode, returns the original bytes.
func Transcode(data []byte, opts ImageOptions) []byte {
	opts = opts.Normalize()
	if opts.IsZero() {
		return data
	}

	src, srcFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("Image decode failed, keeping original bytes")
		return data
	}

	format := opts.Format
	if format == "" {
		format = srcFormat
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)
	img := src
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		quality := opts.Quality
		if quality == 0 {
			quality = DefaultImageQuality
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case FormatPNG:
		err = png.Encode(&buf, img)
	default:
		log.Debug().Str("format", format).Msg("No encoder for image format, keeping original bytes")
		return data
	}
	if err != nil {
		log.Debug().Err(err).Str("format", format).Msg("Image encode failed, keeping original bytes")
		return data
	}
	return buf.Bytes()
}

// fitWithin scales w×h down to fit maxW×maxH, preserving aspect ratio. Zero bounds are unbounded.
// Images are never scaled up.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 && h > maxH {
		scale = min(scale, float64(maxH)/float64(h))
	}
	if scale == 1.0 {
		return w, h
	}
	return max(1, int(float64(w)*scale+0.5)), max(1, int(float64(h)*scale+0.5))
}
