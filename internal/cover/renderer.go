package cover

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatsync/internal/shared"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Renderer produces encoded cover image bytes for a playlist title.
type Renderer interface {
	Render(ctx context.Context, title string) ([]byte, error)
}

const (
	coverSize     = 500
	borderInset   = 10
	textBaselineY = 460
)

// ImageRenderer implements [Renderer] with a deterministic flat-color
// composition: a background derived from the title, an inverted border, and
// the title drawn above the lower edge. The JPEG is re-encoded at decreasing
// quality until the base64 form fits under [MaxEncodedBytes].
type ImageRenderer struct {
	logger *log.Logger
}

var _ Renderer = (*ImageRenderer)(nil)

// NewImageRenderer creates the default renderer.
func NewImageRenderer(logger *log.Logger) *ImageRenderer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ImageRenderer{logger: logger}
}

// Render draws the cover for a cleaned playlist title.
func (r *ImageRenderer) Render(ctx context.Context, title string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	background := backgroundColor(title)
	img := image.NewRGBA(image.Rect(0, 0, coverSize, coverSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	drawBorder(img, invert(background))
	drawTitle(img, title, fontColor(background))

	encoded, err := encodeUnderLimit(img)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("rendered cover image", "title", title, "bytes", len(encoded))
	return encoded, nil
}

// encodeUnderLimit encodes the image as JPEG, lowering quality until the
// base64 encoded form respects the upload ceiling.
func encodeUnderLimit(img image.Image) ([]byte, error) {
	for quality := 80; quality >= 10; quality -= 10 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode cover image: %w", err)
		}
		if base64.StdEncoding.EncodedLen(buf.Len()) <= MaxEncodedBytes {
			return buf.Bytes(), nil
		}
	}
	return nil, fmt.Errorf("cover image exceeds %d byte encoded ceiling at minimum quality", MaxEncodedBytes)
}

// backgroundColor derives a stable muted color from the title.
func backgroundColor(title string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(title))
	sum := h.Sum32()

	// Keep channels out of the extremes so both font colors stay legible.
	return color.RGBA{
		R: uint8(48 + (sum>>16&0xff)%160),
		G: uint8(48 + (sum>>8&0xff)%160),
		B: uint8(48 + (sum&0xff)%160),
		A: 255,
	}
}

func invert(c color.RGBA) color.RGBA {
	return color.RGBA{R: 255 - c.R, G: 255 - c.G, B: 255 - c.B, A: 255}
}

// fontColor picks white or black against the average channel intensity.
func fontColor(c color.RGBA) color.RGBA {
	avg := (int(c.R) + int(c.G) + int(c.B)) / 3
	if 255-avg > 128 {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return color.RGBA{A: 255}
}

func drawBorder(img *image.RGBA, c color.RGBA) {
	bounds := img.Bounds()
	uniform := image.NewUniform(c)

	for i := range 3 {
		inset := borderInset + i
		top := image.Rect(inset, inset, bounds.Max.X-inset, inset+1)
		bottom := image.Rect(inset, bounds.Max.Y-inset-1, bounds.Max.X-inset, bounds.Max.Y-inset)
		left := image.Rect(inset, inset, inset+1, bounds.Max.Y-inset)
		right := image.Rect(bounds.Max.X-inset-1, inset, bounds.Max.X-inset, bounds.Max.Y-inset)

		for _, rect := range []image.Rectangle{top, bottom, left, right} {
			draw.Draw(img, rect, uniform, image.Point{}, draw.Src)
		}
	}
}

func drawTitle(img *image.RGBA, title string, c color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, title).Ceil()

	x := (coverSize - width) / 2
	if x < borderInset*2 {
		x = borderInset * 2
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, textBaselineY),
	}
	drawer.DrawString(title)
}
