package screen

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Format is the payload format sent to the extraction service.
const Format = "jpeg"

// Encoder rasterizes frames off-screen and serializes them for extraction.
type Encoder struct {
	MaxWidth int // 0 keeps the native width
	Quality  int
}

// Rasterize draws img into a fresh RGBA raster no wider than MaxWidth,
// keeping the aspect ratio.
func (e Encoder) Rasterize(img image.Image) *image.RGBA {
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()
	if e.MaxWidth > 0 && w > e.MaxWidth {
		h = max(1, h*e.MaxWidth/w)
		w = e.MaxWidth
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == src.Dx() && h == src.Dy() {
		draw.Copy(dst, image.Point{}, img, src, draw.Src, nil)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst
}

// Encode rasterizes img and returns the JPEG payload.
func (e Encoder) Encode(img image.Image) ([]byte, error) {
	q := e.Quality
	if q <= 0 || q > 100 {
		q = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, e.Rasterize(img), &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
