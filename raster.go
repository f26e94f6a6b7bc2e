package main

import (
	"errors"
	"fmt"
	"image"
)

// ErrPixelOutOfRange is returned when a pixel outside the raster is read.
var ErrPixelOutOfRange = errors.New("pixel out of range")

// Color holds an 8-bit RGBA value.
type Color struct {
	R, G, B, A uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Raster is a single captured frame with random pixel access.
type Raster interface {
	Width() int
	Height() int
	PixelAt(x, y int) (Color, error)
}

func checkPixel(r Raster, x, y int) error {
	if x < 0 || y < 0 || x >= r.Width() || y >= r.Height() {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrPixelOutOfRange, x, y, r.Width(), r.Height())
	}
	return nil
}

// rgbaRaster wraps an image.RGBA as returned by kbinani/screenshot.
type rgbaRaster struct {
	img *image.RGBA
}

func newRGBARaster(img *image.RGBA) rgbaRaster {
	return rgbaRaster{img: img}
}

func (r rgbaRaster) Width() int  { return r.img.Rect.Dx() }
func (r rgbaRaster) Height() int { return r.img.Rect.Dy() }

func (r rgbaRaster) PixelAt(x, y int) (Color, error) {
	if err := checkPixel(r, x, y); err != nil {
		return Color{}, err
	}
	off := y*r.img.Stride + x*4
	p := r.img.Pix[off : off+4 : off+4]
	return Color{R: p[0], G: p[1], B: p[2], A: p[3]}, nil
}

// rgb24Raster is a packed RGB24 frame as produced by ffmpeg and GStreamer.
// Alpha is always reported as opaque.
type rgb24Raster struct {
	buf  []byte
	w, h int
}

func (r *rgb24Raster) Width() int  { return r.w }
func (r *rgb24Raster) Height() int { return r.h }

func (r *rgb24Raster) PixelAt(x, y int) (Color, error) {
	if err := checkPixel(r, x, y); err != nil {
		return Color{}, err
	}
	off := (y*r.w + x) * 3
	return Color{R: r.buf[off], G: r.buf[off+1], B: r.buf[off+2], A: 255}, nil
}

// croppedRaster exposes a sub-rectangle of another raster with its own
// origin at the rectangle's top-left corner.
type croppedRaster struct {
	parent Raster
	rect   image.Rectangle
}

func (r croppedRaster) Width() int  { return r.rect.Dx() }
func (r croppedRaster) Height() int { return r.rect.Dy() }

func (r croppedRaster) PixelAt(x, y int) (Color, error) {
	if err := checkPixel(r, x, y); err != nil {
		return Color{}, err
	}
	return r.parent.PixelAt(r.rect.Min.X+x, r.rect.Min.Y+y)
}
