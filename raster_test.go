package main

import (
	"errors"
	"image"
	"testing"
)

func TestRGBARaster_PixelAt(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	off := img.PixOffset(3, 2)
	copy(img.Pix[off:], []byte{10, 20, 30, 40})

	r := newRGBARaster(img)
	if r.Width() != 4 || r.Height() != 3 {
		t.Fatalf("expected 4x3, got %dx%d", r.Width(), r.Height())
	}
	got, err := r.PixelAt(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got != (Color{R: 10, G: 20, B: 30, A: 40}) {
		t.Errorf("expected {10 20 30 40}, got %+v", got)
	}
}

func TestRGBARaster_NonZeroOrigin(t *testing.T) {
	// Captures of a secondary display carry desktop coordinates.
	img := image.NewRGBA(image.Rect(1920, 0, 1924, 2))
	img.Pix[img.PixOffset(1921, 1)] = 99

	r := newRGBARaster(img)
	got, err := r.PixelAt(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.R != 99 {
		t.Errorf("expected R=99, got %d", got.R)
	}
}

func TestRaster_OutOfRange(t *testing.T) {
	rasters := map[string]Raster{
		"rgba":    newRGBARaster(image.NewRGBA(image.Rect(0, 0, 4, 3))),
		"rgb24":   &rgb24Raster{buf: make([]byte, 4*3*3), w: 4, h: 3},
		"cropped": croppedRaster{parent: newRGBARaster(image.NewRGBA(image.Rect(0, 0, 10, 10))), rect: image.Rect(2, 2, 6, 5)},
	}
	for name, r := range rasters {
		for _, p := range []image.Point{{-1, 0}, {0, -1}, {4, 0}, {0, 3}} {
			_, err := r.PixelAt(p.X, p.Y)
			if !errors.Is(err, ErrPixelOutOfRange) {
				t.Errorf("%s %v: expected ErrPixelOutOfRange, got %v", name, p, err)
			}
		}
	}
}

func TestRGB24Raster_PixelAt(t *testing.T) {
	buf := make([]byte, 3*2*3)
	copy(buf[(1*3+2)*3:], []byte{200, 100, 50})

	r := &rgb24Raster{buf: buf, w: 3, h: 2}
	got, err := r.PixelAt(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != (Color{R: 200, G: 100, B: 50, A: 255}) {
		t.Errorf("expected {200 100 50 255}, got %+v", got)
	}
}

func TestCroppedRaster(t *testing.T) {
	img := gradientImage(50, 40)
	parent := newRGBARaster(img)
	r := croppedRaster{parent: parent, rect: image.Rect(10, 20, 30, 30)}

	if r.Width() != 20 || r.Height() != 10 {
		t.Fatalf("expected 20x10, got %dx%d", r.Width(), r.Height())
	}
	got, _ := r.PixelAt(5, 3)
	want, _ := parent.PixelAt(15, 23)
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestColor_String(t *testing.T) {
	if s := (Color{R: 255, G: 128, B: 0, A: 7}).String(); s != "#ff8000" {
		t.Errorf("expected #ff8000, got %s", s)
	}
}
