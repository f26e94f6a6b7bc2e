package main

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrEmptyRegion is returned when a region yields no sample points at the
	// configured skip factor. This usually means the skip factor is larger
	// than the border or the per-light band.
	ErrEmptyRegion = errors.New("region has no sample points")

	// ErrRegionOutOfBounds is returned when a region extends past the raster.
	ErrRegionOutOfBounds = errors.New("region outside raster")

	// ErrInvalidSkip is returned for a skip factor below 1.
	ErrInvalidSkip = errors.New("skip factor must be at least 1")
)

// AverageColor computes the mean color of region by sampling every skip-th
// pixel along both axes, starting at the region's top-left corner.
// The sums are divided by floor(dx/skip)*floor(dy/skip), scaled by
// brightness and clamped to 255. Alpha is not accumulated and always
// comes back as 0.
func AverageColor(r Raster, region image.Rectangle, skip int, brightness float64) (Color, error) {
	if skip < 1 {
		return Color{}, fmt.Errorf("%w (got %d)", ErrInvalidSkip, skip)
	}
	region = region.Canon()

	pixels := (region.Dx() / skip) * (region.Dy() / skip)
	if pixels == 0 {
		return Color{}, fmt.Errorf("%w: %v with skip %d", ErrEmptyRegion, region, skip)
	}

	bounds := image.Rect(0, 0, r.Width(), r.Height())
	if !region.In(bounds) {
		return Color{}, fmt.Errorf("%w: %v not in %v", ErrRegionOutOfBounds, region, bounds)
	}

	var sum [4]uint64
	for x := region.Min.X; x < region.Max.X; x += skip {
		for y := region.Min.Y; y < region.Max.Y; y += skip {
			p, err := r.PixelAt(x, y)
			if err != nil {
				return Color{}, err
			}
			sum[0] += uint64(p.R)
			sum[1] += uint64(p.G)
			sum[2] += uint64(p.B)
		}
	}

	var out [4]uint8
	for i, s := range sum {
		out[i] = clampChannel(math.Round(float64(s) / float64(pixels) * brightness))
	}
	return Color{R: out[0], G: out[1], B: out[2], A: out[3]}, nil
}

func clampChannel(v float64) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return uint8(v)
}
