package sensor

import (
	"fmt"
	"math"
	"strings"
)

// Light patterns for the TSL1401 model. Values are counts per cycle.

// Flat lights every pixel equally
func Flat(pixels int, level float64) []float64 {
	out := make([]float64, pixels)
	for i := range out {
		out[i] = level
	}
	return out
}

// Ramp rises linearly from zero at the first pixel to peak at the last
func Ramp(pixels int, peak float64) []float64 {
	out := make([]float64, pixels)
	if pixels == 1 {
		out[0] = peak
		return out
	}
	for i := range out {
		out[i] = peak * float64(i) / float64(pixels-1)
	}
	return out
}

// Spot is a gaussian spot of the given width (in pixels) over a dark line
func Spot(pixels int, center, width, peak float64) []float64 {
	out := make([]float64, pixels)
	for i := range out {
		d := (float64(i) - center) / width
		out[i] = peak * math.Exp(-d*d/2)
	}
	return out
}

// Pattern builds a named pattern: flat, ramp or spot
func Pattern(name string, pixels int, peak float64) ([]float64, error) {
	switch strings.ToLower(name) {
	case "", "flat":
		return Flat(pixels, peak), nil
	case "ramp":
		return Ramp(pixels, peak), nil
	case "spot":
		return Spot(pixels, float64(pixels)/2, float64(pixels)/16, peak), nil
	}
	return nil, fmt.Errorf("unknown light pattern %q", name)
}
