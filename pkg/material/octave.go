package material

import (
	"fmt"
	"math"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
)

// ReferenceFrequency anchors the fractional octave series (Hz)
const ReferenceFrequency = 1000.0

// octaveRatio is the base-10 octave frequency ratio G = 10^(3/10)
var octaveRatio = math.Pow(10, 0.3)

// Band is a contiguous frequency interval
type Band struct {
	Lower  float64
	Center float64
	Upper  float64
}

// FractionalOctaveBands returns the IEC 61260-1 1/b octave bands whose
// exact mid-band frequency lies in [fmin, fmax], sorted ascending.
func FractionalOctaveBands(b int, fmin, fmax float64) ([]Band, error) {
	if b < 1 {
		return nil, fmt.Errorf("%w: octave fraction must be at least 1, got %d", core.ErrConfig, b)
	}
	if fmin <= 0 || fmin >= fmax {
		return nil, fmt.Errorf("%w: invalid frequency range [%g, %g]", core.ErrConfig, fmin, fmax)
	}

	frac := float64(b)
	center := func(x int) float64 {
		if b%2 == 1 {
			return ReferenceFrequency * math.Pow(octaveRatio, float64(x)/frac)
		}
		return ReferenceFrequency * math.Pow(octaveRatio, float64(2*x+1)/(2*frac))
	}

	// index of the first band at or above fmin
	x := int(math.Floor(frac * math.Log(fmin/ReferenceFrequency) / math.Log(octaveRatio)))
	x -= 2
	for center(x) < fmin*(1-1e-9) {
		x++
	}

	edge := math.Pow(octaveRatio, 1/(2*frac))
	var bands []Band
	for fm := center(x); fm <= fmax*(1+1e-9); fm = center(x) {
		bands = append(bands, Band{Lower: fm / edge, Center: fm, Upper: fm * edge})
		x++
	}
	return bands, nil
}

// Centers extracts the mid-band frequencies
func Centers(bands []Band) []float64 {
	centers := make([]float64, len(bands))
	for i, b := range bands {
		centers[i] = b.Center
	}
	return centers
}
