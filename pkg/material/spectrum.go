package material

import (
	"fmt"
	"math"
	"sort"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
)

// Spectrum maps a frequency in Hz to a value
type Spectrum interface {
	Eval(frequency float64) float64
}

// Uniform is a frequency-independent spectrum
type Uniform float64

// Eval implements Spectrum
func (u Uniform) Eval(frequency float64) float64 {
	return float64(u)
}

// Irregular is a piecewise linear spectrum over sorted frequencies.
// Values outside the tabulated range hold the nearest end value.
type Irregular struct {
	Frequencies []float64
	Values      []float64
}

// NewIrregular creates a tabulated spectrum; frequencies may be given in any order
func NewIrregular(frequencies, values []float64) (*Irregular, error) {
	if len(frequencies) == 0 {
		return nil, fmt.Errorf("%w: irregular spectrum needs at least one frequency", core.ErrConfig)
	}
	if len(frequencies) != len(values) {
		return nil, fmt.Errorf("%w: %d frequencies but %d values", core.ErrConfig, len(frequencies), len(values))
	}

	idx := make([]int, len(frequencies))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return frequencies[idx[a]] < frequencies[idx[b]] })

	spec := &Irregular{
		Frequencies: make([]float64, len(idx)),
		Values:      make([]float64, len(idx)),
	}
	for i, j := range idx {
		if frequencies[j] <= 0 {
			return nil, fmt.Errorf("%w: frequency %g must be positive", core.ErrConfig, frequencies[j])
		}
		if i > 0 && frequencies[j] == spec.Frequencies[i-1] {
			return nil, fmt.Errorf("%w: duplicate frequency %g", core.ErrConfig, frequencies[j])
		}
		spec.Frequencies[i] = frequencies[j]
		spec.Values[i] = values[j]
	}
	return spec, nil
}

// Eval implements Spectrum
func (s *Irregular) Eval(frequency float64) float64 {
	n := len(s.Frequencies)
	if frequency <= s.Frequencies[0] {
		return s.Values[0]
	}
	if frequency >= s.Frequencies[n-1] {
		return s.Values[n-1]
	}

	i := sort.SearchFloat64s(s.Frequencies, frequency)
	f0, f1 := s.Frequencies[i-1], s.Frequencies[i]
	t := (frequency - f0) / (f1 - f0)
	return s.Values[i-1]*(1-t) + s.Values[i]*t
}

// Reflectance converts an absorption coefficient into the reflected energy fraction
func Reflectance(absorption Spectrum, frequency float64) float64 {
	if absorption == nil {
		return 1
	}
	alpha := math.Max(0, math.Min(1, absorption.Eval(frequency)))
	return 1 - alpha
}
