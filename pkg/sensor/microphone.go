package sensor

import (
	"fmt"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

// Microphone is an omnidirectional point receiver.
// Each frequency is one band of the output histogram.
type Microphone struct {
	Position    core.Vec3
	Frequencies []float64 // Representative frequency of each band in Hz
}

// NewMicrophone creates a microphone listening at the given frequencies
func NewMicrophone(position core.Vec3, frequencies []float64) (*Microphone, error) {
	if len(frequencies) == 0 {
		return nil, fmt.Errorf("%w: microphone needs at least one frequency", core.ErrConfig)
	}
	for i, f := range frequencies {
		if f <= 0 {
			return nil, fmt.Errorf("%w: frequency %d is %v Hz", core.ErrConfig, i, f)
		}
	}

	freqs := make([]float64, len(frequencies))
	copy(freqs, frequencies)
	return &Microphone{Position: position, Frequencies: freqs}, nil
}

// NewOctaveMicrophone creates a microphone listening at the centres of the
// 1/b-octave bands that overlap [fmin, fmax]
func NewOctaveMicrophone(position core.Vec3, b int, fmin, fmax float64) (*Microphone, error) {
	bands, err := material.FractionalOctaveBands(b, fmin, fmax)
	if err != nil {
		return nil, err
	}
	return NewMicrophone(position, material.Centers(bands))
}

// BandCount returns the number of frequency bands
func (m *Microphone) BandCount() int {
	return len(m.Frequencies)
}

// Frequency returns the representative frequency of a band
func (m *Microphone) Frequency(band int) float64 {
	return m.Frequencies[band]
}

// SampleRay emits a ray from the microphone in a uniformly distributed direction
func (m *Microphone) SampleRay(sample core.Vec2) core.Ray {
	return core.NewRay(m.Position, core.SampleOnUnitSphere(sample))
}
