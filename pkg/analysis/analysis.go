// Package analysis derives room acoustic decay metrics from a rendered tape.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/measure/ir"
	"github.com/df07/go-acoustic-raytracer/pkg/film"
)

// BandMetrics holds the decay metrics of a single frequency band
type BandMetrics struct {
	Band      int
	Frequency float64 // Representative frequency in Hz (0 when unknown)
	Energy    float64 // Total energy recorded in the band
	Err       error   // Why the band could not be analyzed, nil on success
	ir.Metrics
}

// Amplitude converts an energy envelope into the pressure-like amplitude the IR metrics expect
func Amplitude(energy []float64) []float64 {
	out := make([]float64, len(energy))
	for i, e := range energy {
		out[i] = math.Sqrt(math.Max(e, 0))
	}
	return out
}

// SampleRate returns the number of time bins per second of a tape
func SampleRate(tp *film.Tape) float64 {
	return 1.0 / tp.BinDuration()
}

// EnergyDecayCurve returns the backward integrated energy of an envelope in dB, normalized to 0 dB at t=0
func EnergyDecayCurve(energy []float64, sampleRate float64) ([]float64, error) {
	edc, err := ir.NewAnalyzer(sampleRate).SchroederIntegral(Amplitude(energy))
	if err != nil {
		return nil, fmt.Errorf("energy decay curve: %w", err)
	}
	return edc, nil
}

// AnalyzeEnvelope computes decay metrics for one energy envelope sampled at sampleRate
func AnalyzeEnvelope(energy []float64, sampleRate float64) (ir.Metrics, error) {
	total := 0.0
	for _, e := range energy {
		total += e
	}
	if total <= 0 {
		return ir.Metrics{}, fmt.Errorf("no energy recorded: %w", ir.ErrEmptyIR)
	}

	m, err := ir.NewAnalyzer(sampleRate).Analyze(Amplitude(energy))
	if err != nil {
		return ir.Metrics{}, err
	}
	if m.RT60 <= 0 {
		return m, ir.ErrNoDecay
	}
	return m, nil
}

// AnalyzeTape computes metrics for every band of a tape. Bands that cannot be
// analyzed keep their error in Err and are also reported through the joined
// error; their metrics are still returned with whatever could be computed.
func AnalyzeTape(tp *film.Tape, frequencies []float64) ([]BandMetrics, error) {
	_, bands := tp.Size()
	rate := SampleRate(tp)

	results := make([]BandMetrics, bands)
	var errs []error
	for band := 0; band < bands; band++ {
		energy := tp.Raw(band)
		m, err := AnalyzeEnvelope(energy, rate)

		results[band] = BandMetrics{Band: band, Energy: tp.Energy(band), Err: err, Metrics: m}
		if band < len(frequencies) {
			results[band].Frequency = frequencies[band]
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("band %d: %w", band, err))
		}
	}
	return results, errors.Join(errs...)
}
