// Package film stores the global energy decay histogram a render writes into.
package film

import (
	"fmt"
	"sync"

	"github.com/cwbudde/algo-vecmath"
	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/histogram"
)

// numStripes must be a power of two
const numStripes = 16

type stripeLocks struct{ mu [numStripes]sync.Mutex }

func (sl *stripeLocks) lock(idx int)   { sl.mu[idx&(numStripes-1)].Lock() }
func (sl *stripeLocks) unlock(idx int) { sl.mu[idx&(numStripes-1)].Unlock() }

// Tape is a time by frequency band histogram shared by all render workers.
// Frequency columns are guarded by striped locks so bands merge in parallel.
type Tape struct {
	hist    *histogram.Histogram
	maxTime float64
	locks   stripeLocks
}

// NewTape creates an empty tape of timeSteps bins covering [0, maxTime) seconds
func NewTape(timeSteps, bands int, maxTime float64) (*Tape, error) {
	if maxTime <= 0 {
		return nil, fmt.Errorf("%w: max time must be positive, got %g", core.ErrConfig, maxTime)
	}
	hist, err := histogram.New(timeSteps, bands, 1, histogram.WithTimeRange(0, maxTime))
	if err != nil {
		return nil, err
	}
	return &Tape{hist: hist, maxTime: maxTime}, nil
}

// Size returns the number of time steps and frequency bands
func (tp *Tape) Size() (timeSteps, bands int) {
	return tp.hist.Size()
}

// MaxTime returns the duration covered by the tape in seconds
func (tp *Tape) MaxTime() float64 {
	return tp.maxTime
}

// BinDuration returns the duration of a single time step in seconds
func (tp *Tape) BinDuration() float64 {
	timeSteps, _ := tp.hist.Size()
	return tp.maxTime / float64(timeSteps)
}

// stripesFor returns the distinct stripes covering columns [lo, hi) in ascending order
func stripesFor(lo, hi int) []int {
	var used [numStripes]bool
	for col := lo; col < hi && col-lo < numStripes; col++ {
		used[col&(numStripes-1)] = true
	}
	stripes := make([]int, 0, numStripes)
	for i, u := range used {
		if u {
			stripes = append(stripes, i)
		}
	}
	return stripes
}

func (tp *Tape) lockColumns(lo, hi int) func() {
	stripes := stripesFor(lo, hi)
	for _, s := range stripes {
		tp.locks.lock(s)
	}
	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			tp.locks.unlock(stripes[i])
		}
	}
}

// Put merges a task histogram into the tape
func (tp *Tape) Put(h *histogram.Histogram) error {
	_, offsetFreq := h.Offset()
	_, freqBins := h.Size()
	_, bands := tp.hist.Size()

	lo, hi := max(offsetFreq, 0), min(offsetFreq+freqBins, bands)
	if lo >= hi {
		return nil
	}

	unlock := tp.lockColumns(lo, hi)
	defer unlock()
	return tp.hist.Merge(h)
}

// Raw returns a copy of the accumulated energy of one band over time
func (tp *Tape) Raw(band int) []float64 {
	unlock := tp.lockColumns(band, band+1)
	defer unlock()

	timeSteps, _ := tp.hist.Size()
	out := make([]float64, timeSteps)
	for t := range out {
		out[t], _ = tp.hist.At(t, band, 0)
	}
	return out
}

// Counts returns a copy of the number of recorded contributions of one band over time
func (tp *Tape) Counts(band int) []uint32 {
	unlock := tp.lockColumns(band, band+1)
	defer unlock()

	timeSteps, _ := tp.hist.Size()
	out := make([]uint32, timeSteps)
	for t := range out {
		_, out[t] = tp.hist.At(t, band, 0)
	}
	return out
}

// Normalized returns the mean contribution per time step of one band.
// Empty bins read as zero.
func (tp *Tape) Normalized(band int) []float64 {
	raw := tp.Raw(band)
	counts := tp.Counts(band)

	reciprocals := make([]float64, len(counts))
	for i, c := range counts {
		if c > 0 {
			reciprocals[i] = 1.0 / float64(c)
		}
	}

	out := make([]float64, len(raw))
	vecmath.MulBlock(out, raw, reciprocals)
	return out
}

// Estimate returns the energy of one band per traced path
func (tp *Tape) Estimate(band, paths int) []float64 {
	raw := tp.Raw(band)
	if paths <= 0 {
		return raw
	}
	out := make([]float64, len(raw))
	vecmath.ScaleBlock(out, raw, 1.0/float64(paths))
	return out
}

// Energy returns the total energy recorded in one band
func (tp *Tape) Energy(band int) float64 {
	return sum(tp.Raw(band))
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Clear zeroes the tape
func (tp *Tape) Clear() {
	_, bands := tp.hist.Size()
	unlock := tp.lockColumns(0, bands)
	defer unlock()
	tp.hist.Clear()
}

// Histogram returns the underlying storage. Callers must not write to it while a render is running.
func (tp *Tape) Histogram() *histogram.Histogram {
	return tp.hist
}
