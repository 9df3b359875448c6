// Package histogram implements the time by frequency accumulation buffer
// that acoustic paths are recorded into.
//
// Data is laid out time-major: each time row holds freqBins cells of
// channelCount values. With a reconstruction filter the time axis is padded
// by BorderSize bins on each side so splats near the window edge are kept.
// A Histogram is not safe for concurrent writes; see film.Tape for a shared buffer.
package histogram

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/filter"
)

// Histogram accumulates energy and sample counts per (time bin, frequency bin, channel)
type Histogram struct {
	timeBins, freqBins     int
	offsetTime, offsetFreq int
	channels               int
	border                 int

	data   []float64
	counts []uint32

	filter    filter.Filter
	timeRange *[2]float64
	freqRange *[2]float64
	freqEdges []float64
}

// New creates a zeroed histogram with the given number of time bins, frequency bins and channels
func New(timeBins, freqBins, channels int, opts ...Option) (*Histogram, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if timeBins <= 0 || freqBins <= 0 {
		return nil, fmt.Errorf("%w: histogram size must be positive, got %dx%d", core.ErrConfig, timeBins, freqBins)
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: channel count must be at least 1, got %d", core.ErrConfig, channels)
	}
	if err := validateRange("time", cfg.timeRange); err != nil {
		return nil, err
	}
	if err := validateRange("frequency", cfg.freqRange); err != nil {
		return nil, err
	}
	if cfg.freqEdges != nil {
		if err := validateEdges(cfg.freqEdges, freqBins); err != nil {
			return nil, err
		}
	}

	h := &Histogram{
		timeBins:   timeBins,
		freqBins:   freqBins,
		offsetTime: cfg.offsetTime,
		offsetFreq: cfg.offsetFreq,
		channels:   channels,
		filter:     cfg.filter,
		timeRange:  cfg.timeRange,
		freqRange:  cfg.freqRange,
		freqEdges:  cfg.freqEdges,
	}
	if h.splatting() && cfg.border {
		h.border = int(math.Ceil(h.filter.Radius() - 0.5))
	}

	n := channels * (timeBins + 2*h.border) * freqBins
	h.data = make([]float64, n)
	h.counts = make([]uint32, n)
	return h, nil
}

func validateRange(name string, r *[2]float64) error {
	if r == nil {
		return nil
	}
	lo, hi := r[0], r[1]
	if lo < 0 || hi < 0 {
		return fmt.Errorf("%w: %s range [%g, %g] has a negative bound", core.ErrConfig, name, lo, hi)
	}
	if !(lo < hi) {
		return fmt.Errorf("%w: %s range [%g, %g] is empty", core.ErrConfig, name, lo, hi)
	}
	return nil
}

func validateEdges(edges []float64, freqBins int) error {
	if len(edges) != freqBins+1 {
		return fmt.Errorf("%w: %d frequency bins need %d edges, got %d", core.ErrConfig, freqBins, freqBins+1, len(edges))
	}
	for i := range edges {
		if edges[i] < 0 {
			return fmt.Errorf("%w: negative frequency edge %g", core.ErrConfig, edges[i])
		}
		if i > 0 && !(edges[i] > edges[i-1]) {
			return fmt.Errorf("%w: frequency edges must be strictly increasing at index %d", core.ErrConfig, i)
		}
	}
	return nil
}

// splatting reports whether samples spread over more than one time bin
func (h *Histogram) splatting() bool {
	return h.filter != nil && h.filter.Radius() > 0.5
}

// index returns the offset of (padded time row, frequency bin, channel 0) in data
func (h *Histogram) index(row, freq int) int {
	return h.channels * (row*h.freqBins + freq)
}

// Size returns the number of time and frequency bins, excluding the border
func (h *Histogram) Size() (timeBins, freqBins int) {
	return h.timeBins, h.freqBins
}

// Offset returns the position of this window in the global bin grid
func (h *Histogram) Offset() (time, freq int) {
	return h.offsetTime, h.offsetFreq
}

// SetOffset moves the window within the global bin grid
func (h *Histogram) SetOffset(time, freq int) {
	h.offsetTime = time
	h.offsetFreq = freq
}

// ChannelCount returns the number of values stored per bin
func (h *Histogram) ChannelCount() int {
	return h.channels
}

// BorderSize returns the number of padding bins on each side of the time axis
func (h *Histogram) BorderSize() int {
	return h.border
}

// Data returns the raw padded accumulation buffer
func (h *Histogram) Data() []float64 {
	return h.data
}

// Counts returns the raw padded sample counts, parallel to Data
func (h *Histogram) Counts() []uint32 {
	return h.counts
}

// Filter returns the reconstruction filter, or nil
func (h *Histogram) Filter() filter.Filter {
	return h.filter
}

// At returns the value and count stored at a local (time, freq, channel) bin.
// Time may address the border with values in [-BorderSize, timeBins+BorderSize).
func (h *Histogram) At(time, freq, channel int) (float64, uint32) {
	i := h.index(time+h.border, freq) + channel
	return h.data[i], h.counts[i]
}

// Clear resets all values and counts to zero
func (h *Histogram) Clear() {
	clear(h.data)
	clear(h.counts)
}

// Put adds values (one per channel) at a global bin position.
// pos.X is the time coordinate and may be fractional when a filter is set;
// pos.Y is the frequency bin. Returns false without writing when the lane is
// inactive or the position lies outside the window.
func (h *Histogram) Put(pos core.Vec2, values []float64, active bool) bool {
	if !active || len(values) < h.channels {
		return false
	}
	t, f, ok := h.locate(pos)
	if !ok {
		return false
	}
	h.deposit(t, f, 0, values[:h.channels])
	return true
}

// PutBatch is the lane-masked form of Put. values holds ChannelCount entries per lane.
func (h *Histogram) PutBatch(positions []core.Vec2, values []float64, active Mask) Mask {
	result := make(Mask, len(positions))
	for lane, pos := range positions {
		if lane >= len(active) || !active[lane] {
			continue
		}
		start := lane * h.channels
		if start+h.channels > len(values) {
			continue
		}
		result[lane] = h.Put(pos, values[start:start+h.channels], true)
	}
	return result
}

// PutSpectrum writes one channel at a time; the write stops at the first channel that is rejected
func (h *Histogram) PutSpectrum(pos core.Vec2, spectrum []float64, active bool) bool {
	if len(spectrum) != h.channels {
		return false
	}
	for k, v := range spectrum {
		if !active {
			break
		}
		t, f, ok := h.locate(pos)
		active = ok
		if ok {
			h.deposit(t, f, k, []float64{v})
		}
	}
	return active
}

// PutSample discretizes a continuous (time, frequency) sample and adds values there.
// Time is mapped through the time range when one is configured, otherwise it is
// read as a local bin coordinate. Frequency uses the edge table, then the
// frequency range, and falls back to a local bin index.
func (h *Histogram) PutSample(time, freq float64, values []float64, active bool) bool {
	if !active || len(values) < h.channels {
		return false
	}

	t := time
	if h.timeRange != nil {
		lo, hi := h.timeRange[0], h.timeRange[1]
		if !(time >= lo && time < hi) {
			return false
		}
		t = linearPosition(time, lo, hi, h.timeBins)
	}

	var f int
	switch {
	case h.freqEdges != nil:
		f = DiscretizePresetBins(freq, h.freqEdges)
	case h.freqRange != nil:
		lo, hi := h.freqRange[0], h.freqRange[1]
		if !(freq >= lo && freq < hi) {
			return false
		}
		f = DiscretizeLinear(freq, lo, hi, h.freqBins)
	default:
		if math.IsNaN(freq) {
			return false
		}
		f = int(math.Floor(freq))
	}
	if f == InvalidBin {
		return false
	}

	pos := core.NewVec2(t+float64(h.offsetTime), float64(f+h.offsetFreq))
	return h.Put(pos, values, true)
}

// locate converts a global position to a local time coordinate and frequency bin
func (h *Histogram) locate(pos core.Vec2) (float64, int, bool) {
	t := pos.X - float64(h.offsetTime)
	f := math.Floor(pos.Y - float64(h.offsetFreq))

	// Comparisons are false for NaN
	if !(t >= 0 && t < float64(h.timeBins) && f >= 0 && f < float64(h.freqBins)) {
		return 0, 0, false
	}
	return t, int(f), true
}

// deposit adds values to consecutive channels starting at channel, splatting when a filter is set
func (h *Histogram) deposit(t float64, f, channel int, values []float64) {
	if !h.splatting() {
		base := h.index(int(t)+h.border, f) + channel
		for k, v := range values {
			h.data[base+k] += v
			h.counts[base+k]++
		}
		return
	}

	// Bin p is centred at p+0.5 in padded coordinates
	radius := h.filter.Radius()
	pos := t + float64(h.border) - 0.5
	lo := int(math.Max(math.Ceil(pos-radius), 0))
	hi := int(math.Min(math.Floor(pos+radius), float64(h.timeBins+2*h.border-1)))

	for row := lo; row <= hi; row++ {
		weight := h.filter.Eval(float64(row) - pos)
		base := h.index(row, f) + channel
		for k, v := range values {
			h.data[base+k] += weight * v
			h.counts[base+k]++
		}
	}
}

// Merge adds other's values and counts into this histogram. Both windows,
// including their borders, are aligned through their offsets; bins outside
// the overlap are ignored.
func (h *Histogram) Merge(other *Histogram) error {
	if other.channels != h.channels {
		return fmt.Errorf("%w: cannot merge %d channels into %d", core.ErrConfig, other.channels, h.channels)
	}

	fLo := max(other.offsetFreq, h.offsetFreq)
	fHi := min(other.offsetFreq+other.freqBins, h.offsetFreq+h.freqBins)
	if fLo >= fHi {
		return nil
	}
	n := (fHi - fLo) * h.channels

	rows := h.timeBins + 2*h.border
	for srcRow := 0; srcRow < other.timeBins+2*other.border; srcRow++ {
		dstRow := srcRow - other.border + other.offsetTime - h.offsetTime + h.border
		if dstRow < 0 || dstRow >= rows {
			continue
		}

		src := other.index(srcRow, fLo-other.offsetFreq)
		dst := h.index(dstRow, fLo-h.offsetFreq)

		vecmath.AddBlockInPlace(h.data[dst:dst+n], other.data[src:src+n])
		for k := 0; k < n; k++ {
			h.counts[dst+k] += other.counts[src+k]
		}
	}
	return nil
}

// Total returns the sum of all stored values
func (h *Histogram) Total() float64 {
	total := 0.0
	for _, v := range h.data {
		total += v
	}
	return total
}
