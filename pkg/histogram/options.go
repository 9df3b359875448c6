package histogram

import "github.com/df07/go-acoustic-raytracer/pkg/filter"

// Option configures a Histogram at construction time
type Option func(*config)

type config struct {
	filter     filter.Filter
	border     bool
	timeRange  *[2]float64
	freqRange  *[2]float64
	freqEdges  []float64
	offsetTime int
	offsetFreq int
}

func defaultConfig() config {
	return config{border: true}
}

// WithFilter splats every sample along the time axis with f
func WithFilter(f filter.Filter) Option {
	return func(c *config) {
		c.filter = f
	}
}

// WithBorder controls whether a filter gets padding bins around the window.
// Enabled by default; has no effect without a filter.
func WithBorder(enabled bool) Option {
	return func(c *config) {
		c.border = enabled
	}
}

// WithTimeRange sets the continuous time interval [lo, hi) covered by the time bins
func WithTimeRange(lo, hi float64) Option {
	return func(c *config) {
		c.timeRange = &[2]float64{lo, hi}
	}
}

// WithFrequencyRange sets the continuous interval [lo, hi) split linearly into frequency bins
func WithFrequencyRange(lo, hi float64) Option {
	return func(c *config) {
		c.freqRange = &[2]float64{lo, hi}
	}
}

// WithFrequencyBins sets explicit frequency bin edges; bin i covers [edges[i], edges[i+1])
func WithFrequencyBins(edges []float64) Option {
	return func(c *config) {
		c.freqEdges = append([]float64(nil), edges...)
	}
}

// WithOffset places the histogram window at (time, freq) in a larger global buffer
func WithOffset(time, freq int) Option {
	return func(c *config) {
		c.offsetTime = time
		c.offsetFreq = freq
	}
}
