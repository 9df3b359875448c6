package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/df07/go-acoustic-raytracer/pkg/core"
)

// Resolution is the number of tabulated samples across a filter's support
const Resolution = 65

// Filter is a 1D reconstruction filter used to splat samples across neighbouring time bins
type Filter interface {
	Name() string
	// Radius is the half width of the filter support in bins
	Radius() float64
	// Eval returns the filter weight at offset x from the sample; zero outside [-Radius, Radius]
	Eval(x float64) float64
}

// Tabulated is a filter evaluated from a lookup table generated by a window function
type Tabulated struct {
	name   string
	radius float64
	table  []float64
}

func newTabulated(name string, radius float64, t window.Type, opts ...window.Option) *Tabulated {
	return &Tabulated{
		name:   name,
		radius: radius,
		table:  window.Generate(t, Resolution, opts...),
	}
}

// NewBox creates a box filter covering exactly one bin
func NewBox() *Tabulated {
	return newTabulated("box", 0.5, window.TypeRectangular)
}

// NewTent creates a tent (triangle) filter with radius 1
func NewTent() *Tabulated {
	return newTabulated("tent", 1.0, window.TypeTriangle)
}

// NewGaussian creates a truncated gaussian with standard deviation 0.5 and radius 2.
// The tail value at the radius is subtracted so the filter reaches zero at its edge.
func NewGaussian() *Tabulated {
	const stddev, radius = 0.5, 2.0
	alpha := radius / (stddev * math.Sqrt(2*math.Ln2))
	f := newTabulated("gaussian", radius, window.TypeGauss, window.WithAlpha(alpha))

	bias := math.Exp(-radius * radius / (2 * stddev * stddev))
	for i, v := range f.table {
		f.table[i] = math.Max(0, v-bias)
	}
	return f
}

// NewHann creates a raised cosine filter with the given radius
func NewHann(radius float64) *Tabulated {
	return newTabulated("hann", radius, window.TypeHann)
}

// Name returns the filter name
func (f *Tabulated) Name() string {
	return f.name
}

// Radius returns the half width of the filter support
func (f *Tabulated) Radius() float64 {
	return f.radius
}

// Eval linearly interpolates the lookup table
func (f *Tabulated) Eval(x float64) float64 {
	if x < -f.radius || x > f.radius {
		return 0.0
	}

	pos := (x/f.radius + 1) * 0.5 * float64(len(f.table)-1)
	i := int(pos)
	if i >= len(f.table)-1 {
		return f.table[len(f.table)-1]
	}
	frac := pos - float64(i)
	return f.table[i]*(1-frac) + f.table[i+1]*frac
}

// Parse returns the filter with the given name; an empty name means no filter
func Parse(name string) (Filter, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, nil
	case "box":
		return NewBox(), nil
	case "tent":
		return NewTent(), nil
	case "gaussian":
		return NewGaussian(), nil
	case "hann":
		return NewHann(1.0), nil
	default:
		return nil, fmt.Errorf("%w: unknown filter %q", core.ErrConfig, name)
	}
}
