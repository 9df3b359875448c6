package renderer

import (
	"fmt"
	"time"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/filter"
	"github.com/df07/go-acoustic-raytracer/pkg/integrator"
)

// RenderConfig contains configuration for a time dependent render
type RenderConfig struct {
	SamplesPerPixel int           // Paths per time-step slot and band over the whole render
	SamplesPerPass  int           // Paths per slot in one task (0 = all samples in one pass)
	NumWorkers      int           // Number of parallel workers (0 = use CPU count)
	Timeout         time.Duration // Wall-clock limit (0 = none)
	Filter          filter.Filter // Time reconstruction filter (nil = plain binning)
	Integrator      integrator.Config
}

// DefaultRenderConfig returns sensible default values
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		SamplesPerPixel: 64,
		SamplesPerPass:  16,
		NumWorkers:      0, // Auto-detect CPU count
		Integrator:      integrator.DefaultConfig(),
	}
}

// EffectiveSamplesPerPass clamps the pass size to the total sample count
func (c RenderConfig) EffectiveSamplesPerPass() int {
	if c.SamplesPerPass <= 0 {
		return c.SamplesPerPixel
	}
	return min(c.SamplesPerPass, c.SamplesPerPixel)
}

// Passes returns the number of passes each band is split into
func (c RenderConfig) Passes() int {
	perPass := c.EffectiveSamplesPerPass()
	if perPass <= 0 {
		return 0
	}
	return (c.SamplesPerPixel + perPass - 1) / perPass
}

// Validate reports the first invalid setting
func (c RenderConfig) Validate() error {
	if c.SamplesPerPixel <= 0 {
		return fmt.Errorf("%w: sample count must be positive, got %d", core.ErrConfig, c.SamplesPerPixel)
	}
	if c.SamplesPerPass < 0 {
		return fmt.Errorf("%w: samples per pass must not be negative, got %d", core.ErrConfig, c.SamplesPerPass)
	}
	if perPass := c.EffectiveSamplesPerPass(); c.SamplesPerPixel%perPass != 0 {
		return fmt.Errorf("%w: sample count (%d) must be a multiple of samples per pass (%d)",
			core.ErrConfig, c.SamplesPerPixel, perPass)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("%w: worker count must not be negative, got %d", core.ErrConfig, c.NumWorkers)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %v", core.ErrConfig, c.Timeout)
	}
	return c.Integrator.Validate()
}
