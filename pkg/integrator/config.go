package integrator

import (
	"fmt"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
)

// Config holds the estimator settings shared by every band of a render
type Config struct {
	MaxDepth     int     // Longest path depth, -1 for unlimited
	RRDepth      int     // Depth at which Russian roulette starts
	MaxTime      float64 // Length of the recorded time window (seconds)
	TimeSteps    int     // Number of time bins across MaxTime
	HideEmitters bool    // Skip the direct emitter hit of the microphone ray
}

// DefaultConfig returns the estimator defaults: unlimited depth, roulette from depth 5
func DefaultConfig() Config {
	return Config{
		MaxDepth:  -1,
		RRDepth:   5,
		MaxTime:   1.0,
		TimeSteps: 1000,
	}
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	if c.RRDepth <= 0 {
		return fmt.Errorf("%w: rr depth must be greater than zero, got %d", core.ErrConfig, c.RRDepth)
	}
	if c.MaxDepth < 0 && c.MaxDepth != -1 {
		return fmt.Errorf("%w: max depth must be -1 (unlimited) or >= 0, got %d", core.ErrConfig, c.MaxDepth)
	}
	if !(c.MaxTime > 0) {
		return fmt.Errorf("%w: max time must be greater than zero, got %g", core.ErrConfig, c.MaxTime)
	}
	if c.TimeSteps <= 0 {
		return fmt.Errorf("%w: time steps must be positive, got %d", core.ErrConfig, c.TimeSteps)
	}
	return nil
}

// TimeBin converts a travelled distance to a continuous time bin coordinate
func (c Config) TimeBin(distance float64) float64 {
	return distance / (core.SoundSpeed * c.MaxTime) * float64(c.TimeSteps)
}

// PastWindow reports whether distance maps beyond the last time bin
func (c Config) PastWindow(distance float64) bool {
	return c.TimeBin(distance) >= float64(c.TimeSteps)
}

// DepthExceeded reports whether a path at depth has reached the configured limit
func (c Config) DepthExceeded(depth int) bool {
	return c.MaxDepth >= 0 && depth >= c.MaxDepth
}
