package core

// Logger interface for renderer logging
type Logger interface {
	Printf(format string, args ...interface{})
}

// SoundSpeed is the propagation speed used to convert path length to time (m/s)
const SoundSpeed = 343.0
