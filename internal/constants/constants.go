// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Session timing constants
const (
	// FramePollInterval is how often the live stream is sampled while capturing
	FramePollInterval = 100 * time.Millisecond

	// ProgressTickInterval is how often scan progress advances by one percent
	ProgressTickInterval = 30 * time.Millisecond

	// EnrollmentRounds is the number of capture rounds an enrollment averages
	EnrollmentRounds = 3

	// MaxProgress is the progress value that ends a capture round
	MaxProgress = 100
)

// Channel buffer sizes
const (
	// EventChannelBuffer is the buffer size for state event listener channels.
	// Progress events are frequent; a slow listener drops them rather than
	// stalling the session.
	EventChannelBuffer = 256
)

// HTTP server constants
const (
	// ShutdownTimeout bounds graceful shutdown of the control API
	ShutdownTimeout = 10 * time.Second
)
