package domain

import "errors"

// Errors returned by the public API; check them with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running runner.
	ErrAlreadyRunning = errors.New("metricship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped runner.
	ErrNotRunning = errors.New("metricship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("metricship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("metricship: invalid configuration")

	// ErrNoSamples is returned when a payload would carry no samples.
	ErrNoSamples = errors.New("metricship: no samples")

	// ErrIncompleteDelivery is returned by a single-cycle run that delivered
	// fewer samples than it read.
	ErrIncompleteDelivery = errors.New("metricship: incomplete delivery")
)
