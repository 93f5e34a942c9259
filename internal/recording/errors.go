package recording

import "errors"

var (
	// ErrInvalidState is returned when a recording is requested while the
	// source is not playing. No output is produced.
	ErrInvalidState = errors.New("invalid capture state")

	// ErrMalformedBuffer is the fault recorded when the source delivers a
	// buffer with a non-positive or out of range length. It is reported in
	// Result.Fault, never returned.
	ErrMalformedBuffer = errors.New("malformed capture buffer")

	// ErrBusy is returned when a recording is already running on the same
	// recorder
	ErrBusy = errors.New("recording already in progress")

	// ErrInvalidDuration is returned for negative durations
	ErrInvalidDuration = errors.New("invalid recording duration")
)
