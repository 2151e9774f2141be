package domain

import "errors"

var (
	// ErrFeedClosed is returned when the sample feed reaches a clean end of stream.
	ErrFeedClosed = errors.New("sample feed closed")

	// ErrFeedInterrupted wraps a transport failure of the sample feed.
	ErrFeedInterrupted = errors.New("sample feed interrupted")

	// ErrMissingSignal is returned when a payload lacks a numeric value for a configured signal.
	ErrMissingSignal = errors.New("missing signal value")

	// ErrMissingTimestamp is returned when a payload has no usable timestamp.
	ErrMissingTimestamp = errors.New("missing sample timestamp")

	// ErrDuplicateRule is returned when two rules are registered under the same name.
	ErrDuplicateRule = errors.New("rule already registered")

	// ErrInvalidRule is returned when a rule has no name or no evaluation function.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrNoSignals is returned when a pipeline is configured without any signal.
	ErrNoSignals = errors.New("no signals configured")
)
