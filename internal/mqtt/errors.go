package mqtt

import "errors"

var (
	// ErrRefused is returned by Connect when the broker rejects the session
	// for a reason retrying cannot fix.
	ErrRefused = errors.New("mqtt: connection refused")

	// ErrNotConnected is returned when publishing without a live session.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrTimeout is returned when a connect attempt does not finish in time.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
