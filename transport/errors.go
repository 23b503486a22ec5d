package transport

import "errors"

var (
	// ErrShortFrame is returned when a link delivers part of a packet and
	// then goes quiet or closes. The stream has no frame delimiter, so after
	// a short frame it is out of step and must be reopened.
	ErrShortFrame = errors.New("short frame")

	// ErrTimeout is returned when no packet arrives within the read timeout.
	ErrTimeout = errors.New("read timed out")
)
