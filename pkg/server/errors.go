package server

import "errors"

var (
	// ErrConnClosed is returned when a frame is queued on a connection that
	// has already left the open state.
	ErrConnClosed = errors.New("server: connection closed")

	// ErrServerClosed is returned when an accept arrives after shutdown
	// began.
	ErrServerClosed = errors.New("server: closed")
)
