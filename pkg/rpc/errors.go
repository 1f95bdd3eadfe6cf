package rpc

import "errors"

// Sentinel errors for registration and dispatch failures.
var (
	// ErrUnknownModule is returned when no registered module matches the
	// request identifier.
	ErrUnknownModule = errors.New("rpc: unknown module")

	// ErrUnknownFunction is returned when the module exists but has no
	// function matching the request identifier.
	ErrUnknownFunction = errors.New("rpc: unknown function")

	// ErrInvalidHandlerSignature is returned at registration time when a
	// handler function does not match any supported parameter shape.
	ErrInvalidHandlerSignature = errors.New("rpc: invalid handler signature")

	// ErrBadRequestBody is returned when a request body cannot be decoded
	// into the type the handler declares.
	ErrBadRequestBody = errors.New("rpc: bad request body")

	// ErrDuplicateHandler is returned when a (module, function) pair is
	// registered twice.
	ErrDuplicateHandler = errors.New("rpc: handler already registered")
)
