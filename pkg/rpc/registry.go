// Package rpc maps envelope identifiers to handler functions and turns
// inbound frames into correlated responses with resolved delivery targets.
//
// Handlers are plain Go functions registered under a (module, function)
// pair. A handler declares only the parameters it needs: the request header,
// a body type, both (in either order), or neither. Signatures are validated
// once at registration; dispatch is a case-insensitive table lookup plus a
// prebuilt binder closure, never a runtime type query.
package rpc

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/gloomgate-dev/gloomgate/pkg/protocol"
)

// Module is implemented by handler collections that register themselves.
// How modules are discovered (static wiring, configuration) is up to the
// caller; the registry only depends on this contract.
type Module interface {
	// Name returns the module name requests address handlers under.
	Name() string

	// Register adds the module's handlers to the registry.
	Register(reg *Registry) error
}

// Handler is a registered callable: the original identifier plus a binder
// that decodes the request into the declared parameters and invokes the
// function.
type Handler struct {
	Module   string
	Function string

	call func(req *protocol.Request) (any, error)
}

// Call binds the request to the handler's declared parameters and invokes
// it. A body that cannot be decoded into the declared type yields an error
// wrapping ErrBadRequestBody.
func (h *Handler) Call(req *protocol.Request) (any, error) {
	return h.call(req)
}

// Registry holds all registered handlers keyed by lower-cased module and
// function names. It is populated at startup and read-only afterwards, so
// lookups need no locking.
type Registry struct {
	modules map[string]map[string]*Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]map[string]*Handler)}
}

var (
	headerType = reflect.TypeOf(&protocol.RequestHeader{})
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
)

// Register adds fn under the given (module, function) pair.
//
// Supported signatures (B is any JSON-decodable body type, R any result):
//
//	func() R
//	func(*protocol.RequestHeader) R
//	func(B) R
//	func(*protocol.RequestHeader, B) R
//	func(B, *protocol.RequestHeader) R
//
// each optionally with a trailing error return. Anything else fails with
// ErrInvalidHandlerSignature; the caller is expected to treat that as a
// startup fault, skip the handler, and keep going.
func (r *Registry) Register(module, function string, fn any) error {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return fmt.Errorf("%w: %s.%s is not a function", ErrInvalidHandlerSignature, module, function)
	}

	binder, err := buildBinder(t, reflect.ValueOf(fn))
	if err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrInvalidHandlerSignature, module, function, err)
	}

	mkey := strings.ToLower(module)
	fkey := strings.ToLower(function)

	funcs, ok := r.modules[mkey]
	if !ok {
		funcs = make(map[string]*Handler)
		r.modules[mkey] = funcs
	}
	if _, exists := funcs[fkey]; exists {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateHandler, module, function)
	}

	funcs[fkey] = &Handler{Module: module, Function: function, call: binder}
	return nil
}

// MustRegister is like Register but panics on error. Intended for static
// startup wiring where a bad signature is a programming mistake.
func (r *Registry) MustRegister(module, function string, fn any) {
	if err := r.Register(module, function, fn); err != nil {
		panic(err)
	}
}

// Resolve looks up the handler for an identifier, case-insensitively.
func (r *Registry) Resolve(id protocol.Identifier) (*Handler, error) {
	funcs, ok := r.modules[strings.ToLower(id.Module)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, id.Module)
	}
	h, ok := funcs[strings.ToLower(id.Function)]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownFunction, id.Module, id.Function)
	}
	return h, nil
}

// buildBinder validates the function signature and returns the dispatch
// closure. All reflection happens here, once, at registration time.
func buildBinder(t reflect.Type, v reflect.Value) (func(*protocol.Request) (any, error), error) {
	if t.IsVariadic() {
		return nil, fmt.Errorf("variadic handlers are not supported")
	}
	if t.NumIn() > 2 {
		return nil, fmt.Errorf("handler declares %d parameters, at most 2 allowed", t.NumIn())
	}

	// Classify parameters: at most one header, at most one body, any order.
	headerIdx, bodyIdx := -1, -1
	var bodyType reflect.Type
	for i := 0; i < t.NumIn(); i++ {
		if t.In(i) == headerType {
			if headerIdx >= 0 {
				return nil, fmt.Errorf("handler declares the request header twice")
			}
			headerIdx = i
		} else {
			if bodyIdx >= 0 {
				return nil, fmt.Errorf("handler declares more than one body parameter")
			}
			bodyIdx = i
			bodyType = t.In(i)
		}
	}

	// Results: a value, a value plus error, or error alone.
	resultIdx, errIdx := -1, -1
	switch t.NumOut() {
	case 1:
		if t.Out(0) == errorType {
			errIdx = 0
		} else {
			resultIdx = 0
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("second return value must be error")
		}
		resultIdx, errIdx = 0, 1
	default:
		return nil, fmt.Errorf("handler must return a value, (value, error), or error")
	}

	return func(req *protocol.Request) (any, error) {
		args := make([]reflect.Value, t.NumIn())
		if headerIdx >= 0 {
			args[headerIdx] = reflect.ValueOf(&req.Header)
		}
		if bodyIdx >= 0 {
			bodyPtr := reflect.New(bodyType)
			if len(req.Body) > 0 {
				if err := json.Unmarshal(req.Body, bodyPtr.Interface()); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrBadRequestBody, err)
				}
			}
			args[bodyIdx] = bodyPtr.Elem()
		}

		out := v.Call(args)

		if errIdx >= 0 {
			if errVal := out[errIdx]; !errVal.IsNil() {
				return nil, errVal.Interface().(error)
			}
		}
		if resultIdx >= 0 {
			return out[resultIdx].Interface(), nil
		}
		return nil, nil
	}, nil
}
