// Package dummy provides trivial rpc functions used for connectivity
// checks and client smoke tests.
package dummy

import (
	"github.com/gloomgate-dev/gloomgate/pkg/protocol"
	"github.com/gloomgate-dev/gloomgate/pkg/rpc"
)

// Module is the dummy rpc module.
type Module struct{}

// NewModule creates the dummy module.
func NewModule() *Module { return &Module{} }

// Name implements rpc.Module.
func (m *Module) Name() string { return "dummy" }

// Register implements rpc.Module.
func (m *Module) Register(reg *rpc.Registry) error {
	for function, fn := range map[string]any{
		"echo":           m.Echo,
		"getownsocketid": m.GetOwnSocketID,
		"pair":           m.Pair,
	} {
		if err := reg.Register(m.Name(), function, fn); err != nil {
			return err
		}
	}
	return nil
}

// Echo returns the request body unchanged.
func (m *Module) Echo(msg string) string { return msg }

// GetOwnSocketID returns the caller's connection id as seen by the server.
func (m *Module) GetOwnSocketID(header *protocol.RequestHeader) int {
	return header.SocketID
}

// Pair echoes the body while leaving the request's target sockets intact,
// so a client can address the echo at itself and a peer.
func (m *Module) Pair(header *protocol.RequestHeader, message string) string {
	return message
}
