// Package protocol defines the request/response envelope exchanged over
// websocket text frames and the codec for it.
//
// Every inbound frame is a Request: a header naming a (module, function)
// pair plus an opaque JSON body. Every outbound frame is a Response carrying
// the correlated message number, a status code, and the resolved set of
// target connection ids. The body stays a json.RawMessage on the way in and
// is only decoded into a concrete type once the handler is resolved.
package protocol

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// Identifier names a handler as a (module, function) pair.
// Matching against registered handlers is case-insensitive.
type Identifier struct {
	Module   string `json:"module"`
	Function string `json:"function"`
}

// Well-known identifiers used for synthesized responses.
var (
	// ErrorIdentifier is stamped on every 400 error envelope.
	ErrorIdentifier = Identifier{Module: "Error", Function: "Error"}

	// BroadcastIdentifier is stamped on server-initiated broadcast messages.
	BroadcastIdentifier = Identifier{Module: "Broadcast", Function: "Broadcast"}
)

// RequestHeader is the header of an inbound envelope.
//
// SocketID is always overwritten by the router with the originating
// connection id; a value supplied on the wire is discarded.
type RequestHeader struct {
	Identifier    Identifier `json:"identifier"`
	MessageNumber string     `json:"messageNumber"`
	TargetSockets []int      `json:"targetSockets,omitempty"`
	SocketID      int        `json:"socketId,omitempty"`
}

// ResponseHeader is the header of an outbound envelope.
type ResponseHeader struct {
	Identifier    Identifier `json:"identifier"`
	MessageNumber string     `json:"messageNumber"`
	TargetSockets []int      `json:"targetSockets"`
	StatusCode    int        `json:"statusCode"`
}

// Request is a decoded inbound envelope. The body is kept opaque until the
// router binds it to the resolved handler's declared parameter type.
type Request struct {
	Header RequestHeader   `json:"header"`
	Body   json.RawMessage `json:"body"`
}

// Response is an outbound envelope.
type Response struct {
	Header ResponseHeader `json:"header"`
	Body   any            `json:"body"`
}

// Status codes carried in response headers.
const (
	StatusOK         = 200
	StatusBadRequest = 400
)

// NewMessageNumber returns a fresh correlation id in the format clients are
// expected to generate: a high-resolution timestamp plus a random suffix.
// The server never generates message numbers for request/response pairs
// (those are echoed verbatim); this exists for broadcasts and tests.
func NewMessageNumber() string {
	return fmt.Sprintf("%d - %d", time.Now().UnixNano(), rand.Intn(999999))
}
