package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyFrame is returned when a frame contains no payload.
var ErrEmptyFrame = errors.New("protocol: empty frame")

// DecodeRequest decodes a raw text frame into a Request.
// The body is left as raw JSON for the router to bind later.
func DecodeRequest(data []byte) (*Request, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("protocol: decode request: %w", err)
	}
	return &req, nil
}

// EncodeResponse serializes a Response for delivery as a text frame.
func EncodeResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode response: %w", err)
	}
	return data, nil
}

// NewErrorResponse builds a 400 envelope carrying a human-readable message,
// targeted at the given connection ids (normally just the origin).
func NewErrorResponse(message string, targets []int) *Response {
	return &Response{
		Header: ResponseHeader{
			Identifier:    ErrorIdentifier,
			TargetSockets: targets,
			StatusCode:    StatusBadRequest,
		},
		Body: message,
	}
}

// NewBroadcastResponse builds a server-initiated broadcast envelope.
// Broadcast responses carry no message number; they correlate to nothing.
func NewBroadcastResponse(body any) *Response {
	return &Response{
		Header: ResponseHeader{
			Identifier: BroadcastIdentifier,
			StatusCode: StatusOK,
		},
		Body: body,
	}
}
