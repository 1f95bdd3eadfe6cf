package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gloomgate-dev/gloomgate/pkg/protocol"
)

const tracerName = "gloomgate"

// Router turns a raw inbound frame into exactly one response envelope plus
// the list of connection ids it should be delivered to.
//
// Dispatch never returns an error: every failure mode (undecodable frame,
// unknown identifier, bad body, handler error, handler panic) is converted
// into a 400 envelope targeted at the originating connection only.
type Router struct {
	registry *Registry
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewRouter creates a Router over the given registry.
func NewRouter(registry *Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: registry,
		logger:   logger.With("component", "router"),
		tracer:   otel.Tracer(tracerName),
	}
}

// Dispatch processes one inbound frame from the connection identified by
// originID and returns the response together with its resolved targets.
func (r *Router) Dispatch(ctx context.Context, raw []byte, originID int) (*protocol.Response, []int) {
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		r.logger.Error("request decode failed", "conn_id", originID, "error", err)
		return r.errorResponse(fmt.Sprintf("failed to decode request: %v", err), "", originID)
	}

	// The origin is always authoritative; a socket id supplied on the wire
	// is discarded.
	req.Header.SocketID = originID

	r.logger.Info("request received",
		"conn_id", originID,
		"module", req.Header.Identifier.Module,
		"function", req.Header.Identifier.Function,
		"message_number", req.Header.MessageNumber)

	handler, err := r.registry.Resolve(req.Header.Identifier)
	if err != nil {
		msg := fmt.Sprintf("failed to call function %s at module %s: %v",
			req.Header.Identifier.Function, req.Header.Identifier.Module, err)
		r.logger.Error("resolve failed", "conn_id", originID, "error", err)
		return r.errorResponse(msg, req.Header.MessageNumber, originID)
	}

	body, err := r.invoke(ctx, handler, req, originID)
	if err != nil {
		msg := fmt.Sprintf("failed to process request for function %s at module %s: %v",
			req.Header.Identifier.Function, req.Header.Identifier.Module, err)
		r.logger.Error("handler failed",
			"conn_id", originID,
			"module", handler.Module,
			"function", handler.Function,
			"error", err)
		return r.errorResponse(msg, req.Header.MessageNumber, originID)
	}

	// Handlers fan out by rewriting TargetSockets on the header they were
	// handed; an empty list means "reply to the origin only".
	targets := req.Header.TargetSockets
	if len(targets) == 0 {
		targets = []int{originID}
	}

	resp := &protocol.Response{
		Header: protocol.ResponseHeader{
			Identifier:    req.Header.Identifier,
			MessageNumber: req.Header.MessageNumber,
			TargetSockets: targets,
			StatusCode:    protocol.StatusOK,
		},
		Body: body,
	}
	return resp, targets
}

// invoke calls the handler inside a trace span, converting panics into
// errors so one misbehaving handler cannot take down the connection.
func (r *Router) invoke(ctx context.Context, handler *Handler, req *protocol.Request, originID int) (body any, err error) {
	_, span := r.tracer.Start(ctx, "rpc.dispatch", trace.WithAttributes(
		attribute.String("rpc.module", handler.Module),
		attribute.String("rpc.function", handler.Function),
		attribute.Int("conn.id", originID),
	))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
			r.logger.Error("handler panic",
				"module", handler.Module,
				"function", handler.Function,
				"panic", rec,
				"stack", string(debug.Stack()))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return handler.Call(req)
}

func (r *Router) errorResponse(message, messageNumber string, originID int) (*protocol.Response, []int) {
	targets := []int{originID}
	resp := protocol.NewErrorResponse(message, targets)
	resp.Header.MessageNumber = messageNumber
	return resp, targets
}
