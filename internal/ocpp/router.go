package ocpp

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// HandlerFunc processes a message payload and returns the response body.
type HandlerFunc func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error)

// Router dispatches OCPP actions to handlers.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter returns router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Register attaches handler to action.
func (r *Router) Register(action string, handler HandlerFunc) {
	r.handlers[action] = handler
}

// Route executes handler for message.
func (r *Router) Route(ctx context.Context, chargePointID string, msg *Message) (interface{}, error) {
	handler, ok := r.handlers[msg.Action]
	if !ok {
		return nil, fmt.Errorf("ocpp: unsupported action %s", msg.Action)
	}
	return handler(ctx, chargePointID, msg.Payload)
}

// Processor ties together parsing, routing, and response encoding.
type Processor struct {
	parser *Parser
	router *Router
	logger *zap.Logger
}

// NewProcessor builds Processor.
func NewProcessor(parser *Parser, router *Router, logger *zap.Logger) *Processor {
	return &Processor{
		parser: parser,
		router: router,
		logger: logger,
	}
}

// Process handles a raw frame and returns response frame bytes.
func (p *Processor) Process(ctx context.Context, chargePointID string, raw []byte) ([]byte, error) {
	msg, err := p.parser.Parse(raw)
	if err != nil {
		return nil, err
	}

	responsePayload, err := p.router.Route(ctx, chargePointID, msg)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("ocpp handler failed", zap.String("action", msg.Action), zap.Error(err))
		}
		return BuildCallError(msg.UniqueID, "InternalError", err.Error())
	}

	if responsePayload == nil {
		return nil, nil
	}

	respBytes, err := BuildCallResult(msg.UniqueID, responsePayload)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("encode ocpp response failed", zap.Error(err))
		}
		return nil, err
	}

	return respBytes, nil
}

// Decode convenience helper for handlers.
func Decode[T any](payload json.RawMessage) (T, error) {
	var target T
	if err := json.Unmarshal(payload, &target); err != nil {
		var zero T
		return zero, err
	}
	return target, nil
}
