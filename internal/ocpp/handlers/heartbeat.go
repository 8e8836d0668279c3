package handlers

import (
	"context"
	"encoding/json"
	"time"

	"chargecore/internal/ocpp"
	"chargecore/internal/ocpp/protocol"
)

// NewHeartbeatHandler returns ack with current time.
func NewHeartbeatHandler() ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		_ = ctx
		_ = chargePointID
		return protocol.HeartbeatResponse{
			CurrentTime: time.Now().UTC(),
		}, nil
	}
}
