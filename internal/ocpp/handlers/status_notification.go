package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"chargecore/internal/ocpp"
	"chargecore/internal/ocpp/protocol"
)

// NewStatusNotificationHandler logs connector state changes and acks.
func NewStatusNotificationHandler(logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.StatusNotificationRequest](payload)
		if err != nil {
			return nil, err
		}

		logger.Debug("connector status",
			zap.String("charge_point_id", chargePointID),
			zap.Int("connector_id", req.ConnectorID),
			zap.String("status", req.Status),
		)
		return protocol.StatusNotificationResponse{}, nil
	}
}
