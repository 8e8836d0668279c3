package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"chargecore/internal/ocpp"
	"chargecore/internal/ocpp/protocol"
)

// NewBootNotificationHandler acknowledges the boot handshake. Charge point
// registration is not persisted here; the ledger only cares about the two
// transaction messages.
func NewBootNotificationHandler(logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.BootNotificationRequest](payload)
		if err != nil {
			return nil, err
		}

		logger.Info("charge point booted",
			zap.String("charge_point_id", chargePointID),
			zap.String("vendor", req.ChargePointVendor),
			zap.String("model", req.ChargePointModel),
		)

		return protocol.BootNotificationResponse{
			CurrentTime: time.Now().UTC(),
			Interval:    30,
			Status:      protocol.RegistrationAccepted,
		}, nil
	}
}
