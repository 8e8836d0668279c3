package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"chargecore/internal/cache"
	"chargecore/internal/engine"
	"chargecore/internal/ocpp"
	"chargecore/internal/ocpp/protocol"
	"chargecore/internal/store"
)

// NewStopTransactionHandler settles the ledger session for a finished charge.
// Meter readings are Wh; energy is the delta against the reading at start,
// clamped at zero when the meter runs backwards.
func NewStopTransactionHandler(
	ledger store.Store,
	eng *engine.Engine,
	txStore *TransactionStore,
	activeCache *cache.ActiveSessions,
	logger *zap.Logger,
) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.StopTransactionRequest](payload)
		if err != nil {
			return nil, err
		}

		invalid := protocol.StopTransactionResponse{
			IdTagInfo: protocol.IdTagInfo{Status: protocol.AuthorizationInvalid},
		}

		txCtx, tracked := txStore.Get(req.TransactionID)

		callerUserID := txCtx.UserID
		if req.IdTag != "" {
			user, err := ledger.GetUserByTag(ctx, req.IdTag)
			if err != nil {
				if errors.Is(err, store.ErrUserNotFound) {
					return invalid, nil
				}
				return nil, err
			}
			callerUserID = user.ID
		}
		if callerUserID == 0 {
			return invalid, nil
		}

		var meterStart int64
		if tracked {
			meterStart = txCtx.MeterStart
		}
		var energyKWh float64
		if req.MeterStop > meterStart {
			energyKWh = float64(req.MeterStop-meterStart) / 1000.0
		}

		result, err := eng.Stop(ctx, req.TransactionID, callerUserID, energyKWh)
		if err != nil {
			switch {
			case errors.Is(err, engine.ErrSessionNotFound),
				errors.Is(err, engine.ErrOwnershipMismatch),
				errors.Is(err, engine.ErrAlreadySettled),
				errors.Is(err, engine.ErrInvalidEnergy):
				// Replays and cross-account stops get a protocol-level
				// rejection, never a second settlement.
				logger.Info("stop transaction rejected",
					zap.String("charge_point_id", chargePointID),
					zap.Int64("transaction_id", req.TransactionID),
					zap.Error(err),
				)
				return invalid, nil
			default:
				return nil, err
			}
		}

		txStore.Delete(req.TransactionID)
		if err := activeCache.Delete(ctx, req.TransactionID); err != nil {
			logger.Warn("failed to delete active session cache", zap.Int64("session_id", req.TransactionID), zap.Error(err))
		}

		status := protocol.AuthorizationAccepted
		if result.Outcome == engine.OutcomeExpired {
			status = protocol.AuthorizationExpired
		}
		return protocol.StopTransactionResponse{
			IdTagInfo: protocol.IdTagInfo{Status: status},
		}, nil
	}
}
