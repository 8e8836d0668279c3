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

// NewStartTransactionHandler opens a ledger session for the presented tag.
// The tag is resolved to a user here so the engine only ever sees user ids;
// the station gets the session id back as the OCPP transaction id.
func NewStartTransactionHandler(
	ledger store.Store,
	eng *engine.Engine,
	txStore *TransactionStore,
	activeCache *cache.ActiveSessions,
	logger *zap.Logger,
) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.StartTransactionRequest](payload)
		if err != nil {
			return nil, err
		}

		invalid := protocol.StartTransactionResponse{
			IdTagInfo: protocol.IdTagInfo{Status: protocol.AuthorizationInvalid},
		}

		user, err := ledger.GetUserByTag(ctx, req.IdTag)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				logger.Info("unknown id tag",
					zap.String("charge_point_id", chargePointID),
					zap.String("id_tag", req.IdTag),
				)
				return invalid, nil
			}
			return nil, err
		}

		session, err := eng.Start(ctx, user.ID)
		if err != nil {
			if errors.Is(err, engine.ErrInsufficientBalance) || errors.Is(err, engine.ErrUserNotFound) {
				return invalid, nil
			}
			return nil, err
		}

		txStore.Set(session.ID, TransactionContext{
			SessionID:  session.ID,
			UserID:     user.ID,
			MeterStart: req.MeterStart,
		})

		if err := activeCache.Save(ctx, cache.ActiveSession{
			SessionID:     session.ID,
			UserID:        user.ID,
			ChargePointID: chargePointID,
			ConnectorID:   req.ConnectorID,
		}); err != nil {
			logger.Warn("failed to cache active session", zap.Int64("session_id", session.ID), zap.Error(err))
		}

		return protocol.StartTransactionResponse{
			TransactionID: session.ID,
			IdTagInfo:     protocol.IdTagInfo{Status: protocol.AuthorizationAccepted},
		}, nil
	}
}
