package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chargecore/internal/engine"
	"chargecore/internal/ocpp"
	"chargecore/internal/ocpp/handlers"
	"chargecore/internal/ocpp/protocol"
	"chargecore/internal/store/memory"
)

type link struct {
	ledger    *memory.Store
	processor *ocpp.Processor
}

func newLink(t *testing.T) *link {
	t.Helper()
	logger := zap.NewNop()

	ledger := memory.NewStore()
	pricing, err := engine.NewPricing(0.2)
	require.NoError(t, err)
	eng := engine.New(ledger, pricing, logger)

	txStore := handlers.NewTransactionStore()
	router := ocpp.NewRouter()
	router.Register(protocol.ActionBootNotification, handlers.NewBootNotificationHandler(logger))
	router.Register(protocol.ActionHeartbeat, handlers.NewHeartbeatHandler())
	router.Register(protocol.ActionStatusNotification, handlers.NewStatusNotificationHandler(logger))
	router.Register(protocol.ActionStartTransaction, handlers.NewStartTransactionHandler(ledger, eng, txStore, nil, logger))
	router.Register(protocol.ActionStopTransaction, handlers.NewStopTransactionHandler(ledger, eng, txStore, nil, logger))

	return &link{
		ledger:    ledger,
		processor: ocpp.NewProcessor(ocpp.NewParser(), router, logger),
	}
}

// call sends a CALL frame through the processor and decodes the CALLRESULT payload.
func (l *link) call(t *testing.T, action string, payload string, out interface{}) {
	t.Helper()
	raw := []byte(fmt.Sprintf(`[2,"msg-1","%s",%s]`, action, payload))
	resp, err := l.processor.Process(context.Background(), "CP001", raw)
	require.NoError(t, err)
	require.NotNil(t, resp)

	var frame []json.RawMessage
	require.NoError(t, json.Unmarshal(resp, &frame))
	require.Len(t, frame, 3, "expected CALLRESULT, got %s", resp)
	require.NoError(t, json.Unmarshal(frame[2], out))
}

func TestBootNotificationAccepted(t *testing.T) {
	l := newLink(t)

	var resp protocol.BootNotificationResponse
	l.call(t, protocol.ActionBootNotification, `{"chargePointVendor":"acme","chargePointModel":"one"}`, &resp)
	assert.Equal(t, protocol.RegistrationAccepted, resp.Status)
	assert.False(t, resp.CurrentTime.IsZero())
}

func TestStartTransactionAccepted(t *testing.T) {
	l := newLink(t)
	user, err := l.ledger.CreateUser(context.Background(), "alice", 5)
	require.NoError(t, err)

	var resp protocol.StartTransactionResponse
	l.call(t, protocol.ActionStartTransaction, `{"connectorId":1,"idTag":"alice","meterStart":1000}`, &resp)
	assert.Equal(t, protocol.AuthorizationAccepted, resp.IdTagInfo.Status)
	require.NotZero(t, resp.TransactionID)

	session, err := l.ledger.GetActiveSession(context.Background(), resp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
}

func TestStartTransactionUnknownTag(t *testing.T) {
	l := newLink(t)

	var resp protocol.StartTransactionResponse
	l.call(t, protocol.ActionStartTransaction, `{"connectorId":1,"idTag":"ghost","meterStart":0}`, &resp)
	assert.Equal(t, protocol.AuthorizationInvalid, resp.IdTagInfo.Status)
	assert.Zero(t, resp.TransactionID)
}

func TestStartTransactionNoBalance(t *testing.T) {
	l := newLink(t)
	_, err := l.ledger.CreateUser(context.Background(), "broke", 0)
	require.NoError(t, err)

	var resp protocol.StartTransactionResponse
	l.call(t, protocol.ActionStartTransaction, `{"connectorId":1,"idTag":"broke","meterStart":0}`, &resp)
	assert.Equal(t, protocol.AuthorizationInvalid, resp.IdTagInfo.Status)

	sessions, err := l.ledger.ListActiveSessions(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStopTransactionPaid(t *testing.T) {
	l := newLink(t)
	ctx := context.Background()
	user, err := l.ledger.CreateUser(ctx, "alice", 5)
	require.NoError(t, err)

	var start protocol.StartTransactionResponse
	l.call(t, protocol.ActionStartTransaction, `{"connectorId":1,"idTag":"alice","meterStart":1000}`, &start)
	require.Equal(t, protocol.AuthorizationAccepted, start.IdTagInfo.Status)

	// 1000 Wh -> 2000 Wh is 1 kWh at 0.2/kWh.
	var stop protocol.StopTransactionResponse
	l.call(t, protocol.ActionStopTransaction,
		fmt.Sprintf(`{"transactionId":%d,"idTag":"alice","meterStop":2000}`, start.TransactionID), &stop)
	assert.Equal(t, protocol.AuthorizationAccepted, stop.IdTagInfo.Status)

	refreshed, err := l.ledger.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.8, refreshed.Balance, 1e-9)

	session, err := l.ledger.ListActiveSessions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, session)
}

func TestStopTransactionExpired(t *testing.T) {
	l := newLink(t)
	ctx := context.Background()
	user, err := l.ledger.CreateUser(ctx, "bob", 0.1)
	require.NoError(t, err)

	var start protocol.StartTransactionResponse
	l.call(t, protocol.ActionStartTransaction, `{"connectorId":1,"idTag":"bob","meterStart":0}`, &start)
	require.Equal(t, protocol.AuthorizationAccepted, start.IdTagInfo.Status)

	// 10 kWh costs 2.0 against a 0.1 balance.
	var stop protocol.StopTransactionResponse
	l.call(t, protocol.ActionStopTransaction,
		fmt.Sprintf(`{"transactionId":%d,"idTag":"bob","meterStop":10000}`, start.TransactionID), &stop)
	assert.Equal(t, protocol.AuthorizationExpired, stop.IdTagInfo.Status)

	refreshed, err := l.ledger.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.1, refreshed.Balance)
}

func TestStopTransactionReplayRejected(t *testing.T) {
	l := newLink(t)
	ctx := context.Background()
	_, err := l.ledger.CreateUser(ctx, "alice", 5)
	require.NoError(t, err)

	var start protocol.StartTransactionResponse
	l.call(t, protocol.ActionStartTransaction, `{"connectorId":1,"idTag":"alice","meterStart":0}`, &start)

	stopPayload := fmt.Sprintf(`{"transactionId":%d,"idTag":"alice","meterStop":1000}`, start.TransactionID)

	var first protocol.StopTransactionResponse
	l.call(t, protocol.ActionStopTransaction, stopPayload, &first)
	require.Equal(t, protocol.AuthorizationAccepted, first.IdTagInfo.Status)

	var second protocol.StopTransactionResponse
	l.call(t, protocol.ActionStopTransaction, stopPayload, &second)
	assert.Equal(t, protocol.AuthorizationInvalid, second.IdTagInfo.Status)

	user, err := l.ledger.GetUserByTag(ctx, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 4.8, user.Balance, 1e-9, "replayed stop must not bill twice")
}

func TestStopTransactionBackwardsMeterClampsToZero(t *testing.T) {
	l := newLink(t)
	ctx := context.Background()
	_, err := l.ledger.CreateUser(ctx, "alice", 5)
	require.NoError(t, err)

	var start protocol.StartTransactionResponse
	l.call(t, protocol.ActionStartTransaction, `{"connectorId":1,"idTag":"alice","meterStart":5000}`, &start)

	var stop protocol.StopTransactionResponse
	l.call(t, protocol.ActionStopTransaction,
		fmt.Sprintf(`{"transactionId":%d,"idTag":"alice","meterStop":4000}`, start.TransactionID), &stop)
	assert.Equal(t, protocol.AuthorizationAccepted, stop.IdTagInfo.Status)

	user, err := l.ledger.GetUserByTag(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5.0, user.Balance, "zero energy settles for free")
}

func TestStopTransactionUnknownTransaction(t *testing.T) {
	l := newLink(t)
	_, err := l.ledger.CreateUser(context.Background(), "alice", 5)
	require.NoError(t, err)

	var stop protocol.StopTransactionResponse
	l.call(t, protocol.ActionStopTransaction, `{"transactionId":99,"idTag":"alice","meterStop":1000}`, &stop)
	assert.Equal(t, protocol.AuthorizationInvalid, stop.IdTagInfo.Status)
}
