package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chargecore/internal/engine"
	httpserver "chargecore/internal/http"
	"chargecore/internal/http/handlers"
	"chargecore/internal/http/middleware"
	"chargecore/internal/store/memory"
)

const testSecret = "test-secret"

type api struct {
	ledger  *memory.Store
	handler http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	logger := zap.NewNop()

	ledger := memory.NewStore()
	pricing, err := engine.NewPricing(0.2)
	require.NoError(t, err)
	eng := engine.New(ledger, pricing, logger)

	sessionHandlers := handlers.NewSessionHandlers(eng, nil, logger)
	router := httpserver.NewRouter(httpserver.Routes{
		SessionStart:   sessionHandlers.Start,
		SessionStop:    sessionHandlers.Stop,
		Me:             handlers.NewMeHandler(ledger),
		ActiveSessions: handlers.NewActiveSessionsHandler(ledger),
		Health:         handlers.NewHealthHandler(),
		Auth:           middleware.AuthMiddleware(testSecret),
	})
	return &api{ledger: ledger, handler: router}
}

func token(t *testing.T, userID int64) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (a *api) do(t *testing.T, method, path, body string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestStartAndStopPaid(t *testing.T) {
	a := newAPI(t)
	user, err := a.ledger.CreateUser(context.Background(), "alice", 5)
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/session/start", "", user.ID)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := int64(decode(t, rec)["session_id"].(float64))
	require.NotZero(t, sessionID)

	rec = a.do(t, http.MethodPost, "/api/session/stop",
		fmt.Sprintf(`{"session_id":%d,"energy_kwh":1}`, sessionID), user.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decode(t, rec)
	assert.Equal(t, "paid", payload["outcome"])
	assert.InDelta(t, 4.8, payload["remaining_balance"].(float64), 1e-9)
}

func TestStopExpired(t *testing.T) {
	a := newAPI(t)
	user, err := a.ledger.CreateUser(context.Background(), "bob", 0.1)
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/session/start", "", user.ID)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := int64(decode(t, rec)["session_id"].(float64))

	rec = a.do(t, http.MethodPost, "/api/session/stop",
		fmt.Sprintf(`{"session_id":%d,"energy_kwh":10}`, sessionID), user.ID)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "expired", decode(t, rec)["outcome"])

	refreshed, err := a.ledger.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.1, refreshed.Balance)
}

func TestStartInsufficientBalance(t *testing.T) {
	a := newAPI(t)
	user, err := a.ledger.CreateUser(context.Background(), "broke", 0)
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/session/start", "", user.ID)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestStopForeignSessionReadsAsNotFound(t *testing.T) {
	a := newAPI(t)
	ctx := context.Background()
	owner, err := a.ledger.CreateUser(ctx, "alice", 5)
	require.NoError(t, err)
	intruder, err := a.ledger.CreateUser(ctx, "mallory", 5)
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/session/start", "", owner.ID)
	sessionID := int64(decode(t, rec)["session_id"].(float64))

	rec = a.do(t, http.MethodPost, "/api/session/stop",
		fmt.Sprintf(`{"session_id":%d,"energy_kwh":1}`, sessionID), intruder.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	refreshed, err := a.ledger.GetUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, refreshed.Balance)
}

func TestStopTwiceConflict(t *testing.T) {
	a := newAPI(t)
	user, err := a.ledger.CreateUser(context.Background(), "alice", 5)
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/session/start", "", user.ID)
	sessionID := int64(decode(t, rec)["session_id"].(float64))

	body := fmt.Sprintf(`{"session_id":%d,"energy_kwh":1}`, sessionID)
	rec = a.do(t, http.MethodPost, "/api/session/stop", body, user.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/session/stop", body, user.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code, "settled session reads as gone")
}

func TestStopNegativeEnergy(t *testing.T) {
	a := newAPI(t)
	user, err := a.ledger.CreateUser(context.Background(), "alice", 5)
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/session/start", "", user.ID)
	sessionID := int64(decode(t, rec)["session_id"].(float64))

	rec = a.do(t, http.MethodPost, "/api/session/stop",
		fmt.Sprintf(`{"session_id":%d,"energy_kwh":-1}`, sessionID), user.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, http.MethodPost, "/api/session/start", "", 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/session/start", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	a.handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestMe(t *testing.T) {
	a := newAPI(t)
	user, err := a.ledger.CreateUser(context.Background(), "alice", 5)
	require.NoError(t, err)

	rec := a.do(t, http.MethodGet, "/api/me", "", user.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decode(t, rec)
	assert.Equal(t, "alice", payload["username"])
	assert.Equal(t, 5.0, payload["balance"])
}

func TestActiveSessionsListing(t *testing.T) {
	a := newAPI(t)
	user, err := a.ledger.CreateUser(context.Background(), "alice", 5)
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/session/start", "", user.ID)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/sessions/active", "", user.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decode(t, rec)["sessions"].([]interface{})
	assert.Len(t, sessions, 1)
}

func TestHealthNoAuth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/health", "", 0)
	assert.Equal(t, http.StatusOK, rec.Code)
}
