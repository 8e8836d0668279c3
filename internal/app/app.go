// Package app wires the service graph: ledger store, session engine, the
// authenticated HTTP API, and the charge point WebSocket link. Both ingress
// paths share one engine instance.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargecore/internal/cache"
	"chargecore/internal/config"
	"chargecore/internal/engine"
	httpserver "chargecore/internal/http"
	"chargecore/internal/http/handlers"
	"chargecore/internal/http/middleware"
	"chargecore/internal/ocpp"
	ocpphandlers "chargecore/internal/ocpp/handlers"
	"chargecore/internal/ocpp/protocol"
	libredis "chargecore/internal/redis"
	"chargecore/internal/store"
	memorystore "chargecore/internal/store/memory"
	postgresstore "chargecore/internal/store/postgres"
	sqlitestore "chargecore/internal/store/sqlite"
	"chargecore/internal/ws"
)

// App holds the composed service.
type App struct {
	apiServer   *httpserver.Server
	ocppServer  *httpserver.Server
	manager     *ws.Manager
	ledger      store.Store
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ledger, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	var activeCache *cache.ActiveSessions
	if cfg.Redis.Addr != "" {
		redisClient, err = libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			ledger.Close()
			return nil, err
		}
		activeCache = cache.NewActiveSessions(redisClient, cfg.ActiveSessionTTL())
	}

	pricing, err := engine.NewPricing(cfg.Pricing.RatePerKWh)
	if err != nil {
		ledger.Close()
		return nil, err
	}
	eng := engine.New(ledger, pricing, logger)

	sessionHandlers := handlers.NewSessionHandlers(eng, activeCache, logger)
	routes := httpserver.Routes{
		SessionStart:   sessionHandlers.Start,
		SessionStop:    sessionHandlers.Stop,
		Me:             handlers.NewMeHandler(ledger),
		ActiveSessions: handlers.NewActiveSessionsHandler(ledger),
		Health:         handlers.NewHealthHandler(),
		Auth:           middleware.AuthMiddleware(cfg.Auth.JWTSecret),
	}
	apiServer := httpserver.NewServer(cfg.APIAddress(), httpserver.NewRouter(routes), logger)

	txStore := ocpphandlers.NewTransactionStore()
	router := ocpp.NewRouter()
	router.Register(protocol.ActionBootNotification, ocpphandlers.NewBootNotificationHandler(logger))
	router.Register(protocol.ActionHeartbeat, ocpphandlers.NewHeartbeatHandler())
	router.Register(protocol.ActionStatusNotification, ocpphandlers.NewStatusNotificationHandler(logger))
	router.Register(protocol.ActionStartTransaction, ocpphandlers.NewStartTransactionHandler(ledger, eng, txStore, activeCache, logger))
	router.Register(protocol.ActionStopTransaction, ocpphandlers.NewStopTransactionHandler(ledger, eng, txStore, activeCache, logger))
	processor := ocpp.NewProcessor(ocpp.NewParser(), router, logger)

	manager := ws.NewManager(cfg.PingInterval())
	wsServer := ws.NewServer(manager, processor, cfg.WriteTimeout(), logger)

	ocppMux := http.NewServeMux()
	ocppMux.HandleFunc("/ocpp/ws", wsServer.HandleWS)
	ocppServer := httpserver.NewServer(cfg.OCPPAddress(), ocppMux, logger)

	return &App{
		apiServer:   apiServer,
		ocppServer:  ocppServer,
		manager:     manager,
		ledger:      ledger,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts both listeners and the websocket keepalive loop, and blocks
// until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.manager.Start(runCtx)

	errCh := make(chan error, 2)
	go func() { errCh <- a.apiServer.Run(runCtx) }()
	go func() { errCh <- a.ocppServer.Run(runCtx) }()

	err := <-errCh
	cancel()
	if second := <-errCh; err == nil {
		err = second
	}
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return postgresstore.NewStore(cfg.Storage.DSN)
	case config.DriverSQLite:
		return sqlitestore.NewStore(cfg.Storage.Path)
	case config.DriverMemory:
		return memorystore.NewStore(), nil
	default:
		return nil, fmt.Errorf("app: unknown storage driver %q", cfg.Storage.Driver)
	}
}
