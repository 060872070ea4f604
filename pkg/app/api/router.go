package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainsafe/wallet-orchestrator/pkg/auth"
	"github.com/chainsafe/wallet-orchestrator/pkg/config"
	"github.com/chainsafe/wallet-orchestrator/pkg/observe"
	"github.com/chainsafe/wallet-orchestrator/pkg/orchestrator"
	"github.com/chainsafe/wallet-orchestrator/pkg/reader"
	"github.com/chainsafe/wallet-orchestrator/pkg/sbt"
	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

const defaultRequestTimeout = 60 * time.Second

// WalletService is the connection surface exposed over HTTP.
type WalletService interface {
	State() wallet.ConnectionState
	Connectors() []wallet.ConnectorDescriptor
	PreferredConnector() (wallet.ConnectorDescriptor, bool)
	Connect(ctx context.Context, connectorID string) (wallet.ConnectionState, error)
	Disconnect(ctx context.Context) wallet.ConnectionState
	Reconnect(ctx context.Context) (wallet.ConnectionState, error)
}

// FaucetService claims and returns faucet tokens.
type FaucetService interface {
	Snapshot() reader.Snapshot
	Claim(ctx context.Context, recipient string) (*orchestrator.Record, error)
	Return(ctx context.Context) (*orchestrator.Record, error)
}

// SBTService reads and mints the soul-bound token.
type SBTService interface {
	Status(ctx context.Context) (sbt.Status, error)
	Mint(ctx context.Context, name, description string) (*orchestrator.Record, error)
}

// Refresher forces a contract state refresh.
type Refresher interface {
	Refresh(ctx context.Context) reader.Snapshot
}

// EventLog lists recent observability events.
type EventLog interface {
	Events() []observe.Event
}

// Deps are the services behind the routes. SBT and Events may be nil.
type Deps struct {
	Wallet    WalletService
	Faucet    FaucetService
	Refresher Refresher
	SBT       SBTService
	Events    EventLog
	Validator *auth.JWTValidator
	// SubmitTimeout bounds transaction routes, confirmation polling included.
	SubmitTimeout time.Duration
}

// NewRouter builds the API router.
func NewRouter(deps Deps, monitoring config.MonitoringConfig, logger *zap.Logger) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout(deps.SubmitTimeout)))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if monitoring.MetricsEnabled() {
		path := monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	h := &HTTP{deps: deps, logger: logger}
	guard := auth.Middleware(deps.Validator, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/connectors", handle(h.connectors))
		r.Get("/connection", handle(h.connection))
		r.Get("/faucet", handle(h.faucet))
		if deps.SBT != nil {
			r.Get("/sbt", handle(h.sbtStatus))
		}
		if deps.Events != nil {
			r.Get("/events", handle(h.events))
		}

		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Post("/connection", handle(h.connect))
			r.Delete("/connection", handle(h.disconnect))
			r.Post("/connection/reconnect", handle(h.reconnect))
			r.Post("/faucet/refresh", handle(h.refresh))
			r.Post("/faucet/claim", handle(h.claim))
			r.Post("/faucet/return", handle(h.returnTokens))
			if deps.SBT != nil {
				r.Post("/sbt/mint", handle(h.mint))
			}
		})
	})

	return r
}

// requestTimeout leaves room for the transaction routes to finish polling.
func requestTimeout(submit time.Duration) time.Duration {
	if submit+5*time.Second > defaultRequestTimeout {
		return submit + 5*time.Second
	}
	return defaultRequestTimeout
}
