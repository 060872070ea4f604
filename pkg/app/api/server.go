// Package api implements app.Runner for the wallet API server process.
package api

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/wallet-orchestrator/pkg/app/http"
	"github.com/chainsafe/wallet-orchestrator/pkg/auth"
	"github.com/chainsafe/wallet-orchestrator/pkg/config"
	"github.com/chainsafe/wallet-orchestrator/pkg/ethereum"
	"github.com/chainsafe/wallet-orchestrator/pkg/ethereum/contracts"
	"github.com/chainsafe/wallet-orchestrator/pkg/faucet"
	"github.com/chainsafe/wallet-orchestrator/pkg/observe"
	"github.com/chainsafe/wallet-orchestrator/pkg/orchestrator"
	"github.com/chainsafe/wallet-orchestrator/pkg/pgutil"
	"github.com/chainsafe/wallet-orchestrator/pkg/prefstore"
	"github.com/chainsafe/wallet-orchestrator/pkg/reader"
	"github.com/chainsafe/wallet-orchestrator/pkg/sbt"
	"github.com/chainsafe/wallet-orchestrator/pkg/session"
	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
	"github.com/chainsafe/wallet-orchestrator/pkg/watcher"
)

const (
	eventLogSize     = 256
	reconnectTimeout = 30 * time.Second
)

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes new api server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting wallet API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int64("chain_id", cfg.Ethereum.ChainID),
	)

	faucetAddr := common.HexToAddress(cfg.Contracts.Faucet)
	var sbtAddr common.Address
	if cfg.Contracts.SBT != "" {
		sbtAddr = common.HexToAddress(cfg.Contracts.SBT)
	}

	client, err := ethereum.NewClient(&cfg.Ethereum, cfg.Connectors, contracts.NewDefaultCatalog(faucetAddr, sbtAddr), logger)
	if err != nil {
		return err
	}
	defer client.Close()

	prefs, closePrefs, err := s.openPreferences(ctx, logger)
	if err != nil {
		return err
	}
	defer closePrefs()

	events := &observe.Memory{Limit: eventLogSize}
	recorder := observe.Multi(observe.NewLogRecorder(logger), events)

	connectorIDs := make([]string, 0, len(cfg.Connectors))
	for _, c := range cfg.Connectors {
		connectorIDs = append(connectorIDs, c.ID)
	}
	manager := wallet.NewManager(client,
		wallet.WithLogger(logger),
		wallet.WithRecorder(recorder),
		wallet.WithPreferences(prefs),
		wallet.WithPreferredOrder(connectorIDs...),
	)

	contractReader := reader.New(client, reader.Config{
		Faucet:          faucetAddr,
		RefreshInterval: cfg.Reader.RefreshInterval,
		FetchTimeout:    cfg.Reader.FetchTimeout,
	}, reader.WithLogger(logger), reader.WithRecorder(recorder))

	eventWatcher := watcher.New(client, contractReader, faucetAddr, nil, logger, recorder)

	orch := orchestrator.New(client,
		orchestrator.RefresherFunc(func(ctx context.Context) { contractReader.Refresh(ctx) }),
		orchestrator.Config{
			PollInterval: cfg.Orchestrator.PollInterval,
			MaxPolls:     cfg.Orchestrator.MaxPolls,
		},
		orchestrator.WithLogger(logger),
		orchestrator.WithRecorder(recorder),
	)

	deps := Deps{
		Wallet:        manager,
		Faucet:        faucet.NewService(manager, contractReader, orch, logger),
		Refresher:     contractReader,
		Events:        events,
		SubmitTimeout: cfg.Orchestrator.SubmitTimeout,
	}
	if sbtAddr != (common.Address{}) {
		deps.SBT = sbt.NewService(client, manager, orch, sbt.Config{
			Contract:     sbtAddr,
			NamePrefix:   cfg.SBT.NamePrefix,
			Description:  cfg.SBT.Description,
			DefaultImage: cfg.SBT.DefaultImage,
		}, logger)
	}
	if cfg.Auth.JWKSURL != "" {
		deps.Validator = auth.NewJWTValidator(cfg.Auth.JWKSURL, cfg.Auth.Issuer)
		logger.Info("JWT guard enabled on mutating routes", zap.String("jwks_url", cfg.Auth.JWKSURL))
	}

	binder := session.Bind(ctx, manager, contractReader, eventWatcher, logger)
	// Close runs before the deferred client close so no subscription outlives it.
	defer binder.Close()

	s.reconnect(ctx, manager, logger)

	return apphttp.ServeAndWait(ctx, NewRouter(deps, cfg.Monitoring, logger), logger, &cfg.Server)
}

// openPreferences returns the postgres store when the database is enabled and
// an in-memory store otherwise.
func (s *Server) openPreferences(ctx context.Context, logger *zap.Logger) (wallet.PreferenceStore, func(), error) {
	if !s.cfg.Database.Enabled {
		logger.Info("Database disabled, remembering the last connector in memory")
		return wallet.NewMemoryPreferences(), func() {}, nil
	}
	db, err := pgutil.ConnectDB(ctx, &s.cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return prefstore.NewStore(db), func() { _ = db.Close() }, nil
}

// reconnect restores the connector remembered from the previous run.
func (s *Server) reconnect(ctx context.Context, manager *wallet.Manager, logger *zap.Logger) {
	if !s.cfg.Database.Enabled {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, reconnectTimeout)
	defer cancel()

	st, err := manager.Reconnect(ctx)
	if err != nil {
		logger.Info("No wallet restored on startup", zap.Error(err))
		return
	}
	logger.Info("Restored wallet connection",
		zap.String("connector", st.ActiveConnectorID),
		zap.Stringer("address", st.Address))
}
