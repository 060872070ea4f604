package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/chainsafe/wallet-orchestrator/pkg/config"
	"github.com/chainsafe/wallet-orchestrator/pkg/migrations/walletdb"
	"github.com/chainsafe/wallet-orchestrator/pkg/pgutil"
	mghelper "github.com/chainsafe/wallet-orchestrator/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	// connector keys and WALLET_* overrides may live in a local .env
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading configuration file: %s\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logger: %s\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := pgutil.ConnectDB(ctx, &cfg.Database, logger)
	if err != nil {
		mghelper.Exitf("%s", err)
	}
	defer func() { _ = db.Close() }()

	logger.Info("Running migrations for wallet database", zap.String("database", cfg.Database.Database))

	migrator := migrate.NewMigrator(db, walletdb.Migrations)
	if err := mghelper.RunMigrations(ctx, migrator, logger, flag.Args()...); err != nil {
		mghelper.Exitf("%s", err)
	}
}
