package walletdb

import (
	"context"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/wallet-orchestrator/pkg/pgutil/migrations"
	"github.com/chainsafe/wallet-orchestrator/pkg/prefstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return mghelper.CreateSchema(ctx, db, &prefstore.PreferenceDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &prefstore.PreferenceDao{})
	})
}
