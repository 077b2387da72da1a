package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/portfoliotools/coinbuyer/internal/config"
	"github.com/portfoliotools/coinbuyer/internal/observability"
	"github.com/portfoliotools/coinbuyer/internal/store"
)

func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if observability.CLILogger != nil {
		observability.CLILogger.Debug("Ledger opened", zap.String("location", db.Location().String()))
	}
	return db, nil
}
