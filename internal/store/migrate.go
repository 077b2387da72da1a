package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		portfolio_id INTEGER NOT NULL,
		coin_key TEXT NOT NULL,
		symbol TEXT,
		quote_key TEXT NOT NULL,
		quote_quantity TEXT NOT NULL,
		base_quantity TEXT NOT NULL,
		price_usd TEXT,
		status_code INTEGER,
		outcome TEXT NOT NULL,
		message TEXT,
		created_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_portfolio ON purchases(portfolio_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_coin ON purchases(portfolio_id, coin_key, outcome);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
