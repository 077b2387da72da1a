package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome classifies one buy attempt.
type Outcome string

const (
	OutcomeBought Outcome = "bought"
	OutcomeFailed Outcome = "failed"
	OutcomeError  Outcome = "error"
)

// Purchase is one ledger row.
type Purchase struct {
	ID            string          `json:"id" yaml:"id"`
	PortfolioID   int64           `json:"portfolio_id" yaml:"portfolio_id"`
	CoinKey       string          `json:"coin_key" yaml:"coin_key"`
	Symbol        string          `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	QuoteKey      string          `json:"quote_key" yaml:"quote_key"`
	QuoteQuantity decimal.Decimal `json:"quote_quantity" yaml:"quote_quantity"`
	BaseQuantity  decimal.Decimal `json:"base_quantity" yaml:"base_quantity"`
	PriceUSD      decimal.Decimal `json:"price_usd" yaml:"price_usd"`
	StatusCode    int             `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Outcome       Outcome         `json:"outcome" yaml:"outcome"`
	Message       string          `json:"message,omitempty" yaml:"message,omitempty"`
	CreatedAt     time.Time       `json:"created_at" yaml:"created_at"`
}

// PurchaseQuery filters ListPurchases. Zero values match everything.
type PurchaseQuery struct {
	PortfolioID int64
	CoinKey     string
	Outcome     Outcome
	Limit       int
}

// RecordPurchase inserts a ledger row, filling ID and CreatedAt when empty.
func (s *Store) RecordPurchase(ctx context.Context, p *Purchase) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if p == nil {
		return errors.New("purchase is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	p.CoinKey = strings.TrimSpace(p.CoinKey)
	if p.CoinKey == "" {
		return errors.New("coin key is required")
	}
	if p.Outcome == "" {
		return errors.New("purchase outcome is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	var statusCode sql.NullInt64
	if p.StatusCode != 0 {
		statusCode = sql.NullInt64{Int64: int64(p.StatusCode), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO purchases (id, portfolio_id, coin_key, symbol, quote_key, quote_quantity,
			base_quantity, price_usd, status_code, outcome, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.PortfolioID, p.CoinKey, p.Symbol, p.QuoteKey, p.QuoteQuantity.String(),
		p.BaseQuantity.String(), p.PriceUSD.String(), statusCode, string(p.Outcome), p.Message,
		p.CreatedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}
	return nil
}

// ListPurchases returns ledger rows, newest first.
func (s *Store) ListPurchases(ctx context.Context, query PurchaseQuery) ([]Purchase, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var (
		clauses []string
		args    []any
	)
	if query.PortfolioID != 0 {
		clauses = append(clauses, "portfolio_id = ?")
		args = append(args, query.PortfolioID)
	}
	if key := strings.TrimSpace(query.CoinKey); key != "" {
		clauses = append(clauses, "coin_key = ?")
		args = append(args, key)
	}
	if query.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(query.Outcome))
	}

	stmt := `SELECT id, portfolio_id, coin_key, symbol, quote_key, quote_quantity, base_quantity,
		price_usd, status_code, outcome, message, created_at FROM purchases`
	if len(clauses) > 0 {
		stmt += " WHERE " + strings.Join(clauses, " AND ")
	}
	stmt += " ORDER BY created_at DESC, id"
	if query.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var purchases []Purchase
	for rows.Next() {
		var (
			p          Purchase
			symbol     sql.NullString
			quoteQty   string
			baseQty    string
			priceUSD   sql.NullString
			statusCode sql.NullInt64
			outcome    string
			message    sql.NullString
			createdAt  int64
		)
		if err := rows.Scan(&p.ID, &p.PortfolioID, &p.CoinKey, &symbol, &p.QuoteKey, &quoteQty,
			&baseQty, &priceUSD, &statusCode, &outcome, &message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}

		p.Symbol = symbol.String
		p.StatusCode = int(statusCode.Int64)
		p.Outcome = Outcome(outcome)
		p.Message = message.String
		p.CreatedAt = time.UnixMilli(createdAt).UTC()
		if p.QuoteQuantity, err = decimal.NewFromString(quoteQty); err != nil {
			return nil, fmt.Errorf("decode quote quantity: %w", err)
		}
		if p.BaseQuantity, err = decimal.NewFromString(baseQty); err != nil {
			return nil, fmt.Errorf("decode base quantity: %w", err)
		}
		if priceUSD.Valid && priceUSD.String != "" {
			if p.PriceUSD, err = decimal.NewFromString(priceUSD.String); err != nil {
				return nil, fmt.Errorf("decode price: %w", err)
			}
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	return purchases, nil
}

// HasPurchase reports whether the coin was already bought for the portfolio.
func (s *Store) HasPurchase(ctx context.Context, portfolioID int64, coinKey string) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	row := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM purchases
		WHERE portfolio_id = ? AND coin_key = ? AND outcome = ?
	`, portfolioID, strings.TrimSpace(coinKey), string(OutcomeBought))
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("lookup purchase: %w", err)
	}
	return count > 0, nil
}
