//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/portfoliotools/coinbuyer/internal/config"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	store := openMemoryStore(t)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Ping(context.Background()))
	require.Equal(t, 1, store.DB.Stats().MaxOpenConnections)
	require.True(t, store.Location().Memory)

	// Migrations are idempotent.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestPurchaseLedger(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	bought := &Purchase{
		PortfolioID:   52921,
		CoinKey:       "bitcoin",
		Symbol:        "BTC",
		QuoteKey:      "united-states-dollar",
		QuoteQuantity: decimal.NewFromInt(10),
		BaseQuantity:  decimal.RequireFromString("0.000163933"),
		PriceUSD:      decimal.RequireFromString("61000.5"),
		StatusCode:    201,
		Outcome:       OutcomeBought,
		CreatedAt:     base,
	}
	require.NoError(t, store.RecordPurchase(ctx, bought))
	require.NotEmpty(t, bought.ID)

	failed := &Purchase{
		PortfolioID:   52921,
		CoinKey:       "ethereum",
		QuoteKey:      "united-states-dollar",
		QuoteQuantity: decimal.NewFromInt(10),
		BaseQuantity:  decimal.RequireFromString("0.004"),
		StatusCode:    400,
		Outcome:       OutcomeFailed,
		Message:       "Bad Request",
		CreatedAt:     base.Add(time.Minute),
	}
	require.NoError(t, store.RecordPurchase(ctx, failed))

	other := &Purchase{
		PortfolioID: 1,
		CoinKey:     "bitcoin",
		QuoteKey:    "united-states-dollar",
		Outcome:     OutcomeError,
		CreatedAt:   base.Add(2 * time.Minute),
	}
	require.NoError(t, store.RecordPurchase(ctx, other))

	all, err := store.ListPurchases(ctx, PurchaseQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, other.ID, all[0].ID)

	portfolio, err := store.ListPurchases(ctx, PurchaseQuery{PortfolioID: 52921})
	require.NoError(t, err)
	require.Len(t, portfolio, 2)
	require.Equal(t, "ethereum", portfolio[0].CoinKey)
	require.Equal(t, OutcomeFailed, portfolio[0].Outcome)
	require.Equal(t, "Bad Request", portfolio[0].Message)

	got := portfolio[1]
	require.Equal(t, "BTC", got.Symbol)
	require.Equal(t, 201, got.StatusCode)
	require.True(t, got.BaseQuantity.Equal(bought.BaseQuantity))
	require.True(t, got.PriceUSD.Equal(bought.PriceUSD))
	require.True(t, got.CreatedAt.Equal(base))

	limited, err := store.ListPurchases(ctx, PurchaseQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	onlyBought, err := store.ListPurchases(ctx, PurchaseQuery{Outcome: OutcomeBought})
	require.NoError(t, err)
	require.Len(t, onlyBought, 1)

	has, err := store.HasPurchase(ctx, 52921, "bitcoin")
	require.NoError(t, err)
	require.True(t, has)

	has, err = store.HasPurchase(ctx, 52921, "ethereum")
	require.NoError(t, err)
	require.False(t, has, "failed attempts do not count as purchases")

	has, err = store.HasPurchase(ctx, 1, "bitcoin")
	require.NoError(t, err)
	require.False(t, has)
}

func TestRecordPurchaseValidates(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	require.Error(t, store.RecordPurchase(ctx, nil))
	require.Error(t, store.RecordPurchase(ctx, &Purchase{Outcome: OutcomeBought}))
	require.Error(t, store.RecordPurchase(ctx, &Purchase{CoinKey: "bitcoin"}))
}
