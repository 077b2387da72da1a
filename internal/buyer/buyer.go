// Package buyer walks the coins listing and records a BUY transaction for
// every coin that passes the plan filters.
package buyer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/portfoliotools/coinbuyer/internal/apiclient"
	"github.com/portfoliotools/coinbuyer/internal/cryptorank"
	"github.com/portfoliotools/coinbuyer/internal/metrics"
	"github.com/portfoliotools/coinbuyer/internal/store"
)

// CoinAPI is the slice of the vendor client the buy loop needs.
type CoinAPI interface {
	Coins(ctx context.Context, query cryptorank.CoinsQuery) (*apiclient.Result, error)
	CreateTransaction(ctx context.Context, tx cryptorank.TransactionRequest) (*apiclient.Result, error)
}

// Ledger persists buy attempts.
type Ledger interface {
	RecordPurchase(ctx context.Context, p *store.Purchase) error
	HasPurchase(ctx context.Context, portfolioID int64, coinKey string) (bool, error)
}

// Outcome of one coin in a run.
type Outcome string

const (
	OutcomeBought  Outcome = "bought"
	OutcomeFailed  Outcome = "failed"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
	OutcomePlanned Outcome = "planned"
)

// Plan describes one run.
type Plan struct {
	PortfolioID  int64
	Amount       decimal.Decimal
	QuoteKey     string
	FeeType      string
	MinMarketCap decimal.Decimal
	Locale       string
	LifeCycle    string
	// SkipPurchased skips coins the ledger already holds as bought.
	SkipPurchased bool
	// DryRun evaluates filters without creating transactions.
	DryRun bool
	// Limit caps the number of purchase attempts; zero means no cap.
	Limit int
}

// Validate reports missing or out-of-range plan fields.
func (p Plan) Validate() error {
	if p.PortfolioID <= 0 {
		return errors.New("portfolio id is required")
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", p.Amount)
	}
	if strings.TrimSpace(p.QuoteKey) == "" {
		return errors.New("quote currency key is required")
	}
	if p.MinMarketCap.IsNegative() {
		return fmt.Errorf("min market cap must be >= 0, got %s", p.MinMarketCap)
	}
	if p.Limit < 0 {
		return fmt.Errorf("limit must be >= 0, got %d", p.Limit)
	}
	return nil
}

// Attempt is the per-coin record of a run.
type Attempt struct {
	Key          string          `json:"key" yaml:"key"`
	Symbol       string          `json:"symbol" yaml:"symbol"`
	Name         string          `json:"name" yaml:"name"`
	PriceUSD     decimal.Decimal `json:"price_usd" yaml:"price_usd"`
	BaseQuantity decimal.Decimal `json:"base_quantity" yaml:"base_quantity"`
	Outcome      Outcome         `json:"outcome" yaml:"outcome"`
	StatusCode   int             `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Reason       string          `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Summary aggregates a run.
type Summary struct {
	PortfolioID int64     `json:"portfolio_id" yaml:"portfolio_id"`
	Found       int       `json:"found" yaml:"found"`
	Bought      int       `json:"bought" yaml:"bought"`
	Failed      int       `json:"failed" yaml:"failed"`
	Skipped     int       `json:"skipped" yaml:"skipped"`
	Planned     int       `json:"planned" yaml:"planned"`
	DryRun      bool      `json:"dry_run" yaml:"dry_run"`
	Attempts    []Attempt `json:"attempts" yaml:"attempts"`
}

func (s *Summary) add(a Attempt) {
	s.Attempts = append(s.Attempts, a)
	switch a.Outcome {
	case OutcomeBought:
		s.Bought++
	case OutcomeFailed, OutcomeError:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomePlanned:
		s.Planned++
	}
}

// Buyer runs plans against the vendor API.
type Buyer struct {
	API    CoinAPI
	Ledger Ledger
	Logger apiclient.Logger
	Clock  func() time.Time
}

// Run lists coins and buys every eligible one. Listing failures abort the run
// before anything is bought; per-coin failures are logged and the loop moves
// on. Context cancellation stops the loop and returns the partial summary.
func (b *Buyer) Run(ctx context.Context, plan Plan) (*Summary, error) {
	if b == nil || b.API == nil {
		return nil, errors.New("buyer is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	coins, err := b.listCoins(ctx, plan)
	if err != nil {
		return nil, err
	}

	summary := &Summary{PortfolioID: plan.PortfolioID, Found: len(coins), DryRun: plan.DryRun}
	b.logger().Info(fmt.Sprintf("Found %d coins!", len(coins)))

	attempts := 0
	for _, coin := range coins {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if plan.Limit > 0 && attempts >= plan.Limit {
			b.logger().Info("purchase limit reached", zap.Int("limit", plan.Limit))
			break
		}

		b.logger().Debug(fmt.Sprintf("%s (%s) coin", coin.Symbol, coin.Name))

		attempt := Attempt{Key: coin.Key, Symbol: coin.Symbol, Name: coin.Name, PriceUSD: coin.USDPrice()}
		if reason := b.skipReason(ctx, plan, coin); reason != "" {
			attempt.Outcome = OutcomeSkipped
			attempt.Reason = reason
			b.logger().Warn(fmt.Sprintf("%s %s, skip..", coin.Name, reason))
			summary.add(attempt)
			continue
		}

		attempts++
		attempt.BaseQuantity = plan.Amount.Div(attempt.PriceUSD)

		if plan.DryRun {
			attempt.Outcome = OutcomePlanned
			b.logger().Info(fmt.Sprintf("%s is eligible, dry run", coin.Name),
				zap.String("base_quantity", attempt.BaseQuantity.String()))
			summary.add(attempt)
			continue
		}

		b.logger().Info(fmt.Sprintf("%s is okay, buying..", coin.Name))
		if err := b.buy(ctx, plan, &attempt); err != nil {
			summary.add(attempt)
			return summary, err
		}
		summary.add(attempt)
	}

	return summary, nil
}

func (b *Buyer) listCoins(ctx context.Context, plan Plan) ([]cryptorank.Coin, error) {
	result, err := b.API.Coins(ctx, cryptorank.CoinsQuery{Locale: plan.Locale, LifeCycle: plan.LifeCycle})
	if err != nil {
		return nil, fmt.Errorf("list coins: %w", err)
	}
	if !result.OK() {
		return nil, fmt.Errorf("list coins: %w", cryptorank.FailureError(result.Failure))
	}
	coins, err := cryptorank.DecodeCoins(result.Success)
	if err != nil {
		return nil, err
	}
	return coins, nil
}

func (b *Buyer) skipReason(ctx context.Context, plan Plan, coin cryptorank.Coin) string {
	if !coin.IsTraded {
		return "is not traded"
	}
	if coin.MarketCap.LessThan(plan.MinMarketCap) {
		return "has less mcap than min"
	}
	if !coin.USDPrice().IsPositive() {
		return "has no USD price"
	}
	if plan.SkipPurchased && b.Ledger != nil {
		has, err := b.Ledger.HasPurchase(ctx, plan.PortfolioID, coin.Key)
		if err != nil {
			b.logger().Warn("ledger lookup failed", zap.String("coin", coin.Key), zap.Error(err))
			return ""
		}
		if has {
			return "was already bought"
		}
	}
	return ""
}

// buy creates the transaction and records it. A non-nil error means the run
// must stop (context ended); every other fault is folded into the attempt.
func (b *Buyer) buy(ctx context.Context, plan Plan, attempt *Attempt) error {
	now := b.now()
	result, err := b.API.CreateTransaction(ctx, cryptorank.TransactionRequest{
		PortfolioID:      plan.PortfolioID,
		Type:             cryptorank.TransactionBuy,
		BaseCurrencyKey:  attempt.Key,
		BaseQuantity:     attempt.BaseQuantity,
		QuoteCurrencyKey: plan.QuoteKey,
		QuoteQuantity:    plan.Amount,
		USDValue:         plan.Amount,
		FeeValue:         decimal.Zero,
		FeeType:          plan.FeeType,
		Date:             now,
	})

	switch {
	case err != nil:
		attempt.Outcome = OutcomeError
		attempt.Reason = err.Error()
	case result.StatusCode() != 201:
		attempt.Outcome = OutcomeFailed
		attempt.StatusCode = result.StatusCode()
		if result.Failure != nil {
			attempt.Reason = result.Failure.Message()
		} else {
			attempt.Reason = fmt.Sprintf("unexpected status %d", attempt.StatusCode)
		}
	default:
		attempt.Outcome = OutcomeBought
		attempt.StatusCode = result.StatusCode()
	}

	metrics.RecordPurchase(string(attempt.Outcome))
	if attempt.Outcome == OutcomeBought {
		b.logger().Info(fmt.Sprintf("%s bought, next coin..", attempt.Name))
	} else {
		b.logger().Error(fmt.Sprintf("%s buy error %s", attempt.Name, attempt.Reason),
			zap.String("coin", attempt.Key),
			zap.Int("status_code", attempt.StatusCode),
		)
	}

	b.record(ctx, plan, attempt, now)

	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (b *Buyer) record(ctx context.Context, plan Plan, attempt *Attempt, at time.Time) {
	if b.Ledger == nil {
		return
	}
	outcome := store.OutcomeBought
	switch attempt.Outcome {
	case OutcomeFailed:
		outcome = store.OutcomeFailed
	case OutcomeError:
		outcome = store.OutcomeError
	}

	// Recorded even when the run context has ended.
	err := b.Ledger.RecordPurchase(context.WithoutCancel(ctx), &store.Purchase{
		PortfolioID:   plan.PortfolioID,
		CoinKey:       attempt.Key,
		Symbol:        attempt.Symbol,
		QuoteKey:      plan.QuoteKey,
		QuoteQuantity: plan.Amount,
		BaseQuantity:  attempt.BaseQuantity,
		PriceUSD:      attempt.PriceUSD,
		StatusCode:    attempt.StatusCode,
		Outcome:       outcome,
		Message:       attempt.Reason,
		CreatedAt:     at,
	})
	if err != nil {
		b.logger().Warn("failed to record purchase", zap.String("coin", attempt.Key), zap.Error(err))
	}
}

func (b *Buyer) logger() apiclient.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func (b *Buyer) now() time.Time {
	if b.Clock != nil {
		return b.Clock()
	}
	return time.Now().UTC()
}
