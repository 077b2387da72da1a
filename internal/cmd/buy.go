package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portfoliotools/coinbuyer/internal/buyer"
	"github.com/portfoliotools/coinbuyer/internal/config"
	errwrap "github.com/portfoliotools/coinbuyer/internal/errors"
	"github.com/portfoliotools/coinbuyer/internal/observability"
)

var buyCmd = &cobra.Command{
	Use:   "buy",
	Short: "Buy every eligible coin into a manual portfolio",
	Long: `List coins and record a BUY transaction for each one that is traded,
has a USD price and meets the minimum market cap. Each coin gets the same
quote amount; the base quantity is amount / USD price.

Per-coin failures are logged and the loop moves on to the next coin.

Examples:
  # Spend 10 USD on every coin above 100k market cap
  coinbuyer buy --portfolio-id 12345 --amount 10 --min-mcap 100000

  # See what would be bought
  coinbuyer buy --portfolio-id 12345 --dry-run`,
	Args: cobra.NoArgs,
	RunE: runBuy,
}

func init() {
	rootCmd.AddCommand(buyCmd)
	registerBuyFlags(buyCmd)
}

func registerBuyFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("portfolio-id", 0, "manual portfolio id (default buy.portfolio_id)")
	cmd.Flags().String("amount", "", "quote amount spent per coin (default buy.amount)")
	cmd.Flags().String("quote", "", "quote currency key (default buy.quote)")
	cmd.Flags().String("fee-type", "", "fee currency (default buy.fee_type)")
	cmd.Flags().String("min-mcap", "", "minimum market cap in USD (default buy.min_market_cap)")
	cmd.Flags().Bool("skip-purchased", false, "skip coins the ledger already holds as bought")
	cmd.Flags().Bool("dry-run", false, "evaluate filters without creating transactions")
	cmd.Flags().Int("limit", 0, "stop after this many purchase attempts (0 = no limit)")
	cmd.Flags().Bool("no-store", false, "do not record attempts in the purchase ledger")
	cmd.Flags().StringP("output-format", "o", "table", "Output format: table, json, yaml, markdown")
}

func runBuy(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return errwrap.WrapConfigInvalid(err, "failed to load configuration")
	}

	outputFormat, _ := cmd.Flags().GetString("output-format")
	formatter, err := newFormatter(outputFormat)
	if err != nil {
		return err
	}

	plan, err := buildPlan(cmd, cfg.Buy)
	if err != nil {
		return errwrap.NewInvalidInputError(err.Error())
	}
	if err := plan.Validate(); err != nil {
		return errwrap.NewInvalidInputError(err.Error())
	}

	client, err := newVendorClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close() // nolint:errcheck // best-effort cleanup of pooled connections

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &buyer.Buyer{API: client, Logger: observability.Active()}

	noStore, _ := cmd.Flags().GetBool("no-store")
	if !noStore {
		db, err := openStore(ctx, cfg.Store)
		if err != nil {
			return errwrap.WrapDatabaseError(err, "failed to open purchase ledger")
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup of store handle
		b.Ledger = db
	} else if plan.SkipPurchased {
		return errwrap.NewInvalidInputError("--skip-purchased needs the purchase ledger; drop --no-store")
	}

	summary, runErr := b.Run(ctx, plan)
	if summary != nil {
		observability.Active().Info("buy run finished",
			zap.Int("found", summary.Found),
			zap.Int("bought", summary.Bought),
			zap.Int("failed", summary.Failed),
			zap.Int("skipped", summary.Skipped),
		)
		rendered, err := formatter.FormatSummary(summary)
		if err != nil {
			return err
		}
		if strings.TrimSpace(rendered) != "" {
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
		}
	}
	return runErr
}

// buildPlan merges buy flags over the buy config section.
func buildPlan(cmd *cobra.Command, cfg config.BuyConfig) (buyer.Plan, error) {
	plan := buyer.Plan{
		PortfolioID:  cfg.PortfolioID,
		Amount:       cfg.Amount,
		QuoteKey:     cfg.Quote,
		FeeType:      cfg.FeeType,
		MinMarketCap: cfg.MinMarketCap,
		Locale:       cfg.Locale,
		LifeCycle:    cfg.LifeCycle,
	}

	flags := cmd.Flags()
	if flags.Changed("portfolio-id") {
		plan.PortfolioID, _ = flags.GetInt64("portfolio-id")
	}
	if flags.Changed("amount") {
		value, _ := flags.GetString("amount")
		amount, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return plan, fmt.Errorf("invalid --amount %q: %w", value, err)
		}
		plan.Amount = amount
	}
	if flags.Changed("quote") {
		plan.QuoteKey, _ = flags.GetString("quote")
	}
	if flags.Changed("fee-type") {
		plan.FeeType, _ = flags.GetString("fee-type")
	}
	if flags.Changed("min-mcap") {
		value, _ := flags.GetString("min-mcap")
		minCap, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return plan, fmt.Errorf("invalid --min-mcap %q: %w", value, err)
		}
		plan.MinMarketCap = minCap
	}
	plan.SkipPurchased, _ = flags.GetBool("skip-purchased")
	plan.DryRun, _ = flags.GetBool("dry-run")
	plan.Limit, _ = flags.GetInt("limit")

	plan.QuoteKey = strings.TrimSpace(plan.QuoteKey)
	plan.FeeType = strings.ToUpper(strings.TrimSpace(plan.FeeType))
	return plan, nil
}
