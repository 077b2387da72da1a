package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portfoliotools/coinbuyer/internal/cryptorank"
	errwrap "github.com/portfoliotools/coinbuyer/internal/errors"
	"github.com/portfoliotools/coinbuyer/internal/observability"
)

var coinsCmd = &cobra.Command{
	Use:   "coins",
	Short: "List coins from the Cryptorank API",
	Long: `List coins the way the buy command sees them.

Examples:
  # Traded coins, table output
  coinbuyer coins

  # Everything, as JSON
  coinbuyer coins --life-cycle "" --output-format json`,
	Args: cobra.NoArgs,
	RunE: runCoins,
}

func init() {
	rootCmd.AddCommand(coinsCmd)
	registerCoinsFlags(coinsCmd)
}

func registerCoinsFlags(cmd *cobra.Command) {
	cmd.Flags().String("locale", "", "listing locale (default buy.locale)")
	cmd.Flags().String("life-cycle", "", "listing life cycle filter (default buy.life_cycle)")
	cmd.Flags().Bool("traded-only", false, "hide coins that are not traded")
	cmd.Flags().Int("limit", 0, "show at most this many coins (0 = all)")
	cmd.Flags().StringP("output-format", "o", "table", "Output format: table, json, yaml, markdown")
}

func runCoins(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return errwrap.WrapConfigInvalid(err, "failed to load configuration")
	}

	outputFormat, _ := cmd.Flags().GetString("output-format")
	formatter, err := newFormatter(outputFormat)
	if err != nil {
		return err
	}

	query := cryptorank.CoinsQuery{Locale: cfg.Buy.Locale, LifeCycle: cfg.Buy.LifeCycle}
	if cmd.Flags().Changed("locale") {
		query.Locale, _ = cmd.Flags().GetString("locale")
	}
	if cmd.Flags().Changed("life-cycle") {
		query.LifeCycle, _ = cmd.Flags().GetString("life-cycle")
	}
	tradedOnly, _ := cmd.Flags().GetBool("traded-only")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return errwrap.NewInvalidInputError(fmt.Sprintf("limit must be >= 0, got %d", limit))
	}

	client, err := newVendorClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close() // nolint:errcheck // best-effort cleanup of pooled connections

	result, err := client.Coins(cmd.Context(), query)
	if err != nil {
		return err
	}
	if !result.OK() {
		failure := cryptorank.FailureError(result.Failure)
		return errwrap.NewAPIFailureError(failure.Error(), result.StatusCode())
	}

	coins, err := cryptorank.DecodeCoins(result.Success)
	if err != nil {
		return errwrap.WrapExternalService(err, "failed to decode coins listing")
	}
	coins = filterCoins(coins, tradedOnly, limit)
	observability.Active().Debug("coins listed", zap.Int("count", len(coins)), zap.String("life_cycle", query.LifeCycle))

	rendered, err := formatter.FormatCoins(coins)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rendered) != "" {
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
	}
	return nil
}

func filterCoins(coins []cryptorank.Coin, tradedOnly bool, limit int) []cryptorank.Coin {
	filtered := make([]cryptorank.Coin, 0, len(coins))
	for _, c := range coins {
		if tradedOnly && !c.IsTraded {
			continue
		}
		filtered = append(filtered, c)
		if limit > 0 && len(filtered) == limit {
			break
		}
	}
	return filtered
}
