package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	errwrap "github.com/portfoliotools/coinbuyer/internal/errors"
	"github.com/portfoliotools/coinbuyer/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded buy attempts",
	Long:  "Show buy attempts from the purchase ledger, newest first.",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	registerHistoryFlags(historyCmd)
}

func registerHistoryFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("portfolio-id", 0, "only this portfolio (0 = all)")
	cmd.Flags().String("coin", "", "only this coin key")
	cmd.Flags().String("outcome", "", "only this outcome: bought, failed, error")
	cmd.Flags().Int("limit", 50, "maximum rows (0 = all)")
	cmd.Flags().StringP("output-format", "o", "table", "Output format: table, json, yaml, markdown")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return errwrap.WrapConfigInvalid(err, "failed to load configuration")
	}

	outputFormat, _ := cmd.Flags().GetString("output-format")
	formatter, err := newFormatter(outputFormat)
	if err != nil {
		return err
	}

	query, err := buildPurchaseQuery(cmd)
	if err != nil {
		return errwrap.NewInvalidInputError(err.Error())
	}

	db, err := openStore(cmd.Context(), cfg.Store)
	if err != nil {
		return errwrap.WrapDatabaseError(err, "failed to open purchase ledger")
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup of store handle

	purchases, err := db.ListPurchases(cmd.Context(), query)
	if err != nil {
		return errwrap.WrapDatabaseError(err, "failed to list purchases")
	}

	rendered, err := formatter.FormatPurchases(purchases)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rendered) != "" {
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
	}
	return nil
}

func buildPurchaseQuery(cmd *cobra.Command) (store.PurchaseQuery, error) {
	var query store.PurchaseQuery
	query.PortfolioID, _ = cmd.Flags().GetInt64("portfolio-id")
	query.CoinKey, _ = cmd.Flags().GetString("coin")
	query.Limit, _ = cmd.Flags().GetInt("limit")
	if query.Limit < 0 {
		return query, fmt.Errorf("limit must be >= 0, got %d", query.Limit)
	}

	outcome, _ := cmd.Flags().GetString("outcome")
	switch store.Outcome(strings.ToLower(strings.TrimSpace(outcome))) {
	case "":
	case store.OutcomeBought:
		query.Outcome = store.OutcomeBought
	case store.OutcomeFailed:
		query.Outcome = store.OutcomeFailed
	case store.OutcomeError:
		query.Outcome = store.OutcomeError
	default:
		return query, fmt.Errorf("unknown outcome %q (want bought, failed or error)", outcome)
	}
	return query, nil
}
