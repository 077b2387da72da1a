package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/portfoliotools/coinbuyer/internal/errors"
	"github.com/portfoliotools/coinbuyer/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify configuration, logging and the purchase ledger before running buys.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.CLILogger
		if logger == nil {
			return errwrap.WrapConfigInvalid(nil, "logger not initialized")
		}
		logger.Info("Running health check...")

		// Check 1: Version info available
		if versionInfo.Version == "" {
			logger.Error("❌ FAIL: Version information missing")
			return errwrap.NewInvalidInputError("version information missing")
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		// Check 2: Configuration loaded and valid
		cfg, err := currentConfig()
		if err != nil {
			logger.Error("❌ FAIL: Configuration invalid", zap.Error(err))
			return errwrap.WrapConfigInvalid(err, "configuration invalid")
		}
		logger.Info("✅ Configuration loaded")

		// Check 3: API token present
		if strings.TrimSpace(cfg.API.Token) == "" {
			logger.Warn("⚠️  API token not set; coins and buy will fail")
		} else {
			logger.Info("✅ API token configured")
		}

		// Check 4: Purchase ledger reachable
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		db, err := openStore(ctx, cfg.Store)
		if err != nil {
			logger.Error("❌ FAIL: Purchase ledger unavailable", zap.Error(err))
			return errwrap.WrapDatabaseError(err, "purchase ledger unavailable")
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup of store handle
		if err := db.Ping(ctx); err != nil {
			logger.Error("❌ FAIL: Purchase ledger ping failed", zap.Error(err))
			return errwrap.WrapDatabaseError(err, "purchase ledger ping failed")
		}
		logger.Info("✅ Purchase ledger ready", zap.String("driver", db.Driver()))

		logger.Info("")
		logger.Info("✅ All health checks passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
