package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portfoliotools/coinbuyer/internal/config"
	"github.com/portfoliotools/coinbuyer/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display version, runtime and effective configuration. Secrets are masked.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()

		log.Info("=== Coinbuyer Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info("")

		cfg, err := currentConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := config.ConfigFileUsed(cfgFile)
		if configFile == "" {
			configFile = "(none, default " + config.DefaultConfigPath() + ")"
		}

		log.Info("Configuration:")
		log.Info("  Config File:    " + configFile)
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info(fmt.Sprintf("  Save Logs:      %t", cfg.Logging.Save))
		log.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			log.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			log.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info("")

		log.Info("Cryptorank API:")
		log.Info("  Base URL:       " + cfg.API.BaseURL)
		log.Info("  Token:          " + maskSecret(cfg.API.Token))
		log.Info(fmt.Sprintf("  Rate Limit:     %d req/s", cfg.API.RateLimit))
		log.Info("  Cool Down:      " + cfg.API.CoolDown.String())
		log.Info("  Wait Policy:    " + cfg.API.WaitPolicy)
		log.Info("  Timeout:        " + cfg.API.Timeout.String())
		if strings.TrimSpace(cfg.API.Proxy) != "" {
			log.Info("  Proxy:          (set)")
		}
		log.Info("")

		log.Info("Buy Defaults:")
		log.Info(fmt.Sprintf("  Portfolio:      %d", cfg.Buy.PortfolioID))
		log.Info("  Amount:         " + cfg.Buy.Amount.String() + " " + cfg.Buy.Quote)
		log.Info("  Min Market Cap: " + cfg.Buy.MinMarketCap.String())
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}

// maskSecret keeps the last four characters of long secrets.
func maskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 8:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}
