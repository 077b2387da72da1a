package cmd

import (
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portfoliotools/coinbuyer/internal/config"
	errwrap "github.com/portfoliotools/coinbuyer/internal/errors"
	"github.com/portfoliotools/coinbuyer/internal/observability"
)

const appDescription = "Buy every listed coin into a Cryptorank manual portfolio"

var (
	cfgFile     string
	verbose     bool
	saveLogs    bool
	metricsPort int

	// appConfig is loaded by initConfig before any command runs.
	appConfig *config.Config

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: appDescription,
	Long: config.AppName + ` - ` + appDescription + `

Lists coins from the Cryptorank API and records a BUY transaction for each
one that passes the market cap filter. Requests are throttled to the
configured per-second ceiling.

Use the subcommands to perform specific operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Telemetry stays off until metrics are requested, so counters are no-ops.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/"+config.AppName+"/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().BoolVar(&saveLogs, "save-logs", false, "also write logs to a timestamped JSON file (logging.dir)")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port while the command runs")
}

// initConfig loads configuration and brings up logging and metrics.
func initConfig() {
	// Early logger so config failures are reported consistently.
	observability.InitCLILogger(config.AppName, "info", verbose)

	cfg, err := config.Load(cfgFile, flagOverrides())
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration",
			errwrap.WrapConfigInvalid(err, "failed to load configuration"))
	}
	appConfig = cfg

	observability.InitCLILogger(config.AppName, cfg.Logging.Level, verbose)
	if path := config.ConfigFileUsed(cfgFile); path != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", path))
	} else {
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	}

	if cfg.Logging.Save {
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		path, err := observability.InitFileLogger(cfg.Logging.Dir, level, time.Now())
		if err != nil {
			observability.CLILogger.Warn("Failed to open log file", zap.Error(err))
		} else {
			observability.CLILogger.Debug("Saving logs", zap.String("path", path))
		}
	}

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
			observability.CLILogger.Warn("Failed to start metrics exporter", zap.Error(err))
		} else {
			observability.CLILogger.Debug("Metrics exporter started", zap.Int("port", observability.GetMetricsPort()))
		}
	}
}

// flagOverrides maps explicitly set global flags onto config keys.
func flagOverrides() map[string]any {
	overrides := map[string]any{}
	flags := rootCmd.PersistentFlags()
	if flags.Changed("save-logs") {
		overrides["logging.save"] = saveLogs
	}
	if flags.Changed("metrics-port") {
		overrides["metrics.enabled"] = true
		overrides["metrics.port"] = metricsPort
	}
	return overrides
}

// currentConfig returns the loaded config, loading defaults when initConfig
// has not run.
func currentConfig() (*config.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	if cfg := config.GetConfig(); cfg != nil {
		return cfg, nil
	}
	return config.Load(cfgFile)
}

func shutdown() {
	observability.CloseFileLogger()
	if err := observability.ShutdownMetrics(); err != nil && observability.CLILogger != nil {
		observability.CLILogger.Warn("Failed to stop metrics exporter", zap.Error(err))
	}
}
