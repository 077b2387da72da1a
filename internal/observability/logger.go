package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFileLayout names saved log files.
const LogFileLayout = "2006-01-02_15-04-05"

// Logger is the structured logging surface shared by the CLI logger, the
// file logger and Tee.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

var (
	// CLILogger is used for CLI commands (SIMPLE profile)
	CLILogger *logging.Logger

	// FileLogger mirrors CLI output to a JSON file when saving logs is enabled.
	FileLogger *zap.Logger

	// LogFilePath is the file FileLogger writes to.
	LogFilePath string
)

// InitCLILogger initializes the CLI logger with SIMPLE profile at the given
// level. verbose wins over level.
func InitCLILogger(serviceName string, level string, verbose bool) {
	if verbose {
		level = "debug"
	}

	config := &logging.LoggerConfig{
		Profile:      logging.ProfileSimple,
		DefaultLevel: parseLogLevel(level),
		Service:      serviceName,
		Environment:  "cli",
		Sinks: []logging.SinkConfig{
			{
				Type:   "console",
				Format: "console",
				Console: &logging.ConsoleSinkConfig{
					Stream:   "stderr",
					Colorize: false,
				},
			},
		},
	}

	logger, err := logging.New(config)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}

	CLILogger = logger
}

// InitFileLogger opens ./<dir>/<timestamp>.log and installs FileLogger.
func InitFileLogger(dir string, level string, now time.Time) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	// #nosec G301 -- log directories use 0755 like the data directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(dir, now.Format(LogFileLayout)+".log")
	logger, err := newFileLogger(path, level)
	if err != nil {
		return "", err
	}

	FileLogger = logger
	LogFilePath = path
	return path, nil
}

// CloseFileLogger flushes and detaches the file logger.
func CloseFileLogger() {
	if FileLogger == nil {
		return
	}
	_ = FileLogger.Sync()
	FileLogger = nil
	LogFilePath = ""
}

// Active returns the logger commands should hand to components: the CLI
// logger, teed to the file logger when one is installed.
func Active() Logger {
	var sinks []Logger
	if CLILogger != nil {
		sinks = append(sinks, CLILogger)
	}
	if FileLogger != nil {
		sinks = append(sinks, FileLogger)
	}
	switch len(sinks) {
	case 0:
		return zap.NewNop()
	case 1:
		return sinks[0]
	default:
		return Tee(sinks)
	}
}

// Tee fans every entry out to each logger in order.
type Tee []Logger

func (t Tee) Debug(msg string, fields ...zap.Field) {
	for _, l := range t {
		l.Debug(msg, fields...)
	}
}

func (t Tee) Info(msg string, fields ...zap.Field) {
	for _, l := range t {
		l.Info(msg, fields...)
	}
}

func (t Tee) Warn(msg string, fields ...zap.Field) {
	for _, l := range t {
		l.Warn(msg, fields...)
	}
}

func (t Tee) Error(msg string, fields ...zap.Field) {
	for _, l := range t {
		l.Error(msg, fields...)
	}
}

func newFileLogger(path string, level string) (*zap.Logger, error) {
	atom := zap.NewAtomicLevel()
	if err := atom.UnmarshalText([]byte(zapLevelName(level))); err != nil {
		atom.SetLevel(zapcore.InfoLevel)
	}

	encoder := zap.NewProductionEncoderConfig()
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            atom,
		Encoding:         "json",
		EncoderConfig:    encoder,
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return logger, nil
}

// parseLogLevel converts string log level to logging severity string
func parseLogLevel(levelStr string) string {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "info":
		return "INFO"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

func zapLevelName(levelStr string) string {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "trace", "debug":
		return "debug"
	case "warn", "warning":
		return "warn"
	case "error":
		return "error"
	default:
		return "info"
	}
}

// exitWithCodeStderr exits with a semantic exit code, writing to stderr.
// This is a local helper for logger initialization failures before CLI logger is available.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: %s (exit code: %d)\n", msg, exitCode)
		}
		os.Exit(int(exitCode))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)

	os.Exit(info.Code)
}
