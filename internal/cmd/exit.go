package cmd

import (
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"go.uber.org/zap"

	errwrap "github.com/portfoliotools/coinbuyer/internal/errors"
	"github.com/portfoliotools/coinbuyer/internal/observability"
)

// ExitWithError classifies err, logs it and exits with the matching foundry
// exit code.
func ExitWithError(msg string, err error) {
	envelope := errwrap.Classify(err, msg)
	var logger observability.Logger
	if observability.CLILogger != nil {
		logger = observability.Active()
	}
	shutdown()
	ExitWithCode(logger, errwrap.ExitCode(envelope), msg, envelope)
}

// ExitWithCode exits the program with a semantic foundry exit code and logs the error.
//
// Parameters:
//   - logger: The logger to use for error output (can be nil for early failures)
//   - exitCode: The foundry exit code constant (e.g., foundry.ExitConfigInvalid)
//   - msg: Human-readable error message
//   - err: The underlying error (can be nil)
func ExitWithCode(logger observability.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}

	if logger != nil {
		logger.Error(msg, exitFields(info.Code, info.Name, info.Category, err)...)
	} else {
		writeStderr(msg, err)
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	}

	os.Exit(info.Code)
}

// ExitWithCodeStderr is a variant that writes to stderr without a logger.
// Use this for early failures before logger initialization.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	ExitWithCode(nil, exitCode, msg, err)
}

func exitFields(code int, name, category string, err error) []zap.Field {
	fields := []zap.Field{
		zap.Int("exit_code", code),
		zap.String("exit_name", name),
		zap.String("exit_category", category),
	}

	if envelope, ok := err.(*errors.ErrorEnvelope); ok {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("error_message", envelope.Message),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if originalErr, ok := envelope.Original.(error); ok && originalErr != nil {
			err = originalErr
		}
	}

	return append(fields, zap.Error(err))
}

func writeStderr(msg string, err error) {
	if err == nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
		return
	}
	if envelope, ok := err.(*errors.ErrorEnvelope); ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s [%s]: %v (correlation: %s)\n",
			msg, envelope.Code, envelope.Message, envelope.CorrelationID)
		if originalErr, ok := envelope.Original.(error); ok && originalErr != nil {
			fmt.Fprintf(os.Stderr, "Underlying error: %v\n", originalErr)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
}
