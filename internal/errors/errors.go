// Package errors maps coinbuyer failures onto gofulmen error envelopes and
// foundry exit codes.
package errors

import (
	"context"
	stderrors "errors"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"

	"github.com/portfoliotools/coinbuyer/internal/apiclient"
)

// Error codes
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDatabase        = "DATABASE_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeForbiddenMethod = "FORBIDDEN_METHOD"
	CodeAPIFailure      = "API_FAILURE"
	CodeCancelled       = "CANCELLED"
	CodeInternal        = "INTERNAL_ERROR"
)

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewAPIFailureError(message string, statusCode int) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(CodeAPIFailure, message)
	envelope, _ = envelope.WithContext(map[string]interface{}{"status_code": statusCode})
	return envelope
}

func WrapConfigInvalid(err error, message string) *errors.ErrorEnvelope {
	return wrap(CodeConfigInvalid, "high", err, message, nil)
}

func WrapDatabaseError(err error, message string) *errors.ErrorEnvelope {
	return wrap(CodeDatabase, "high", err, message, nil)
}

func WrapExternalService(err error, message string) *errors.ErrorEnvelope {
	return wrap(CodeExternalService, "high", err, message, nil)
}

// Classify turns any error into an envelope. Existing envelopes pass through.
func Classify(err error, message string) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}

	var forbidden *apiclient.ForbiddenMethodError
	var transport *apiclient.TransportError
	switch {
	case stderrors.As(err, &forbidden):
		return wrap(CodeForbiddenMethod, "critical", err, message, map[string]interface{}{"method": forbidden.Method})
	case stderrors.Is(err, context.Canceled):
		return wrap(CodeCancelled, "medium", err, message, nil)
	case stderrors.As(err, &transport) && transport.Timeout(), stderrors.Is(err, context.DeadlineExceeded):
		return wrap(CodeTimeout, "high", err, message, nil)
	case transport != nil:
		return wrap(CodeExternalService, "high", err, message, map[string]interface{}{"url": transport.URL})
	default:
		return wrap(CodeInternal, "high", err, message, nil)
	}
}

// ExitCode resolves the foundry exit code for an envelope.
func ExitCode(envelope *errors.ErrorEnvelope) foundry.ExitCode {
	if envelope == nil {
		return foundry.ExitFailure
	}
	switch envelope.Code {
	case CodeConfigInvalid, CodeInvalidInput:
		return foundry.ExitConfigInvalid
	case CodeExternalService, CodeTimeout, CodeAPIFailure:
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

func wrap(code, severity string, err error, message string, extra map[string]interface{}) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	envelope = envelope.WithCorrelationID(uuid.New().String())

	fields := map[string]interface{}{}
	for k, v := range extra {
		fields[k] = v
	}
	if err != nil {
		fields["wrapped_error"] = err.Error()
	}
	if len(fields) > 0 {
		if updated, ctxErr := envelope.WithContext(fields); ctxErr == nil {
			envelope = updated
		}
	}

	envelope = withSeverity(envelope, severity)
	envelope.Original = err
	return envelope
}

func withSeverity(envelope *errors.ErrorEnvelope, level string) *errors.ErrorEnvelope {
	var (
		updated *errors.ErrorEnvelope
		err     error
	)
	switch level {
	case "critical":
		updated, err = envelope.WithSeverity(errors.SeverityCritical)
	case "medium":
		updated, err = envelope.WithSeverity(errors.SeverityMedium)
	default:
		updated, err = envelope.WithSeverity(errors.SeverityHigh)
	}
	if err != nil {
		return envelope
	}
	return updated
}
