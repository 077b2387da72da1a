package cmd

import (
	"strings"

	"github.com/fatih/color"

	"github.com/portfoliotools/coinbuyer/internal/apiclient"
	"github.com/portfoliotools/coinbuyer/internal/config"
	"github.com/portfoliotools/coinbuyer/internal/cryptorank"
	errwrap "github.com/portfoliotools/coinbuyer/internal/errors"
	"github.com/portfoliotools/coinbuyer/internal/observability"
	"github.com/portfoliotools/coinbuyer/internal/output"
)

// newVendorClient builds the cryptorank client from configuration.
func newVendorClient(cfg *config.Config) (*cryptorank.Client, error) {
	if strings.TrimSpace(cfg.API.Token) == "" {
		return nil, errwrap.NewInvalidInputError("api token is required (set api.token or " + config.EnvPrefix + "_API_TOKEN)")
	}

	policy, err := apiclient.ParseWaitPolicy(cfg.API.WaitPolicy)
	if err != nil {
		return nil, errwrap.WrapConfigInvalid(err, "invalid api.wait_policy")
	}

	opts := []apiclient.Option{
		apiclient.WithBaseURL(cfg.API.BaseURL),
		apiclient.WithRateLimit(cfg.API.RateLimit),
		apiclient.WithCoolDown(cfg.API.CoolDown),
		apiclient.WithWaitPolicy(policy),
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithProxy(cfg.API.Proxy),
		apiclient.WithLogger(observability.Active()),
		apiclient.WithLogging(cfg.Logging.Enabled),
	}
	if len(cfg.API.ErrorStatusCodes) > 0 {
		opts = append(opts, apiclient.WithErrorStatusCodes(cfg.API.ErrorStatusCodes...))
	}

	return cryptorank.New(cfg.API.Token, opts...), nil
}

// newFormatter resolves the output format flag. Tables are colored when
// stdout supports it.
func newFormatter(value string) (output.Formatter, error) {
	format, err := output.ParseFormat(value)
	if err != nil {
		return nil, errwrap.NewInvalidInputError(err.Error())
	}
	if format == output.FormatTable {
		return &output.TableFormatter{Color: !color.NoColor}, nil
	}
	return output.NewFormatter(format), nil
}
