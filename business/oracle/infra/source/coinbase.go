package source

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/r0zar/amm-price-engine/business/oracle/app"
	"github.com/r0zar/amm-price-engine/internal/apperror"
	"github.com/r0zar/amm-price-engine/internal/logger"
)

const (
	coinbaseBaseURL      = "https://api.coinbase.com"
	coinbaseSpotEndpoint = "/v2/prices/BTC-USD/spot"
)

// Ensure Coinbase implements QuoteSource.
var _ app.QuoteSource = (*Coinbase)(nil)

// Coinbase quotes the BTC-USD spot price from the Coinbase public API.
type Coinbase struct {
	base
}

// NewCoinbase creates a Coinbase quote source.
func NewCoinbase(cfg Config, log logger.LoggerInterface) (*Coinbase, error) {
	b, err := newBase(cfg, coinbaseBaseURL, log)
	if err != nil {
		return nil, err
	}
	return &Coinbase{base: b}, nil
}

type coinbaseSpotResponse struct {
	Data struct {
		Base     string `json:"base"`
		Currency string `json:"currency"`
		Amount   string `json:"amount"`
	} `json:"data"`
}

// Fetch retrieves the spot price.
func (s *Coinbase) Fetch(ctx context.Context) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "coinbase.fetch")
	defer span.End()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	var result coinbaseSpotResponse
	resp, err := s.client.NewRequest().
		SetResult(&result).
		Get(ctx, coinbaseSpotEndpoint)
	if err != nil {
		return 0, apperror.New(apperror.CodeOracleSourceError,
			apperror.WithCause(err),
			apperror.WithContext("coinbase spot request failed"))
	}
	if resp.IsError() {
		return 0, apperror.New(apperror.CodeOracleSourceError,
			apperror.WithContext(fmt.Sprintf("coinbase HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	value, err := strconv.ParseFloat(result.Data.Amount, 64)
	if err != nil || value <= 0 {
		return 0, apperror.New(apperror.CodeOracleParseError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("coinbase amount %q", result.Data.Amount)))
	}

	span.SetAttributes(attribute.Float64("valueUsd", value))
	s.logger.Debug(ctx, "coinbase spot price", "valueUsd", value)

	return value, nil
}
