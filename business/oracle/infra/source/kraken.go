package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/r0zar/amm-price-engine/business/oracle/app"
	"github.com/r0zar/amm-price-engine/internal/apperror"
	"github.com/r0zar/amm-price-engine/internal/logger"
)

const (
	krakenBaseURL        = "https://api.kraken.com"
	krakenTickerEndpoint = "/0/public/Ticker"
	krakenPair           = "XBTUSD"
)

// Ensure Kraken implements QuoteSource.
var _ app.QuoteSource = (*Kraken)(nil)

// Kraken quotes the XBT/USD last-trade price from the Kraken public API.
type Kraken struct {
	base
}

// NewKraken creates a Kraken quote source.
func NewKraken(cfg Config, log logger.LoggerInterface) (*Kraken, error) {
	b, err := newBase(cfg, krakenBaseURL, log)
	if err != nil {
		return nil, err
	}
	return &Kraken{base: b}, nil
}

type krakenTickerResponse struct {
	Error  []string `json:"error"`
	Result map[string]struct {
		// c = last trade closed [price, lot volume]
		Close []string `json:"c"`
	} `json:"result"`
}

// Fetch retrieves the last-trade price.
func (s *Kraken) Fetch(ctx context.Context) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "kraken.fetch")
	defer span.End()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	var result krakenTickerResponse
	resp, err := s.client.NewRequest().
		SetQueryParam("pair", krakenPair).
		SetResult(&result).
		Get(ctx, krakenTickerEndpoint)
	if err != nil {
		return 0, apperror.New(apperror.CodeOracleSourceError,
			apperror.WithCause(err),
			apperror.WithContext("kraken ticker request failed"))
	}
	if resp.IsError() {
		return 0, apperror.New(apperror.CodeOracleSourceError,
			apperror.WithContext(fmt.Sprintf("kraken HTTP %d: %s", resp.StatusCode, resp.String())))
	}
	if len(result.Error) > 0 {
		return 0, apperror.New(apperror.CodeOracleSourceError,
			apperror.WithContext("kraken API error: "+strings.Join(result.Error, "; ")))
	}

	// The result key varies ("XXBTZUSD" for XBTUSD); take the first entry.
	for _, ticker := range result.Result {
		if len(ticker.Close) == 0 {
			break
		}
		value, err := strconv.ParseFloat(ticker.Close[0], 64)
		if err != nil || value <= 0 {
			return 0, apperror.New(apperror.CodeOracleParseError,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("kraken close %q", ticker.Close[0])))
		}

		span.SetAttributes(attribute.Float64("valueUsd", value))
		s.logger.Debug(ctx, "kraken last trade price", "valueUsd", value)
		return value, nil
	}

	return 0, apperror.New(apperror.CodeOracleParseError,
		apperror.WithContext("kraken response missing ticker data"))
}
