package source

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/r0zar/amm-price-engine/business/oracle/app"
	"github.com/r0zar/amm-price-engine/internal/apperror"
	"github.com/r0zar/amm-price-engine/internal/logger"
)

const (
	coingeckoBaseURL       = "https://api.coingecko.com"
	coingeckoPriceEndpoint = "/api/v3/simple/price"
	coingeckoAssetID       = "wrapped-bitcoin"
)

// Ensure CoinGecko implements QuoteSource.
var _ app.QuoteSource = (*CoinGecko)(nil)

// CoinGecko quotes the wrapped-bitcoin USD price from the CoinGecko public API.
type CoinGecko struct {
	base
}

// NewCoinGecko creates a CoinGecko quote source.
func NewCoinGecko(cfg Config, log logger.LoggerInterface) (*CoinGecko, error) {
	b, err := newBase(cfg, coingeckoBaseURL, log)
	if err != nil {
		return nil, err
	}
	return &CoinGecko{base: b}, nil
}

// Fetch retrieves the simple price.
func (s *CoinGecko) Fetch(ctx context.Context) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "coingecko.fetch")
	defer span.End()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	var result map[string]map[string]float64
	resp, err := s.client.NewRequest().
		SetQueryParam("ids", coingeckoAssetID).
		SetQueryParam("vs_currencies", "usd").
		SetResult(&result).
		Get(ctx, coingeckoPriceEndpoint)
	if err != nil {
		return 0, apperror.New(apperror.CodeOracleSourceError,
			apperror.WithCause(err),
			apperror.WithContext("coingecko price request failed"))
	}
	if resp.IsError() {
		return 0, apperror.New(apperror.CodeOracleSourceError,
			apperror.WithContext(fmt.Sprintf("coingecko HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	value, ok := result[coingeckoAssetID]["usd"]
	if !ok || value <= 0 {
		return 0, apperror.New(apperror.CodeOracleParseError,
			apperror.WithContext(fmt.Sprintf("coingecko response missing %s.usd", coingeckoAssetID)))
	}

	span.SetAttributes(attribute.Float64("valueUsd", value))
	s.logger.Debug(ctx, "coingecko price", "valueUsd", value)

	return value, nil
}
