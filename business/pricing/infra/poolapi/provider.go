// Package poolapi fetches AMM pool snapshots over HTTP.
package poolapi

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/r0zar/amm-price-engine/business/pricing/app"
	"github.com/r0zar/amm-price-engine/business/pricing/domain"
	"github.com/r0zar/amm-price-engine/internal/apperror"
	"github.com/r0zar/amm-price-engine/internal/circuitbreaker"
	"github.com/r0zar/amm-price-engine/internal/httpclient"
	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/ratelimit"
)

const tracerName = "business/pricing/infra/poolapi"

const poolsEndpoint = "/v1/pools"

// poolTypeSwap is the only record type the graph consumes. Vault and
// derivative records share the listing endpoint but carry no reserves.
const poolTypeSwap = "pool"

// Ensure Provider implements PoolProvider.
var _ app.PoolProvider = (*Provider)(nil)

// ProviderConfig holds configuration for the pool snapshot provider.
type ProviderConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	RequestsPerMin int // 0 = unlimited
}

// DefaultProviderConfig returns sensible defaults for the given endpoint.
func DefaultProviderConfig(baseURL string) ProviderConfig {
	return ProviderConfig{
		BaseURL:        baseURL,
		RequestTimeout: 15 * time.Second,
	}
}

// Provider lists pool records from the snapshot API.
type Provider struct {
	config  ProviderConfig
	client  httpclient.Client
	breaker *circuitbreaker.CircuitBreaker[[]domain.PoolRecord]
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

// NewProvider creates a pool snapshot provider.
func NewProvider(cfg ProviderConfig, log logger.LoggerInterface) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("poolapi base URL is required"))
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("poolapi"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.RequestTimeout),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, err
	}

	var limiter *ratelimit.Limiter
	if cfg.RequestsPerMin > 0 {
		limiter = ratelimit.New(cfg.RequestsPerMin)
	}

	return &Provider{
		config:  cfg,
		client:  client,
		breaker: circuitbreaker.New[[]domain.PoolRecord](circuitbreaker.DefaultConfig("poolapi")),
		limiter: limiter,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

type wireToken struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type wirePool struct {
	PoolID    string    `json:"poolId"`
	Protocol  string    `json:"protocol"`
	Type      string    `json:"type"`
	TokenA    wireToken `json:"tokenA"`
	TokenB    wireToken `json:"tokenB"`
	ReserveA  string    `json:"reserveA"`
	ReserveB  string    `json:"reserveB"`
	UpdatedAt int64     `json:"updatedAt"` // unix milliseconds, 0 = unknown
}

type listPoolsResponse struct {
	Pools []wirePool `json:"pools"`
}

// ListPools fetches the current pool snapshot for one protocol namespace.
// Records of non-swap types and records that fail validation are skipped.
func (p *Provider) ListPools(ctx context.Context, protocol string) ([]domain.PoolRecord, error) {
	ctx, span := p.tracer.Start(ctx, "poolapi.list_pools",
		trace.WithAttributes(attribute.String("protocol", protocol)),
	)
	defer span.End()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	records, err := p.breaker.Execute(func() ([]domain.PoolRecord, error) {
		return p.fetch(ctx, protocol)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("pools", len(records)))
	return records, nil
}

func (p *Provider) fetch(ctx context.Context, protocol string) ([]domain.PoolRecord, error) {
	var result listPoolsResponse
	req := p.client.NewRequest().SetResult(&result)
	if protocol != "" {
		req = req.SetQueryParam("protocol", protocol)
	}
	resp, err := req.Get(ctx, poolsEndpoint)
	if err != nil {
		return nil, apperror.New(apperror.CodePoolFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("pool snapshot request failed"))
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodePoolFetchFailed,
			apperror.WithContext(fmt.Sprintf("pool API HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	records := make([]domain.PoolRecord, 0, len(result.Pools))
	skipped := 0
	for _, wp := range result.Pools {
		if wp.Type != "" && wp.Type != poolTypeSwap {
			continue
		}
		rec, err := wp.toRecord()
		if err != nil {
			skipped++
			p.logger.Warn(ctx, "skipping invalid pool record",
				"poolId", wp.PoolID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		p.logger.Info(ctx, "pool snapshot loaded with skips",
			"accepted", len(records), "skipped", skipped)
	}

	return records, nil
}

func (wp wirePool) toRecord() (domain.PoolRecord, error) {
	if !common.IsHexAddress(wp.PoolID) {
		return domain.PoolRecord{}, apperror.New(apperror.CodeInvalidPoolRecord,
			apperror.WithContext(fmt.Sprintf("pool id %q is not an address", wp.PoolID)))
	}
	legA, err := wp.TokenA.toLeg()
	if err != nil {
		return domain.PoolRecord{}, err
	}
	legB, err := wp.TokenB.toLeg()
	if err != nil {
		return domain.PoolRecord{}, err
	}
	reserveA, err := parseReserve(wp.ReserveA)
	if err != nil {
		return domain.PoolRecord{}, err
	}
	reserveB, err := parseReserve(wp.ReserveB)
	if err != nil {
		return domain.PoolRecord{}, err
	}

	var updated time.Time
	if wp.UpdatedAt > 0 {
		updated = time.UnixMilli(wp.UpdatedAt)
	}

	return domain.PoolRecord{
		PoolID:      common.HexToAddress(wp.PoolID),
		TokenA:      legA,
		TokenB:      legB,
		ReserveA:    reserveA,
		ReserveB:    reserveB,
		LastUpdated: updated,
	}, nil
}

func (wt wireToken) toLeg() (domain.TokenLeg, error) {
	if !common.IsHexAddress(wt.ID) {
		return domain.TokenLeg{}, apperror.New(apperror.CodeInvalidPoolRecord,
			apperror.WithContext(fmt.Sprintf("token id %q is not an address", wt.ID)))
	}
	return domain.TokenLeg{
		ID:       common.HexToAddress(wt.ID),
		Symbol:   wt.Symbol,
		Decimals: wt.Decimals,
	}, nil
}

// parseReserve parses an unsigned base-10 reserve string. Negative and
// non-numeric reserves are rejected here; zero reserves survive to the
// graph builder, which drops the whole pool.
func parseReserve(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, apperror.New(apperror.CodeInvalidPoolRecord,
			apperror.WithContext(fmt.Sprintf("reserve %q is not a non-negative integer", s)))
	}
	return v, nil
}
