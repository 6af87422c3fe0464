// Package source implements HTTP quote sources for the anchor token's USD price.
package source

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/r0zar/amm-price-engine/business/oracle/app"
	"github.com/r0zar/amm-price-engine/internal/httpclient"
	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/ratelimit"
)

const tracerName = "business/oracle/source"

// Config describes one HTTP quote source.
type Config struct {
	Name           string // coinbase, kraken, coingecko
	URL            string // base URL override (empty = source default)
	Priority       int
	RequestTimeout time.Duration
	RequestsPerMin int // 0 = unlimited
}

// New builds the quote source named in cfg.
func New(cfg Config, log logger.LoggerInterface) (app.QuoteSource, error) {
	switch cfg.Name {
	case "coinbase":
		return NewCoinbase(cfg, log)
	case "kraken":
		return NewKraken(cfg, log)
	case "coingecko":
		return NewCoinGecko(cfg, log)
	default:
		return nil, fmt.Errorf("unknown oracle source %q", cfg.Name)
	}
}

// base carries the pieces every HTTP source shares.
type base struct {
	name     string
	priority int
	client   httpclient.Client
	limiter  *ratelimit.Limiter
	logger   logger.LoggerInterface
	tracer   trace.Tracer
}

func newBase(cfg Config, defaultURL string, log logger.LoggerInterface) (base, error) {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultURL
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(cfg.Name),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return base{}, fmt.Errorf("failed to create %s client: %w", cfg.Name, err)
	}

	var limiter *ratelimit.Limiter
	if cfg.RequestsPerMin > 0 {
		limiter = ratelimit.New(cfg.RequestsPerMin)
	}

	return base{
		name:     cfg.Name,
		priority: cfg.Priority,
		client:   client,
		limiter:  limiter,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Priority() int {
	return b.priority
}
