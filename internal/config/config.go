// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Pools     PoolsConfig     `mapstructure:"pools"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Paths     PathsConfig     `mapstructure:"paths"`
	API       APIConfig       `mapstructure:"api"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// OracleSourceConfig describes one anchor-price quote source.
type OracleSourceConfig struct {
	Name     string `mapstructure:"name"` // coinbase, kraken, coingecko
	URL      string `mapstructure:"url"`  // empty = source default
	Priority int    `mapstructure:"priority"`
	Enabled  bool   `mapstructure:"enabled"`
}

// OracleConfig holds anchor-price aggregation settings.
type OracleConfig struct {
	Sources        []OracleSourceConfig `mapstructure:"sources"`
	RequestTimeout time.Duration        `mapstructure:"request_timeout"`
	FreshWindow    time.Duration        `mapstructure:"fresh_window"`
	StaleWindow    time.Duration        `mapstructure:"stale_window"`
	RequestsPerMin int                  `mapstructure:"requests_per_min"`
	CachePath      string               `mapstructure:"cache_path"` // empty = in-memory only
}

// PoolsConfig holds pool snapshot provider settings.
type PoolsConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	StreamURL      string        `mapstructure:"stream_url"` // empty = no stream
	Protocol       string        `mapstructure:"protocol"`   // accounting-domain namespace filter
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RequestsPerMin int           `mapstructure:"requests_per_min"`
}

// PricingConfig holds graph and discovery settings.
type PricingConfig struct {
	AnchorAddress     string        `mapstructure:"anchor_address"`
	AnchorSymbol      string        `mapstructure:"anchor_symbol"`
	StablecoinSymbols []string      `mapstructure:"stablecoin_symbols"`
	MaxAge            time.Duration `mapstructure:"max_age"`
	MaxCycles         int           `mapstructure:"max_cycles"`
	ConfidenceDecay   float64       `mapstructure:"confidence_decay"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
}

// AnchorAddressHex returns the anchor token address as common.Address.
func (c *PricingConfig) AnchorAddressHex() common.Address {
	return common.HexToAddress(c.AnchorAddress)
}

// PathsConfig holds pathfinding settings.
type PathsConfig struct {
	MaxDepth   int `mapstructure:"max_depth"`
	MaxResults int `mapstructure:"max_results"`
}

// APIConfig holds the query HTTP server configuration.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds health endpoint configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PRICE")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine, env vars and defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Oracle.Sources) == 0 {
		cfg.Oracle.Sources = defaultOracleSources()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Pricing.AnchorAddress == "" {
		return fmt.Errorf("pricing.anchor_address is required")
	}
	if !common.IsHexAddress(c.Pricing.AnchorAddress) {
		return fmt.Errorf("pricing.anchor_address is not a hex address: %s", c.Pricing.AnchorAddress)
	}
	if c.Pricing.MaxCycles <= 0 {
		return fmt.Errorf("pricing.max_cycles must be positive")
	}
	if c.Pricing.ConfidenceDecay <= 0 || c.Pricing.ConfidenceDecay > 1 {
		return fmt.Errorf("pricing.confidence_decay must be in (0, 1]")
	}
	if c.Paths.MaxDepth <= 0 {
		return fmt.Errorf("paths.max_depth must be positive")
	}
	if c.Oracle.StaleWindow < c.Oracle.FreshWindow {
		return fmt.Errorf("oracle.stale_window must not be shorter than oracle.fresh_window")
	}
	enabled := 0
	for _, s := range c.Oracle.Sources {
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("oracle: at least one source must be enabled")
	}
	return nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "PRICE_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "PRICE_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "PRICE_LOG_LEVEL", "LOG_LEVEL")

	// Oracle
	v.BindEnv("oracle.cache_path", "PRICE_ORACLE_CACHE_PATH")
	v.BindEnv("oracle.requests_per_min", "PRICE_ORACLE_RPM")

	// Pools
	v.BindEnv("pools.api_url", "PRICE_POOLS_API_URL", "POOLS_API_URL")
	v.BindEnv("pools.stream_url", "PRICE_POOLS_STREAM_URL", "POOLS_STREAM_URL")
	v.BindEnv("pools.protocol", "PRICE_POOLS_PROTOCOL")

	// Pricing
	v.BindEnv("pricing.anchor_address", "PRICE_ANCHOR_ADDRESS", "ANCHOR_ADDRESS")
	v.BindEnv("pricing.anchor_symbol", "PRICE_ANCHOR_SYMBOL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "PRICE_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "PRICE_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "PRICE_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "amm-price-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Oracle defaults per the aggregation policy: 10s per-source timeout,
	// 5 minute fresh window, 5:30 stale-while-revalidate cutoff.
	v.SetDefault("oracle.request_timeout", "10s")
	v.SetDefault("oracle.fresh_window", "5m")
	v.SetDefault("oracle.stale_window", "5m30s")
	v.SetDefault("oracle.requests_per_min", 60)

	// Pools defaults
	v.SetDefault("pools.protocol", "univ2")
	v.SetDefault("pools.request_timeout", "15s")
	v.SetDefault("pools.requests_per_min", 30)

	// Pricing defaults: WBTC anchors the graph, the stablecoin legs are
	// seeded at $1.00.
	v.SetDefault("pricing.anchor_address", "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
	v.SetDefault("pricing.anchor_symbol", "WBTC")
	v.SetDefault("pricing.stablecoin_symbols", []string{"USDC", "USDT", "DAI"})
	v.SetDefault("pricing.max_age", "5m")
	v.SetDefault("pricing.max_cycles", 10)
	v.SetDefault("pricing.confidence_decay", 0.8)
	v.SetDefault("pricing.refresh_interval", "1m")

	// Paths defaults
	v.SetDefault("paths.max_depth", 4)
	v.SetDefault("paths.max_results", 10)

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8080)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.prometheus_port", 2223)

	// Health defaults
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)
}

func defaultOracleSources() []OracleSourceConfig {
	return []OracleSourceConfig{
		{Name: "coinbase", Priority: 1, Enabled: true},
		{Name: "kraken", Priority: 2, Enabled: true},
		{Name: "coingecko", Priority: 3, Enabled: true},
	}
}
