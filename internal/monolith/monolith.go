// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"github.com/r0zar/amm-price-engine/internal/config"
	"github.com/r0zar/amm-price-engine/internal/di"
	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/token"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	TokenRegistry() *token.Registry
	Stablecoins() *token.StablecoinSet
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	tokenRegistry *token.Registry
	stablecoins   *token.StablecoinSet
	container     di.Container
}

// New creates a new Monolith instance.
func New(cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	tokenRegistry := token.DefaultRegistry()

	stables := cfg.Pricing.StablecoinSymbols
	if len(stables) == 0 {
		stables = token.DefaultStablecoinSymbols
	}
	stablecoins := token.NewStablecoinSet(stables)

	container := di.NewContainer()

	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("tokenRegistry", tokenRegistry)
	container.Register("stablecoins", stablecoins)

	return &app{
		config:        cfg,
		logger:        log,
		tokenRegistry: tokenRegistry,
		stablecoins:   stablecoins,
		container:     container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) TokenRegistry() *token.Registry {
	return a.tokenRegistry
}

func (a *app) Stablecoins() *token.StablecoinSet {
	return a.stablecoins
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
