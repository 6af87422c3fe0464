// Package di provides a small typed service container for module wiring.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container.
type ServiceRegistry interface {
	// Get resolves a service by key, building it lazily if a factory was
	// registered. Panics if the key is unknown.
	Get(key string) any
}

// Container registers services and factories by key.
type Container interface {
	ServiceRegistry
	Register(key string, svc any)
	RegisterFactory(key string, factory func(ServiceRegistry) any)
}

type container struct {
	mu        sync.Mutex
	services  map[string]any
	factories map[string]func(ServiceRegistry) any
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		services:  make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
	}
}

func (c *container) Register(key string, svc any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[key] = svc
}

func (c *container) RegisterFactory(key string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[key] = factory
}

func (c *container) Get(key string) any {
	c.mu.Lock()
	if svc, ok := c.services[key]; ok {
		c.mu.Unlock()
		return svc
	}
	factory, ok := c.factories[key]
	c.mu.Unlock()

	if !ok {
		panic(fmt.Sprintf("di: unknown service %q", key))
	}

	// Build outside the lock; factories may resolve other services.
	svc := factory(c)

	c.mu.Lock()
	c.services[key] = svc
	c.mu.Unlock()

	return svc
}

// Token is a typed service key.
type Token[T any] struct {
	key string
}

// NewToken creates a typed token with a unique key.
func NewToken[T any](key string) Token[T] {
	return Token[T]{key: key}
}

// Key returns the underlying string key.
func (t Token[T]) Key() string {
	return t.key
}

// RegisterToken registers a typed factory under a token.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.key, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves a typed service by token.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	return sr.Get(token.key).(T)
}
