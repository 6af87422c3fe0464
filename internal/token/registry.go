package token

import (
	"fmt"
	"strings"
	"sync"
)

// Registry is a thread-safe registry of known tokens.
type Registry struct {
	byID     map[ID]*Token
	bySymbol map[string]*Token
	mu       sync.RWMutex
}

// NewRegistry creates a new empty token registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[ID]*Token),
		bySymbol: make(map[string]*Token),
	}
}

// Register adds a token to the registry.
// Panics if a token with the same ID is already registered.
func (r *Registry) Register(t *Token) {
	if t == nil {
		panic("token: cannot register nil token")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[t.ID()]; exists {
		panic(fmt.Sprintf("token: %s already registered", t.ID()))
	}

	r.byID[t.ID()] = t
	r.bySymbol[strings.ToUpper(t.Symbol())] = t
}

// ByID looks up a token by its ID.
func (r *Registry) ByID(id ID) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	return t, ok
}

// BySymbol looks up a token by symbol (case-insensitive).
func (r *Registry) BySymbol(symbol string) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.bySymbol[strings.ToUpper(symbol)]
	return t, ok
}

// Len returns the number of registered tokens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// StablecoinSet matches tokens assumed to trade at $1.00, by symbol.
type StablecoinSet struct {
	symbols map[string]struct{}
}

// NewStablecoinSet creates a set from the given symbols (case-insensitive).
func NewStablecoinSet(symbols []string) *StablecoinSet {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[strings.ToUpper(s)] = struct{}{}
	}
	return &StablecoinSet{symbols: set}
}

// Contains reports whether symbol is a recognized stablecoin.
func (s *StablecoinSet) Contains(symbol string) bool {
	_, ok := s.symbols[strings.ToUpper(symbol)]
	return ok
}

// Symbols returns the configured symbols.
func (s *StablecoinSet) Symbols() []string {
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	return out
}
