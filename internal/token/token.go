// Package token provides the token model and decimal-safe conversion between
// atomic (integer, precision-scaled) and decimal amounts.
//
// Atomic amounts are big.Int and exact. float64 is used for derived USD
// values only, never for on-chain quantities.
package token

import (
	"github.com/ethereum/go-ethereum/common"
)

// ID uniquely identifies a token by contract address within one chain.
type ID = common.Address

// Token is the metadata of a pool-traded token. The symbol is display
// metadata, not identity.
type Token struct {
	id       ID
	symbol   string
	name     string
	decimals uint8
}

// New creates a Token with the given parameters.
func New(id ID, symbol string, decimals uint8) *Token {
	if symbol == "" {
		panic("token: empty symbol")
	}

	return &Token{
		id:       id,
		symbol:   symbol,
		decimals: decimals,
	}
}

// NewWithName creates a Token with a human-readable name.
func NewWithName(id ID, symbol, name string, decimals uint8) *Token {
	t := New(id, symbol, decimals)
	t.name = name
	return t
}

// ID returns the unique identifier for this token.
func (t *Token) ID() ID {
	return t.id
}

// Symbol returns the ticker symbol (e.g., "WBTC", "USDC").
func (t *Token) Symbol() string {
	return t.symbol
}

// Name returns the human-readable name, falling back to the symbol.
func (t *Token) Name() string {
	if t.name == "" {
		return t.symbol
	}
	return t.name
}

// Decimals returns the number of decimal places.
func (t *Token) Decimals() uint8 {
	return t.decimals
}

// String returns a human-readable representation.
func (t *Token) String() string {
	return t.symbol
}

// Equals compares two Tokens by their ID.
func (t *Token) Equals(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.id == other.id
}
