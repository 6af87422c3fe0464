package token

import (
	"errors"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// MaxDecimals is the largest supported token precision.
	MaxDecimals uint8 = 18
	// FallbackDecimals is assumed for tokens whose reported precision is
	// outside [0, MaxDecimals]. Callers log when the fallback applies.
	FallbackDecimals uint8 = 6
)

// ErrOutOfRange reports a conversion given invalid decimals or a value that
// does not fit a float64.
var ErrOutOfRange = errors.New("token: conversion out of range")

// NormalizeDecimals clamps a reported precision to the supported range.
// The second return reports whether the fallback was applied.
func NormalizeDecimals(decimals uint8) (uint8, bool) {
	if decimals > MaxDecimals {
		return FallbackDecimals, true
	}
	return decimals, false
}

// AtomicToDecimal converts an atomic amount to its decimal value:
// value / 10^decimals. Returns 0 on any out-of-range input; use
// IsValidDecimalConversion or the Checked variant to distinguish a real
// zero from a failed conversion.
func AtomicToDecimal(value *big.Int, decimals uint8) float64 {
	v, err := AtomicToDecimalChecked(value, decimals)
	if err != nil {
		return 0
	}
	return v
}

// AtomicToDecimalChecked is AtomicToDecimal with an explicit error.
func AtomicToDecimalChecked(value *big.Int, decimals uint8) (float64, error) {
	if value == nil || decimals > MaxDecimals {
		return 0, ErrOutOfRange
	}

	f, _ := decimal.NewFromBigInt(value, -int32(decimals)).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, ErrOutOfRange
	}
	return f, nil
}

// IsValidDecimalConversion reports whether AtomicToDecimal would succeed.
func IsValidDecimalConversion(value *big.Int, decimals uint8) bool {
	_, err := AtomicToDecimalChecked(value, decimals)
	return err == nil
}

// DecimalToAtomic converts a decimal amount to atomic units, rounding to
// the nearest integer. Returns 0 on out-of-range input.
func DecimalToAtomic(value float64, decimals uint8) *big.Int {
	v, err := DecimalToAtomicChecked(value, decimals)
	if err != nil {
		return big.NewInt(0)
	}
	return v
}

// DecimalToAtomicChecked is DecimalToAtomic with an explicit error.
func DecimalToAtomicChecked(value float64, decimals uint8) (*big.Int, error) {
	if decimals > MaxDecimals || math.IsInf(value, 0) || math.IsNaN(value) {
		return nil, ErrOutOfRange
	}

	return decimal.NewFromFloat(value).Shift(int32(decimals)).Round(0).BigInt(), nil
}

// GeometricMeanLiquidity returns sqrt(decimalA * decimalB) of the two
// reserves, a liquidity-size proxy resistant to single-side imbalance.
// Returns 0 if either side is non-positive or fails conversion.
func GeometricMeanLiquidity(reserveA *big.Int, decimalsA uint8, reserveB *big.Int, decimalsB uint8) float64 {
	a := AtomicToDecimal(reserveA, decimalsA)
	b := AtomicToDecimal(reserveB, decimalsB)
	if a <= 0 || b <= 0 {
		return 0
	}

	m := math.Sqrt(a * b)
	if math.IsInf(m, 0) || math.IsNaN(m) {
		return 0
	}
	return m
}
