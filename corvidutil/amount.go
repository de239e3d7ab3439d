// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package corvidutil provides convenience types shared across the node,
// currently the fixed-point coin amount.
package corvidutil

import (
	"errors"
	"math"
	"strconv"
)

// AtomsPerCoin is the number of atomic units in one coin.
const AtomsPerCoin = 1e8

// Amount represents the base coin monetary unit (colloquially referred
// to as an "atom"). A single Amount is equal to 1e-8 of a coin.
type Amount int64

// ErrInvalidCoinAmount describes a coin-denominated value that cannot be
// represented as an Amount: NaN, an infinity, or out of int64 range.
var ErrInvalidCoinAmount = errors.New("invalid coin amount")

// round converts a floating point number, which may or may not be
// representable as an integer, to the Amount integer type by rounding to
// the nearest whole atom.
func round(f float64) Amount {
	if f < 0 {
		return Amount(f - 0.5)
	}
	return Amount(f + 0.5)
}

// NewAmount creates an Amount from a floating point value representing an
// amount of whole coins.
func NewAmount(coins float64) (Amount, error) {
	// The amount is only considered invalid if it cannot be represented
	// as an integer type. This may happen if f is NaN or +-Infinity.
	switch {
	case math.IsNaN(coins), math.IsInf(coins, 1), math.IsInf(coins, -1):
		return 0, ErrInvalidCoinAmount
	}
	return round(coins * AtomsPerCoin), nil
}

// ToCoin is the equivalent of calling ToUnit with AmountCoin: the amount
// as a floating point number of whole coins.
func (a Amount) ToCoin() float64 {
	return float64(a) / AtomsPerCoin
}

// String returns the amount formatted as a decimal coin value with the
// "CVD" unit suffix.
func (a Amount) String() string {
	return strconv.FormatFloat(a.ToCoin(), 'f', -1, 64) + " CVD"
}

// MulF64 multiplies an Amount by a floating point value. While this is
// not an operation that must typically be done by a full node, it is
// useful for fee-rate policy where rates scale with transaction size.
func (a Amount) MulF64(f float64) Amount {
	return round(float64(a) * f)
}
