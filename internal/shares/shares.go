// Package shares converts between asset amounts and vault share amounts.
//
// All conversions use unsigned 64-bit integers, truncate toward zero and
// fail instead of wrapping. Rounding always leaves the remainder in the pool.
package shares

import (
	"errors"
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"
)

var (
	// ErrArithmeticOverflow is returned when an intermediate product exceeds 2^64-1.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrDivisionByZero is returned when converting shares while no shares exist.
	ErrDivisionByZero = errors.New("division by zero")
)

// AssetToShares returns the number of shares minted for depositing amount.
// When the pool is empty or no shares exist, shares are minted 1:1.
func AssetToShares(amount, pooledBalance, shareSupply uint64) (uint64, error) {
	if shareSupply == 0 || pooledBalance == 0 {
		return amount, nil
	}
	return mulDiv(amount, shareSupply, pooledBalance)
}

// SharesToAsset returns the asset amount released for burning shares.
func SharesToAsset(shares, pooledBalance, shareSupply uint64) (uint64, error) {
	if shareSupply == 0 {
		return 0, ErrDivisionByZero
	}
	return mulDiv(shares, pooledBalance, shareSupply)
}

// Price returns pooledBalance / shareSupply. An empty pool prices at 1,
// the bootstrap rate.
func Price(pooledBalance, shareSupply uint64) decimal.Decimal {
	if pooledBalance == 0 || shareSupply == 0 {
		return decimal.NewFromInt(1)
	}
	return FromUint64(pooledBalance).DivRound(FromUint64(shareSupply), PricePrecision)
}

// FromUint64 converts an on-chain amount to a decimal without loss.
func FromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// PricePrecision is the number of decimal places kept in a share price.
const PricePrecision = 12

// mulDiv computes floor(a*b/d) and fails when a*b does not fit in 64 bits.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrArithmeticOverflow
	}
	return lo / d, nil
}
