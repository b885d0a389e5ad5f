package shares

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetToShares(t *testing.T) {
	tests := []struct {
		name    string
		amount  uint64
		pooled  uint64
		supply  uint64
		want    uint64
		wantErr error
	}{
		{"bootstrap empty pool", 1000, 0, 0, 1000, nil},
		{"bootstrap zero supply with donation", 1000, 500, 0, 1000, nil},
		{"bootstrap drained pool", 1000, 0, 700, 1000, nil},
		{"proportional", 500, 1000, 1000, 500, nil},
		{"floor rounding", 10, 3, 1, 3, nil},
		{"rounds to zero", 1, 3000, 1500, 0, nil},
		{"after donation", 500, 3000, 1500, 250, nil},
		{"overflow", math.MaxUint64, 10, 2, 0, ErrArithmeticOverflow},
		{"max without overflow", math.MaxUint64, 7, 1, math.MaxUint64 / 7, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AssetToShares(tt.amount, tt.pooled, tt.supply)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSharesToAsset(t *testing.T) {
	tests := []struct {
		name    string
		shares  uint64
		pooled  uint64
		supply  uint64
		want    uint64
		wantErr error
	}{
		{"proportional", 500, 1500, 1500, 500, nil},
		{"floor rounding", 1, 10, 3, 3, nil},
		{"after donation", 1500, 4500, 2250, 3000, nil},
		{"empty pool with shares", 100, 0, 100, 0, nil},
		{"division by zero", 5, 100, 0, 0, ErrDivisionByZero},
		{"division by zero on empty pool", 5, 0, 0, 0, ErrDivisionByZero},
		{"division by zero checked before overflow", math.MaxUint64, math.MaxUint64, 0, 0, ErrDivisionByZero},
		{"overflow", math.MaxUint64, math.MaxUint64, 1, 0, ErrArithmeticOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SharesToAsset(tt.shares, tt.pooled, tt.supply)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// A deposit followed by an immediate full withdrawal never returns more
// than was deposited, unless the depositor is the first to mint shares.
func TestRoundTrip_NeverCreatesValue(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	checked := 0
	for i := 0; i < 10000; i++ {
		amount := uint64(rng.Int63n(1_000_000_000)) + 1
		pooled := uint64(rng.Int63n(1_000_000_000))
		supply := uint64(rng.Int63n(1_000_000_000))
		if supply == 0 && pooled > 0 {
			continue
		}

		minted, err := AssetToShares(amount, pooled, supply)
		require.NoError(t, err)
		if minted == 0 {
			continue
		}

		// A tiny pool with a large supply can push the redemption product
		// past 64 bits; that is reported, never truncated.
		back, err := SharesToAsset(minted, pooled+amount, supply+minted)
		if errors.Is(err, ErrArithmeticOverflow) {
			continue
		}
		require.NoError(t, err)
		assert.LessOrEqual(t, back, amount, "amount=%d pooled=%d supply=%d", amount, pooled, supply)
		checked++
	}
	assert.Greater(t, checked, 5000)
}

func TestPrice(t *testing.T) {
	assert.True(t, Price(0, 0).Equal(decimal.NewFromInt(1)))
	assert.True(t, Price(100, 0).Equal(decimal.NewFromInt(1)))
	assert.True(t, Price(3000, 1500).Equal(decimal.NewFromInt(2)))
	assert.Equal(t, "0.333333333333", Price(1, 3).String())
	assert.Equal(t, "18446744073709551615", Price(math.MaxUint64, 1).String())
}

func TestDonationScenario(t *testing.T) {
	var pooled, supply uint64

	minted, err := AssetToShares(1000, pooled, supply)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), minted)
	pooled, supply = pooled+1000, supply+minted

	minted, err = AssetToShares(500, pooled, supply)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), minted)
	pooled, supply = pooled+500, supply+minted

	// Direct transfer into the pool account.
	pooled += 1500
	assert.True(t, Price(pooled, supply).Equal(decimal.NewFromInt(2)))

	out, err := SharesToAsset(1500, pooled, supply)
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), out)
}
