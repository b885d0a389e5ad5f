package postgres

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"solana-share-vault/internal/solana"
)

var bigTen = big.NewInt(10)

// numericFromUint64 encodes an amount for a NUMERIC(20,0) column.
func numericFromUint64(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Valid: true}
}

// uint64FromNumeric decodes a NUMERIC(20,0) column.
func uint64FromNumeric(n pgtype.Numeric) (uint64, error) {
	if !n.Valid || n.Int == nil {
		return 0, fmt.Errorf("numeric is null")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return 0, fmt.Errorf("numeric is not finite")
	}

	v := new(big.Int).Set(n.Int)
	switch {
	case n.Exp > 0:
		v.Mul(v, new(big.Int).Exp(bigTen, big.NewInt(int64(n.Exp)), nil))
	case n.Exp < 0:
		var rem big.Int
		v.QuoRem(v, new(big.Int).Exp(bigTen, big.NewInt(int64(-n.Exp)), nil), &rem)
		if rem.Sign() != 0 {
			return 0, fmt.Errorf("numeric has fractional part")
		}
	}

	if !v.IsUint64() {
		return 0, fmt.Errorf("numeric %s out of uint64 range", v)
	}
	return v.Uint64(), nil
}

// parseKey decodes a base58 column.
func parseKey(column, s string) (solana.PublicKey, error) {
	pk, err := solana.ParsePublicKey(s)
	if err != nil {
		return pk, fmt.Errorf("column %s: %w", column, err)
	}
	return pk, nil
}

// parseOptionalKey decodes a nullable base58 column.
func parseOptionalKey(column string, s *string) (*solana.PublicKey, error) {
	if s == nil {
		return nil, nil
	}
	pk, err := parseKey(column, *s)
	if err != nil {
		return nil, err
	}
	return &pk, nil
}

// uuidFromString parses a receipt ID for a UUID column.
func uuidFromString(s string) (pgtype.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: id, Valid: true}, nil
}

func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
