package solana

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParsePublicKey(t *testing.T) {
	pk, err := ParsePublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}
	if pk.String() != "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA" {
		t.Errorf("round trip mismatch: %s", pk)
	}

	for _, bad := range []string{"", "0OIl", "abc"} {
		if _, err := ParsePublicKey(bad); !errors.Is(err, ErrInvalidPublicKey) {
			t.Errorf("ParsePublicKey(%q): expected ErrInvalidPublicKey, got %v", bad, err)
		}
	}
}

func TestPublicKey_JSON(t *testing.T) {
	type wrapper struct {
		Key PublicKey `json:"key"`
	}

	in := wrapper{Key: TokenProgramID}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"key":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}` {
		t.Errorf("unexpected json: %s", data)
	}

	var out wrapper
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.Key != TokenProgramID {
		t.Errorf("key mismatch")
	}
}

func TestNewRandomPublicKey(t *testing.T) {
	a, err := NewRandomPublicKey()
	if err != nil {
		t.Fatalf("NewRandomPublicKey failed: %v", err)
	}
	b, _ := NewRandomPublicKey()
	if a == b || a.IsZero() {
		t.Errorf("random keys should differ and be non-zero")
	}
}
