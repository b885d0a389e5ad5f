package custody

import (
	"errors"
	"fmt"

	"solana-share-vault/internal/solana"
)

// Custody errors.
var (
	ErrAccountNotFound   = errors.New("token account not found")
	ErrMintNotFound      = errors.New("mint not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOwnerMismatch     = errors.New("owner does not match")
	ErrMintMismatch      = errors.New("account mint mismatch")
	ErrAuthorityMismatch = errors.New("mint authority does not match")
	ErrOverflow          = errors.New("amount overflow")
)

// Error is a failure reported by the custody service.
type Error struct {
	Op      string
	Account solana.PublicKey
	Err     error
}

// NewError wraps err with the failing operation and account.
func NewError(op string, account solana.PublicKey, err error) *Error {
	return &Error{Op: op, Account: account, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("custody %s %s: %v", e.Op, e.Account, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCustodyError reports whether err carries a *Error.
func IsCustodyError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
