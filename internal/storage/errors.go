// Package storage declares the errors shared by every store backend.
package storage

import "errors"

var (
	// ErrNotFound means no record exists under the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey means a record already exists under the key. Vault
	// records, receipts and snapshots are written once and never updated.
	ErrDuplicateKey = errors.New("record already exists")

	// ErrInvalidInput means a record failed validation before it was written.
	ErrInvalidInput = errors.New("invalid record")
)
