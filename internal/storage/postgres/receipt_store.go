package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage"
)

// ReceiptStore implements storage.ReceiptStore using PostgreSQL.
// Insert joins the transaction of a running Ledger unit of work.
type ReceiptStore struct {
	pool *Pool
}

// NewReceiptStore creates a new ReceiptStore.
func NewReceiptStore(pool *Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReceiptStore = (*ReceiptStore)(nil)

const receiptColumns = `
	receipt_id, vault_id, kind, user_key, source_account, destination_account,
	asset_amount, share_amount, pooled_balance_before, share_supply_before, timestamp`

// Insert adds a new receipt. Returns ErrDuplicateKey if receipt_id exists.
func (s *ReceiptStore) Insert(ctx context.Context, r *domain.Receipt) (err error) {
	if r == nil || r.ReceiptID == "" || !r.Kind.IsValid() {
		return storage.ErrInvalidInput
	}
	id, err := uuidFromString(r.ReceiptID)
	if err != nil {
		return fmt.Errorf("%w: receipt id: %v", storage.ErrInvalidInput, err)
	}
	defer observeQuery("insert_receipt", time.Now(), &err)

	query := `
		INSERT INTO receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.pool.conn(ctx).Exec(ctx, query,
		id, r.VaultID.String(), string(r.Kind), r.User.String(),
		r.SourceAccount.String(), r.DestinationAccount.String(),
		numericFromUint64(r.AssetAmount), numericFromUint64(r.ShareAmount),
		numericFromUint64(r.PooledBalanceBefore), numericFromUint64(r.ShareSupplyBefore),
		r.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// GetByID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByID(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	id, err := uuidFromString(receiptID)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE receipt_id = $1`

	r, err := scanReceipt(s.pool.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	return r, nil
}

// GetByVault retrieves all receipts for a vault, ordered by timestamp ASC.
func (s *ReceiptStore) GetByVault(ctx context.Context, vaultID solana.PublicKey) ([]*domain.Receipt, error) {
	query := `
		SELECT ` + receiptColumns + `
		FROM receipts
		WHERE vault_id = $1
		ORDER BY timestamp ASC, seq ASC
	`
	return s.query(ctx, query, vaultID.String())
}

// GetByUser retrieves receipts of one user in a vault, ordered by timestamp ASC.
func (s *ReceiptStore) GetByUser(ctx context.Context, vaultID, user solana.PublicKey) ([]*domain.Receipt, error) {
	query := `
		SELECT ` + receiptColumns + `
		FROM receipts
		WHERE vault_id = $1 AND user_key = $2
		ORDER BY timestamp ASC, seq ASC
	`
	return s.query(ctx, query, vaultID.String(), user.String())
}

func (s *ReceiptStore) query(ctx context.Context, query string, args ...any) ([]*domain.Receipt, error) {
	rows, err := s.pool.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*domain.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return receipts, nil
}

func scanReceipt(row pgx.Row) (*domain.Receipt, error) {
	var (
		r                                 domain.Receipt
		receiptID                         pgtype.UUID
		vaultID, kind, user, source, dest string
		assets, shareAmt, pooled, supply  pgtype.Numeric
	)
	err := row.Scan(
		&receiptID, &vaultID, &kind, &user, &source, &dest,
		&assets, &shareAmt, &pooled, &supply, &r.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	r.ReceiptID = uuidString(receiptID)
	r.Kind = domain.ReceiptKind(kind)
	if r.VaultID, err = parseKey("vault_id", vaultID); err != nil {
		return nil, err
	}
	if r.User, err = parseKey("user_key", user); err != nil {
		return nil, err
	}
	if r.SourceAccount, err = parseKey("source_account", source); err != nil {
		return nil, err
	}
	if r.DestinationAccount, err = parseKey("destination_account", dest); err != nil {
		return nil, err
	}
	if r.AssetAmount, err = uint64FromNumeric(assets); err != nil {
		return nil, fmt.Errorf("asset_amount: %w", err)
	}
	if r.ShareAmount, err = uint64FromNumeric(shareAmt); err != nil {
		return nil, fmt.Errorf("share_amount: %w", err)
	}
	if r.PooledBalanceBefore, err = uint64FromNumeric(pooled); err != nil {
		return nil, fmt.Errorf("pooled_balance_before: %w", err)
	}
	if r.ShareSupplyBefore, err = uint64FromNumeric(supply); err != nil {
		return nil, fmt.Errorf("share_supply_before: %w", err)
	}
	return &r, nil
}
