package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/observability"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage"
)

// VaultStore implements storage.VaultStore using PostgreSQL.
type VaultStore struct {
	pool *Pool
}

// NewVaultStore creates a new VaultStore.
func NewVaultStore(pool *Pool) *VaultStore {
	return &VaultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VaultStore = (*VaultStore)(nil)

const vaultColumns = `vault_id, program_id, asset_mint, asset_account, share_mint, nonce, created_at`

// Insert adds a new vault. Returns ErrDuplicateKey if vault_id exists.
func (s *VaultStore) Insert(ctx context.Context, v *domain.Vault) (err error) {
	if v == nil || v.ID.IsZero() {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_vault", time.Now(), &err)

	query := `INSERT INTO vaults (` + vaultColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.pool.conn(ctx).Exec(ctx, query,
		v.ID.String(), v.ProgramID.String(), v.AssetMint.String(),
		v.AssetAccount.String(), v.ShareMint.String(), int16(v.Nonce), v.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert vault: %w", err)
	}
	return nil
}

// GetByID retrieves a vault by its ID. Returns ErrNotFound if not exists.
func (s *VaultStore) GetByID(ctx context.Context, id solana.PublicKey) (*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE vault_id = $1`

	v, err := scanVault(s.pool.conn(ctx).QueryRow(ctx, query, id.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get vault: %w", err)
	}
	return v, nil
}

// List retrieves all vaults, ordered by created_at ASC.
func (s *VaultStore) List(ctx context.Context) ([]*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults ORDER BY created_at ASC, vault_id ASC`

	rows, err := s.pool.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	defer rows.Close()

	var vaults []*domain.Vault
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vault: %w", err)
		}
		vaults = append(vaults, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vaults: %w", err)
	}
	return vaults, nil
}

func scanVault(row pgx.Row) (*domain.Vault, error) {
	var (
		id, programID, assetMint, assetAccount, shareMint string
		nonce                                             int16
		v                                                 domain.Vault
	)
	if err := row.Scan(&id, &programID, &assetMint, &assetAccount, &shareMint, &nonce, &v.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if v.ID, err = parseKey("vault_id", id); err != nil {
		return nil, err
	}
	if v.ProgramID, err = parseKey("program_id", programID); err != nil {
		return nil, err
	}
	if v.AssetMint, err = parseKey("asset_mint", assetMint); err != nil {
		return nil, err
	}
	if v.AssetAccount, err = parseKey("asset_account", assetAccount); err != nil {
		return nil, err
	}
	if v.ShareMint, err = parseKey("share_mint", shareMint); err != nil {
		return nil, err
	}
	v.Nonce = uint8(nonce)
	return &v, nil
}

// observeQuery records query latency and errors for the postgres backend.
func observeQuery(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), *err)
}
