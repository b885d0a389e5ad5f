package memory

import (
	"context"
	"sort"
	"sync"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage"
)

// VaultStore is an in-memory implementation of storage.VaultStore.
type VaultStore struct {
	mu   sync.RWMutex
	data map[solana.PublicKey]*domain.Vault // keyed by vault ID
}

// NewVaultStore creates a new in-memory vault store.
func NewVaultStore() *VaultStore {
	return &VaultStore{
		data: make(map[solana.PublicKey]*domain.Vault),
	}
}

// Insert adds a new vault. Returns ErrDuplicateKey if the vault ID exists.
func (s *VaultStore) Insert(_ context.Context, v *domain.Vault) error {
	if v == nil || v.ID.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[v.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	vaultCopy := *v
	s.data[v.ID] = &vaultCopy
	return nil
}

// GetByID retrieves a vault by its ID. Returns ErrNotFound if not exists.
func (s *VaultStore) GetByID(_ context.Context, id solana.PublicKey) (*domain.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	vaultCopy := *v
	return &vaultCopy, nil
}

// List retrieves all vaults, ordered by created_at ASC.
func (s *VaultStore) List(_ context.Context) ([]*domain.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Vault, 0, len(s.data))
	for _, v := range s.data {
		vaultCopy := *v
		result = append(result, &vaultCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	return result, nil
}

var _ storage.VaultStore = (*VaultStore)(nil)
