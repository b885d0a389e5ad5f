package memory

import (
	"context"
	"sort"
	"sync"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage"
)

// ReceiptStore is an in-memory implementation of storage.ReceiptStore.
type ReceiptStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.Receipt // keyed by receipt_id
	order []string                   // insertion order, breaks timestamp ties
}

// NewReceiptStore creates a new in-memory receipt store.
func NewReceiptStore() *ReceiptStore {
	return &ReceiptStore{
		data: make(map[string]*domain.Receipt),
	}
}

// Insert adds a new receipt. Returns ErrDuplicateKey if receipt_id exists.
func (s *ReceiptStore) Insert(_ context.Context, r *domain.Receipt) error {
	if r == nil || r.ReceiptID == "" || !r.Kind.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ReceiptID]; exists {
		return storage.ErrDuplicateKey
	}

	receiptCopy := *r
	s.data[r.ReceiptID] = &receiptCopy
	s.order = append(s.order, r.ReceiptID)
	return nil
}

// GetByID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByID(_ context.Context, receiptID string) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[receiptID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	receiptCopy := *r
	return &receiptCopy, nil
}

// GetByVault retrieves all receipts for a vault, ordered by timestamp ASC.
func (s *ReceiptStore) GetByVault(_ context.Context, vaultID solana.PublicKey) ([]*domain.Receipt, error) {
	return s.filter(func(r *domain.Receipt) bool {
		return r.VaultID == vaultID
	}), nil
}

// GetByUser retrieves receipts of one user in a vault, ordered by timestamp ASC.
func (s *ReceiptStore) GetByUser(_ context.Context, vaultID, user solana.PublicKey) ([]*domain.Receipt, error) {
	return s.filter(func(r *domain.Receipt) bool {
		return r.VaultID == vaultID && r.User == user
	}), nil
}

func (s *ReceiptStore) filter(match func(*domain.Receipt) bool) []*domain.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Receipt
	for _, id := range s.order {
		r := s.data[id]
		if match(r) {
			receiptCopy := *r
			result = append(result, &receiptCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result
}

var _ storage.ReceiptStore = (*ReceiptStore)(nil)
