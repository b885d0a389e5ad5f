package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage"
)

// PriceSnapshotStore is an in-memory implementation of storage.PriceSnapshotStore.
type PriceSnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceSnapshot // keyed by (vault_id, timestamp_ms, source)
}

// NewPriceSnapshotStore creates a new in-memory price snapshot store.
func NewPriceSnapshotStore() *PriceSnapshotStore {
	return &PriceSnapshotStore{
		data: make(map[string]*domain.PriceSnapshot),
	}
}

// snapshotKey generates a unique key for a snapshot.
func snapshotKey(vaultID solana.PublicKey, timestampMs int64, source domain.SnapshotSource) string {
	return fmt.Sprintf("%s|%d|%s", vaultID, timestampMs, source)
}

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate.
func (s *PriceSnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.PriceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(snapshots))

	for _, p := range snapshots {
		if p == nil || p.VaultID.IsZero() || !p.Source.IsValid() {
			return storage.ErrInvalidInput
		}
		key := snapshotKey(p.VaultID, p.TimestampMs, p.Source)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range snapshots {
		snapshotCopy := *p
		s.data[snapshotKey(p.VaultID, p.TimestampMs, p.Source)] = &snapshotCopy
	}

	return nil
}

// GetByVault retrieves all snapshots for a vault, ordered by timestamp ASC.
func (s *PriceSnapshotStore) GetByVault(_ context.Context, vaultID solana.PublicKey) ([]*domain.PriceSnapshot, error) {
	return s.collect(func(p *domain.PriceSnapshot) bool {
		return p.VaultID == vaultID
	}), nil
}

// GetByTimeRange retrieves snapshots for a vault within [start, end] (inclusive).
func (s *PriceSnapshotStore) GetByTimeRange(_ context.Context, vaultID solana.PublicKey, start, end int64) ([]*domain.PriceSnapshot, error) {
	return s.collect(func(p *domain.PriceSnapshot) bool {
		return p.VaultID == vaultID && p.TimestampMs >= start && p.TimestampMs <= end
	}), nil
}

func (s *PriceSnapshotStore) collect(match func(*domain.PriceSnapshot) bool) []*domain.PriceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceSnapshot
	for _, p := range s.data {
		if match(p) {
			snapshotCopy := *p
			result = append(result, &snapshotCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].Source < result[j].Source
	})

	return result
}

var _ storage.PriceSnapshotStore = (*PriceSnapshotStore)(nil)
