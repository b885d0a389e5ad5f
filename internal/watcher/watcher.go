// Package watcher follows a deployed vault's pool over WebSocket, records
// WATCH price snapshots and reports donations.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/observability"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage"
)

// ErrSubscriptionClosed is returned when an account subscription ends
// before the context is canceled.
var ErrSubscriptionClosed = errors.New("subscription closed")

// PoolReader reads the current pool of a vault and the slot it was observed at.
type PoolReader interface {
	Pool(ctx context.Context, v *domain.Vault) (domain.PoolState, int64, error)
}

// Donation is a rise of the pooled balance with no change in share supply.
// It raises the share price for every holder.
type Donation struct {
	VaultID       solana.PublicKey
	Slot          int64
	Amount        uint64
	PooledBalance uint64
	ShareSupply   uint64
}

// Config holds watcher tuning.
type Config struct {
	// FlushInterval bounds how long an observed state stays pending and how
	// long snapshots stay buffered.
	FlushInterval time.Duration
	// BatchSize flushes the snapshot buffer once it holds this many entries.
	BatchSize int
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() Config {
	return Config{
		FlushInterval: 2 * time.Second,
		BatchSize:     100,
	}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock sets the time source for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// WithDonationHandler registers fn to be called for each detected donation.
func WithDonationHandler(fn func(Donation)) Option {
	return func(w *Watcher) { w.onDonation = fn }
}

// observation is the pool state assembled from notifications.
type observation struct {
	pooled uint64
	supply uint64
	slot   int64
}

// Watcher tracks one vault. Notifications for the asset account and the
// share mint arrive separately; changes are grouped by slot and a slot's
// state is judged only once a later slot closes it. The flush ticker closes
// a pending slot only against a pool read taken at or after that slot, so a
// deposit whose mint notification is still in flight is never mistaken for
// a donation.
type Watcher struct {
	vault  *domain.Vault
	ws     solana.WSClient
	reader PoolReader
	store  storage.PriceSnapshotStore
	cfg    Config

	logger     *zap.Logger
	now        func() time.Time
	onDonation func(Donation)

	committed observation
	pending   observation
	dirty     bool
	lastTs    int64
	buffer    []*domain.PriceSnapshot
}

// New creates a Watcher for v. store may be nil, in which case snapshots are
// only reflected in metrics.
func New(v *domain.Vault, ws solana.WSClient, reader PoolReader, store storage.PriceSnapshotStore, cfg Config, opts ...Option) *Watcher {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	w := &Watcher{
		vault:  v,
		ws:     ws,
		reader: reader,
		store:  store,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("watcher").With(zap.Stringer("vault", v.ID))
	return w
}

// Run seeds the state from the reader, subscribes to the asset account and
// share mint and processes notifications until ctx is canceled. Buffered
// snapshots are flushed before returning.
func (w *Watcher) Run(ctx context.Context) error {
	pool, slot, err := w.reader.Pool(ctx, w.vault)
	if err != nil {
		return fmt.Errorf("read initial pool: %w", err)
	}
	w.committed = observation{pooled: pool.PooledBalance, supply: pool.ShareSupply, slot: slot}
	w.pending = w.committed
	w.record(w.committed)

	assetCh, err := w.ws.SubscribeAccount(ctx, w.vault.AssetAccount)
	if err != nil {
		return fmt.Errorf("subscribe asset account: %w", err)
	}
	mintCh, err := w.ws.SubscribeAccount(ctx, w.vault.ShareMint)
	if err != nil {
		return fmt.Errorf("subscribe share mint: %w", err)
	}

	w.logger.Info("watching vault",
		zap.Stringer("asset_account", w.vault.AssetAccount),
		zap.Stringer("share_mint", w.vault.ShareMint),
		zap.Uint64("pooled_balance", pool.PooledBalance),
		zap.Uint64("share_supply", pool.ShareSupply),
		zap.Int64("slot", slot),
	)

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.closeSlot()
			w.flush(context.WithoutCancel(ctx))
			w.logger.Info("watcher stopping")
			return ctx.Err()

		case notif, ok := <-assetCh:
			if !ok {
				w.closeSlot()
				w.flush(ctx)
				return fmt.Errorf("asset account: %w", ErrSubscriptionClosed)
			}
			w.handleAsset(ctx, notif)

		case notif, ok := <-mintCh:
			if !ok {
				w.closeSlot()
				w.flush(ctx)
				return fmt.Errorf("share mint: %w", ErrSubscriptionClosed)
			}
			w.handleMint(ctx, notif)

		case <-ticker.C:
			w.settle(ctx)
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleAsset(ctx context.Context, notif solana.AccountNotification) {
	acct, err := solana.DecodeTokenAccount(notif.Data)
	if err != nil {
		w.logger.Warn("decode asset account", zap.Int64("slot", notif.Slot), zap.Error(err))
		return
	}
	w.observe(ctx, notif.Slot, func(o *observation) { o.pooled = acct.Amount })
}

func (w *Watcher) handleMint(ctx context.Context, notif solana.AccountNotification) {
	m, err := solana.DecodeMint(notif.Data)
	if err != nil {
		w.logger.Warn("decode share mint", zap.Int64("slot", notif.Slot), zap.Error(err))
		return
	}
	w.observe(ctx, notif.Slot, func(o *observation) { o.supply = m.Supply })
}

// observe applies one account change at slot. Stale slots are dropped.
func (w *Watcher) observe(ctx context.Context, slot int64, apply func(*observation)) {
	if slot < w.committed.slot {
		w.logger.Debug("stale notification", zap.Int64("slot", slot), zap.Int64("committed_slot", w.committed.slot))
		return
	}
	if w.dirty && slot > w.pending.slot {
		w.closeSlot()
	}

	apply(&w.pending)
	if slot > w.pending.slot {
		w.pending.slot = slot
	}
	w.dirty = true
	observability.UpdateHighestSlot(slot)

	if len(w.buffer) >= w.cfg.BatchSize {
		w.flush(ctx)
	}
}

// settle closes the pending slot using a fresh pool read. The read replaces
// the pending state only if it was observed at or after the pending slot;
// otherwise the slot stays open until a later notification or tick.
func (w *Watcher) settle(ctx context.Context) {
	if !w.dirty {
		return
	}
	pool, slot, err := w.reader.Pool(ctx, w.vault)
	if err != nil {
		w.logger.Warn("read pool", zap.Int64("pending_slot", w.pending.slot), zap.Error(err))
		return
	}
	if slot < w.pending.slot {
		w.logger.Debug("pool read behind pending slot", zap.Int64("slot", slot), zap.Int64("pending_slot", w.pending.slot))
		return
	}
	w.pending = observation{pooled: pool.PooledBalance, supply: pool.ShareSupply, slot: slot}
	w.closeSlot()
}

// closeSlot commits the pending state, checking it for a donation.
func (w *Watcher) closeSlot() {
	if !w.dirty {
		return
	}
	prev, cur := w.committed, w.pending
	w.committed = cur
	w.dirty = false

	if cur.pooled == prev.pooled && cur.supply == prev.supply {
		return
	}
	if cur.pooled > prev.pooled && cur.supply == prev.supply {
		d := Donation{
			VaultID:       w.vault.ID,
			Slot:          cur.slot,
			Amount:        cur.pooled - prev.pooled,
			PooledBalance: cur.pooled,
			ShareSupply:   cur.supply,
		}
		observability.RecordDonation(w.vault.ID.String())
		w.logger.Warn("donation detected",
			zap.Uint64("amount", d.Amount),
			zap.Uint64("pooled_balance", d.PooledBalance),
			zap.Uint64("share_supply", d.ShareSupply),
			zap.Int64("slot", d.Slot),
		)
		if w.onDonation != nil {
			w.onDonation(d)
		}
	}
	w.record(cur)
}

// record buffers a WATCH snapshot of o and updates the pool gauges.
func (w *Watcher) record(o observation) {
	ts := w.now().UnixMilli()
	if ts <= w.lastTs {
		ts = w.lastTs + 1
	}
	w.lastTs = ts

	pool := domain.PoolState{VaultID: w.vault.ID, PooledBalance: o.pooled, ShareSupply: o.supply}
	snap := domain.NewPriceSnapshot(pool, ts, o.slot, domain.SnapshotSourceWatch)
	w.buffer = append(w.buffer, snap)

	observability.UpdatePool(w.vault.ID.String(), o.pooled, o.supply, snap.SharePrice.InexactFloat64())
}

// flush writes buffered snapshots. On a transient failure the buffer is kept
// for the next attempt.
func (w *Watcher) flush(ctx context.Context) {
	if len(w.buffer) == 0 {
		return
	}
	if w.store == nil {
		observability.RecordSnapshots(string(domain.SnapshotSourceWatch), len(w.buffer))
		w.buffer = w.buffer[:0]
		return
	}
	if err := w.store.InsertBulk(ctx, w.buffer); err != nil {
		w.logger.Error("write snapshots", zap.Int("count", len(w.buffer)), zap.Error(err))
		if errors.Is(err, storage.ErrDuplicateKey) || errors.Is(err, storage.ErrInvalidInput) {
			w.buffer = w.buffer[:0]
		}
		return
	}
	observability.RecordSnapshots(string(domain.SnapshotSourceWatch), len(w.buffer))
	w.buffer = w.buffer[:0]
}

// Current returns the last committed pool state. It must not be called while
// Run is executing.
func (w *Watcher) Current() domain.PoolState {
	return domain.PoolState{
		VaultID:       w.vault.ID,
		PooledBalance: w.committed.pooled,
		ShareSupply:   w.committed.supply,
	}
}
