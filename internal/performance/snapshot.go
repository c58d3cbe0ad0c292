package performance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/store"
)

// SnapshotVersion is written into every exported snapshot.
const SnapshotVersion = "2.0.0"

// ErrVersionMismatch describes a snapshot written by another format version.
// Import logs it and still loads what it can.
var ErrVersionMismatch = errors.New("snapshot version mismatch")

// Snapshot is the persisted form of the aggregator.
type Snapshot struct {
	Signals   []SignalStats        `json:"signals"`
	TypeStats []TypeStats          `json:"typeStats"`
	Trades    []models.TradeRecord `json:"trades"`
	Version   string               `json:"version"`
	Exported  time.Time            `json:"exported"`
}

// Export returns a consistent snapshot of the current state.
func (a *Aggregator) Export() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.exportLocked()
}

func (a *Aggregator) exportLocked() Snapshot {
	return Snapshot{
		Signals:   a.state.signalList(),
		TypeStats: a.state.typeList(),
		Trades:    append([]models.TradeRecord{}, a.state.trades...),
		Version:   SnapshotVersion,
		Exported:  a.now(),
	}
}

// Import replaces the current state with the trades in snap. Running tallies
// are rebuilt from the trades rather than trusted. Trades that fail
// validation or repeat an id are skipped with a warning. A snapshot of
// another version is loaded anyway; 1.x trades are migrated first.
func (a *Aggregator) Import(ctx context.Context, snap Snapshot) error {
	log := a.logger.With(zap.String("snapshot_version", snap.Version))

	migrate := false
	if snap.Version != SnapshotVersion {
		migrate = strings.HasPrefix(snap.Version, "1.")
		log.Warn("Importing snapshot from another version",
			zap.Error(fmt.Errorf("%w: got %q, want %q", ErrVersionMismatch, snap.Version, SnapshotVersion)),
			zap.Bool("migrating", migrate),
		)
	}

	next := newState()
	skipped := 0
	for i, raw := range snap.Trades {
		if err := ctx.Err(); err != nil {
			return err
		}
		if migrate {
			raw = migrateV1(raw)
		}
		t, err := models.NewTradeRecord(raw)
		if err != nil {
			skipped++
			log.Warn("Skipping invalid trade in snapshot", zap.Int("index", i), zap.String("id", raw.ID), zap.Error(err))
			continue
		}
		if _, dup := next.byID[t.ID]; dup {
			skipped++
			log.Warn("Skipping duplicate trade in snapshot", zap.String("id", t.ID))
			continue
		}
		next.add(t)
	}

	a.mu.Lock()
	a.state = next
	a.seq++
	stored := len(next.trades)
	a.mu.Unlock()

	a.metrics.SetStored(stored)
	log.Info("Imported snapshot", zap.Int("trades", stored), zap.Int("skipped", skipped))
	return nil
}

// migrateV1 adapts a 1.x trade. Those snapshots stored pnlPercent in
// percentage points (2 == 2%), so it is cleared and NewTradeRecord
// re-derives it from PnL. Excursions and holding period are always
// recomputed.
func migrateV1(t models.TradeRecord) models.TradeRecord {
	t.PnLPercent = 0
	t.MAE = 0
	t.MFE = 0
	t.HoldingPeriod = 0
	return t
}

// Save writes the current snapshot to the configured store.
func (a *Aggregator) Save(ctx context.Context) error {
	if a.store == nil {
		return ErrNoStore
	}
	a.mu.RLock()
	seq := a.seq
	snap := a.exportLocked()
	a.mu.RUnlock()

	return a.persist(ctx, seq, snap)
}

// Load imports the snapshot held by the configured store. A missing
// snapshot leaves the aggregator empty and is not an error.
func (a *Aggregator) Load(ctx context.Context) error {
	if a.store == nil {
		return ErrNoStore
	}
	data, err := a.store.Get(ctx, a.storeKey)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Info("No snapshot found, starting empty", zap.String("key", a.storeKey))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := a.Import(ctx, snap); err != nil {
		return err
	}

	// What was just loaded is what the store holds.
	a.mu.RLock()
	seq := a.seq
	a.mu.RUnlock()
	a.persistMu.Lock()
	if seq > a.persistedSeq {
		a.persistedSeq = seq
	}
	a.persistMu.Unlock()
	return nil
}

// Dirty reports whether there are writes not yet persisted.
func (a *Aggregator) Dirty() bool {
	a.mu.RLock()
	seq := a.seq
	a.mu.RUnlock()

	a.persistMu.Lock()
	defer a.persistMu.Unlock()
	return seq > a.persistedSeq
}

// snapshotForPersistLocked returns the snapshot to auto-persist after a
// write, or nil when auto-persist is off. Callers hold mu.
func (a *Aggregator) snapshotForPersistLocked() (uint64, *Snapshot) {
	if !a.autoPersist || a.store == nil {
		return 0, nil
	}
	snap := a.exportLocked()
	return a.seq, &snap
}

// persist writes snap unless a newer snapshot has already been written.
func (a *Aggregator) persist(ctx context.Context, seq uint64, snap Snapshot) error {
	a.persistMu.Lock()
	defer a.persistMu.Unlock()

	if seq < a.persistedSeq {
		a.logger.Debug("Skipping stale snapshot", zap.Uint64("seq", seq), zap.Uint64("persisted_seq", a.persistedSeq))
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		a.metrics.RecordSnapshotWrite(0, err)
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := a.store.Put(ctx, a.storeKey, data); err != nil {
		a.metrics.RecordSnapshotWrite(0, err)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	a.persistedSeq = seq
	a.metrics.RecordSnapshotWrite(len(data), nil)
	return nil
}

func (a *Aggregator) persistLogged(ctx context.Context, seq uint64, snap Snapshot) {
	if err := a.persist(ctx, seq, snap); err != nil {
		a.logger.Error("Failed to persist snapshot", zap.Uint64("seq", seq), zap.Error(err))
	}
}
