package performance

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/observability"
	"signal-analytics-go/internal/store"
)

// recordingStore keeps every Put so tests can inspect write order.
type recordingStore struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
}

func (s *recordingStore) Get(_ context.Context, _ string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.writes) == 0 {
		return nil, store.ErrNotFound
	}
	return s.writes[len(s.writes)-1], nil
}

func (s *recordingStore) Put(_ context.Context, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, append([]byte(nil), data...))
	return nil
}

func (s *recordingStore) last(t *testing.T) Snapshot {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.writes)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(s.writes[len(s.writes)-1], &snap))
	return snap
}

func TestExportImport_RoundTrip(t *testing.T) {
	// Arrange
	src := newTestAggregator()
	record(t, src, models.SignalBreakout, "brk-1", 0.02, -0.01)
	record(t, src, models.SignalMeanReversion, "mr-1", 0.005)
	high := 104.0
	raw := rawTrade(10, models.SignalSupportResistance, "sr-1", 0.01)
	raw.Direction = models.Short
	raw.HighPrice = &high
	_, err := src.RecordTrade(context.Background(), raw)
	require.NoError(t, err)

	first := src.Export()

	// Act
	dst := newTestAggregator()
	require.NoError(t, dst.Import(context.Background(), first))
	second := dst.Export()

	// Assert
	assert.Equal(t, first, second)
	assert.Equal(t, SnapshotVersion, second.Version)
	assert.Equal(t, epoch, second.Exported)
	assert.Equal(t, src.Performance(models.SignalBreakout), dst.Performance(models.SignalBreakout))
}

func TestSaveLoad(t *testing.T) {
	// Arrange
	ctx := context.Background()
	blobs := store.NewMemoryStore()
	src := newTestAggregator(WithStore(blobs, "perf"), WithAutoPersist(true))
	record(t, src, models.SignalMomentum, "mom-1", 0.01, 0.02, -0.015)

	// Act
	dst := newTestAggregator(WithStore(blobs, "perf"))
	err := dst.Load(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, dst.Len())
	assert.False(t, dst.Dirty())

	want, err := json.Marshal(src.Export())
	require.NoError(t, err)
	got, err := json.Marshal(dst.Export())
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestLoad_EdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing snapshot starts empty", func(t *testing.T) {
		a := newTestAggregator(WithStore(store.NewMemoryStore(), ""))
		assert.NoError(t, a.Load(ctx))
		assert.Equal(t, 0, a.Len())
	})

	t.Run("No store", func(t *testing.T) {
		a := newTestAggregator()
		assert.ErrorIs(t, a.Load(ctx), ErrNoStore)
		assert.ErrorIs(t, a.Save(ctx), ErrNoStore)
	})

	t.Run("Corrupt snapshot", func(t *testing.T) {
		blobs := store.NewMemoryStore()
		require.NoError(t, blobs.Put(ctx, DefaultStoreKey, []byte("{not json")))
		a := newTestAggregator(WithStore(blobs, ""))
		assert.Error(t, a.Load(ctx))
	})
}

func TestImport_VersionMismatch(t *testing.T) {
	// Arrange
	core, logs := observer.New(zapcore.WarnLevel)
	a := New(zap.New(core), WithClock(fixedClock))

	valid := rawTrade(0, models.SignalReversal, "rev-1", 0.02)
	valid.PnL = 2
	valid.PnLPercent = 2 // percentage points in 1.x
	valid.MAE = 0.9
	second := rawTrade(1, models.SignalReversal, "rev-1", -0.01)
	invalid := rawTrade(2, models.SignalReversal, "rev-1", 0.01)
	invalid.EntryPrice = 0
	duplicate := rawTrade(1, models.SignalReversal, "rev-1", 0.05)

	snap := Snapshot{
		Version: "1.3.0",
		Trades:  []models.TradeRecord{valid, second, invalid, duplicate},
	}

	// Act
	err := a.Import(context.Background(), snap)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, a.Len())

	got, err := a.Trade("rev-1-0")
	require.NoError(t, err)
	assert.InDelta(t, 0.02, got.PnLPercent, 1e-12)
	assert.Equal(t, 0.0, got.MAE)

	assert.Equal(t, 1, logs.FilterMessage("Importing snapshot from another version").Len())
	assert.Equal(t, 1, logs.FilterMessage("Skipping invalid trade in snapshot").Len())
	assert.Equal(t, 1, logs.FilterMessage("Skipping duplicate trade in snapshot").Len())
}

func TestImport_UnknownVersionLoadsWithoutMigration(t *testing.T) {
	a := newTestAggregator()
	raw := rawTrade(0, models.SignalPattern, "pat", 0.02)
	raw.PnLPercent = 0.5

	require.NoError(t, a.Import(context.Background(), Snapshot{Version: "9.0.0", Trades: []models.TradeRecord{raw}}))

	got, err := a.Trade("pat-0")
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.PnLPercent)
}

func TestImport_ReplacesState(t *testing.T) {
	a := newTestAggregator()
	record(t, a, models.SignalBreakout, "brk", 0.01, 0.02)

	require.NoError(t, a.Import(context.Background(), Snapshot{Version: SnapshotVersion}))

	assert.Equal(t, 0, a.Len())
	assert.Empty(t, a.TypeStats())
	assert.True(t, a.Dirty())
}

func TestPersist_StaleWriteNeverOverwritesNewer(t *testing.T) {
	// Arrange
	ctx := context.Background()
	rec := &recordingStore{}
	a := newTestAggregator(WithStore(rec, ""))
	record(t, a, models.SignalDivergence, "div", 0.01)
	older := a.Export()
	record(t, a, models.SignalDivergence, "div", 0.02)
	newer := a.Export()

	// Act
	require.NoError(t, a.persist(ctx, 2, newer))
	require.NoError(t, a.persist(ctx, 1, older))

	// Assert
	rec.mu.Lock()
	writes := len(rec.writes)
	rec.mu.Unlock()
	assert.Equal(t, 1, writes)
	assert.Len(t, rec.last(t).Trades, 2)
}

func TestAutoPersist_FailureIsLoggedNotReturned(t *testing.T) {
	// Arrange
	core, logs := observer.New(zapcore.ErrorLevel)
	metrics := observability.NewMetrics("test")
	rec := &recordingStore{err: errors.New("disk full")}
	a := New(zap.New(core), WithStore(rec, ""), WithAutoPersist(true), WithMetrics(metrics))

	// Act
	_, err := a.RecordTrade(context.Background(), rawTrade(0, models.SignalBreakout, "brk", 0.01))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, a.Len())
	assert.True(t, a.Dirty())
	assert.Equal(t, 1, logs.FilterMessage("Failed to persist snapshot").Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SnapshotWrites.WithLabelValues(observability.ResultError)))
}

func TestAutoPersist_WritesEveryChange(t *testing.T) {
	ctx := context.Background()
	rec := &recordingStore{}
	a := newTestAggregator(WithStore(rec, ""), WithAutoPersist(true))

	record(t, a, models.SignalVolumeSpike, "vs", 0.01, -0.01)
	require.NoError(t, a.DeleteTrade(ctx, "vs-0"))

	rec.mu.Lock()
	writes := len(rec.writes)
	rec.mu.Unlock()
	assert.Equal(t, 3, writes)
	snap := rec.last(t)
	require.Len(t, snap.Trades, 1)
	assert.Equal(t, "vs-1", snap.Trades[0].ID)
	require.Len(t, snap.TypeStats, 1)
	assert.Equal(t, 1, snap.TypeStats[0].Losses)
}

func TestAutosaver_FlushesOnShutdown(t *testing.T) {
	// Arrange
	rec := &recordingStore{}
	a := newTestAggregator(WithStore(rec, ""))
	record(t, a, models.SignalTrendFollowing, "tf", 0.01, 0.02)
	require.True(t, a.Dirty())

	saver := NewAutosaver(zap.NewNop(), a, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	// Act
	go func() {
		saver.Run(ctx)
		close(done)
	}()
	cancel()

	// Assert
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("autosaver did not stop")
	}
	assert.False(t, a.Dirty())
	assert.Len(t, rec.last(t).Trades, 2)
}

func TestAutosaver_SavesOnTick(t *testing.T) {
	rec := &recordingStore{}
	a := newTestAggregator(WithStore(rec, ""))
	saver := NewAutosaver(zap.NewNop(), a, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go saver.Run(ctx)

	record(t, a, models.SignalBreakout, "brk", 0.01)

	assert.Eventually(t, func() bool { return !a.Dirty() }, 2*time.Second, 10*time.Millisecond)
}
