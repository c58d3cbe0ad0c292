// Package performance is the single source of truth for recorded trades and
// the statistics derived from them.
package performance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/observability"
	"signal-analytics-go/internal/random"
	"signal-analytics-go/internal/store"
)

var (
	ErrDuplicateTrade  = errors.New("trade already recorded")
	ErrTradeNotFound   = errors.New("trade not found")
	ErrSignalNotFound  = errors.New("signal not found")
	ErrNoStore         = errors.New("no store configured")
	ErrUnsupportedStat = errors.New("unsupported metric")
)

// DefaultStoreKey is the blob key the snapshot is persisted under.
const DefaultStoreKey = "signal-performance"

// SignalStats is the running tally for one signal instance.
type SignalStats struct {
	SignalID    string            `json:"signalId"`
	SignalType  models.SignalType `json:"signalType"`
	Trades      int               `json:"trades"`
	Wins        int               `json:"wins"`
	Losses      int               `json:"losses"`
	TotalPnL    float64           `json:"totalPnl"`
	TotalReturn float64           `json:"totalReturn"`
	FirstEntry  time.Time         `json:"firstEntry"`
	LastExit    time.Time         `json:"lastExit"`
}

// TypeStats is the running tally for one signal type.
type TypeStats struct {
	SignalType  models.SignalType `json:"signalType"`
	Trades      int               `json:"trades"`
	Wins        int               `json:"wins"`
	Losses      int               `json:"losses"`
	TotalPnL    float64           `json:"totalPnl"`
	TotalReturn float64           `json:"totalReturn"`
	GrossProfit float64           `json:"grossProfit"`
	GrossLoss   float64           `json:"grossLoss"`
}

// state is everything the aggregator mutates. It is only touched under mu.
type state struct {
	trades  []models.TradeRecord
	byID    map[string]int
	signals map[string]*SignalStats
	types   map[models.SignalType]*TypeStats
}

func newState() *state {
	return &state{
		byID:    make(map[string]int),
		signals: make(map[string]*SignalStats),
		types:   make(map[models.SignalType]*TypeStats),
	}
}

// add appends an already validated trade and updates both tallies.
func (s *state) add(t models.TradeRecord) {
	s.byID[t.ID] = len(s.trades)
	s.trades = append(s.trades, t)

	sig, ok := s.signals[t.SignalID]
	if !ok {
		sig = &SignalStats{SignalID: t.SignalID, SignalType: t.SignalType}
		s.signals[t.SignalID] = sig
	}
	sig.Trades++
	sig.TotalPnL += t.PnL
	sig.TotalReturn += t.Return()
	if t.IsWin() {
		sig.Wins++
	} else {
		sig.Losses++
	}
	if !t.EntryTime.IsZero() && (sig.FirstEntry.IsZero() || t.EntryTime.Before(sig.FirstEntry)) {
		sig.FirstEntry = t.EntryTime
	}
	if t.ExitTime.After(sig.LastExit) {
		sig.LastExit = t.ExitTime
	}

	ts, ok := s.types[t.SignalType]
	if !ok {
		ts = &TypeStats{SignalType: t.SignalType}
		s.types[t.SignalType] = ts
	}
	ts.Trades++
	ts.TotalPnL += t.PnL
	ts.TotalReturn += t.Return()
	if t.IsWin() {
		ts.Wins++
		ts.GrossProfit += t.PnL
	} else {
		ts.Losses++
		ts.GrossLoss -= t.PnL
	}
}

// rebuild replays trades into a fresh state.
func rebuild(trades []models.TradeRecord) *state {
	s := newState()
	for _, t := range trades {
		s.add(t)
	}
	return s
}

func (s *state) tradesOfType(t models.SignalType) []models.TradeRecord {
	out := make([]models.TradeRecord, 0)
	for _, tr := range s.trades {
		if tr.SignalType == t {
			out = append(out, tr)
		}
	}
	return out
}

func (s *state) tradesOfSignal(id string) []models.TradeRecord {
	out := make([]models.TradeRecord, 0)
	for _, tr := range s.trades {
		if tr.SignalID == id {
			out = append(out, tr)
		}
	}
	return out
}

func (s *state) signalList() []SignalStats {
	out := make([]SignalStats, 0, len(s.signals))
	for _, sig := range s.signals {
		out = append(out, *sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignalID < out[j].SignalID })
	return out
}

func (s *state) typeList() []TypeStats {
	out := make([]TypeStats, 0, len(s.types))
	for _, t := range models.AllSignalTypes() {
		if ts, ok := s.types[t]; ok {
			out = append(out, *ts)
		}
	}
	return out
}

// Aggregator records trades and answers performance queries over them.
// Writes are serialized; queries copy what they need under a read lock and
// compute outside it.
type Aggregator struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	rng     random.Source
	now     func() time.Time

	store       store.BlobStore
	storeKey    string
	autoPersist bool

	mu    sync.RWMutex
	state *state
	seq   uint64

	persistMu    sync.Mutex
	persistedSeq uint64
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithStore persists snapshots to s under key.
func WithStore(s store.BlobStore, key string) Option {
	return func(a *Aggregator) {
		a.store = s
		if key != "" {
			a.storeKey = key
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithRandom sets the source used by every simulation.
func WithRandom(src random.Source) Option {
	return func(a *Aggregator) { a.rng = random.Locked(src) }
}

// WithClock sets the clock used to stamp exported snapshots.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithAutoPersist saves a snapshot after every successful write.
func WithAutoPersist(enabled bool) Option {
	return func(a *Aggregator) { a.autoPersist = enabled }
}

// New creates an empty aggregator.
func New(logger *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		logger:   logger.Named("performance"),
		now:      time.Now,
		storeKey: DefaultStoreKey,
		state:    newState(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = random.Locked(random.NewTimeSeeded())
	}
	return a
}

// RecordTrade validates raw, derives its fields and adds it to the history.
// A rejected trade leaves the aggregate unchanged. When auto-persist is on,
// the updated snapshot is written before returning; a failed write is
// logged, not returned.
func (a *Aggregator) RecordTrade(ctx context.Context, raw models.TradeRecord) (models.TradeRecord, error) {
	t, err := models.NewTradeRecord(raw)
	if err != nil {
		a.metrics.RecordRejected()
		a.logger.Debug("Rejected trade", zap.String("signal_id", raw.SignalID), zap.Error(err))
		return models.TradeRecord{}, err
	}

	a.mu.Lock()
	if _, exists := a.state.byID[t.ID]; exists {
		a.mu.Unlock()
		a.metrics.RecordRejected()
		return models.TradeRecord{}, fmt.Errorf("%w: %s", ErrDuplicateTrade, t.ID)
	}
	a.state.add(t)
	a.seq++
	stored := len(a.state.trades)
	seq, snap := a.snapshotForPersistLocked()
	a.mu.Unlock()

	a.metrics.RecordTrade(t.SignalType.String(), stored)
	a.logger.Debug("Recorded trade",
		zap.String("id", t.ID),
		zap.String("signal_type", t.SignalType.String()),
		zap.Float64("pnl_percent", t.PnLPercent),
	)

	if snap != nil {
		a.persistLogged(ctx, seq, *snap)
	}
	return t, nil
}

// DeleteTrade removes a trade and rebuilds the running tallies.
func (a *Aggregator) DeleteTrade(ctx context.Context, id string) error {
	a.mu.Lock()
	idx, ok := a.state.byID[id]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	remaining := make([]models.TradeRecord, 0, len(a.state.trades)-1)
	remaining = append(remaining, a.state.trades[:idx]...)
	remaining = append(remaining, a.state.trades[idx+1:]...)
	a.state = rebuild(remaining)
	a.seq++
	stored := len(a.state.trades)
	seq, snap := a.snapshotForPersistLocked()
	a.mu.Unlock()

	a.metrics.RecordDeleted(stored)
	a.logger.Info("Deleted trade", zap.String("id", id))

	if snap != nil {
		a.persistLogged(ctx, seq, *snap)
	}
	return nil
}

// Trades returns a copy of the trades of one signal type in record order.
func (a *Aggregator) Trades(t models.SignalType) []models.TradeRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.tradesOfType(t)
}

// AllTrades returns a copy of every trade in record order.
func (a *Aggregator) AllTrades() []models.TradeRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.TradeRecord{}, a.state.trades...)
}

// Trade looks a trade up by id.
func (a *Aggregator) Trade(id string) (models.TradeRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	idx, ok := a.state.byID[id]
	if !ok {
		return models.TradeRecord{}, fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	return a.state.trades[idx], nil
}

// Len is the number of recorded trades.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.state.trades)
}

// Signals returns the running tally of every signal instance, by id.
func (a *Aggregator) Signals() []SignalStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.signalList()
}

// TypeStats returns the running tally of every signal type with trades.
func (a *Aggregator) TypeStats() []TypeStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.typeList()
}
