package performance

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultAutosaveInterval is used when the autosaver is given no interval.
const DefaultAutosaveInterval = time.Minute

// flushTimeout bounds the final save after the run context is cancelled.
const flushTimeout = 10 * time.Second

// Autosaver periodically saves an aggregator that has unsaved writes.
type Autosaver struct {
	logger     *zap.Logger
	aggregator *Aggregator
	interval   time.Duration
}

// NewAutosaver creates an autosaver for a.
func NewAutosaver(logger *zap.Logger, a *Aggregator, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{
		logger:     logger.Named("autosaver"),
		aggregator: a,
		interval:   interval,
	}
}

// Run saves on every tick until ctx is cancelled, then flushes once more.
func (s *Autosaver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting autosave loop", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping autosave loop, flushing...")
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			s.saveIfDirty(flushCtx)
			cancel()
			return
		case <-ticker.C:
			s.saveIfDirty(ctx)
		}
	}
}

func (s *Autosaver) saveIfDirty(ctx context.Context) {
	if !s.aggregator.Dirty() {
		return
	}
	if err := s.aggregator.Save(ctx); err != nil {
		s.logger.Error("Autosave failed", zap.Error(err))
		return
	}
	s.logger.Debug("Autosaved snapshot")
}
