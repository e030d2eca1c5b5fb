package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tile-duel/internal/config"
	"github.com/tile-duel/internal/domain"
	"github.com/tile-duel/internal/engine"
)

// MatchRemover deletes a match and its associated process-local state.
type MatchRemover interface {
	DeleteMatch(ctx context.Context, matchID string) error
}

// Sweeper periodically removes matches past their TTL and finished matches
// held beyond the done-retention grace. Sweep misses are recoverable: an
// expired match that survives a cycle is picked up by the next one.
type Sweeper struct {
	store   engine.MatchStore
	remover MatchRemover
	config  *config.SweepConfig
	logger  *slog.Logger
	now     func() int64
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSweeper creates a new expiry sweeper
func NewSweeper(
	store engine.MatchStore,
	remover MatchRemover,
	cfg *config.SweepConfig,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		store:   store,
		remover: remover,
		config:  cfg,
		logger:  logger,
		now:     func() int64 { return time.Now().UnixMilli() },
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the background sweep process
func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("expiry sweeper started",
		"interval", w.config.Interval,
		"done_retention", w.config.DoneRetention,
	)

	go w.run(ctx)
	return nil
}

// Stop stops the background sweep process
func (w *Sweeper) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("expiry sweeper stopped")
	return nil
}

// run is the main worker loop
func (w *Sweeper) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep runs one expiry cycle.
func (w *Sweeper) sweep(ctx context.Context) {
	startTime := time.Now()

	ids, err := w.store.ListExpirable(ctx, w.now(), w.config.DoneRetention.Milliseconds())
	if err != nil {
		w.logger.Error("failed to list expirable matches", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	removedCount := 0
	errorCount := 0

	for _, id := range ids {
		if err := w.remover.DeleteMatch(ctx, id); err != nil {
			if domain.IsNotFoundError(err) {
				continue
			}
			w.logger.Error("failed to remove expired match",
				"match_id", id,
				"error", err,
			)
			errorCount++
		} else {
			removedCount++
		}
	}

	w.logger.Info("sweep cycle completed",
		"duration", time.Since(startTime),
		"removed", removedCount,
		"errors", errorCount,
	)
}

// IsRunning returns whether the sweeper is currently running
func (w *Sweeper) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sweep cycle (useful for manual triggers)
func (w *Sweeper) RunOnce(ctx context.Context) {
	w.sweep(ctx)
}
