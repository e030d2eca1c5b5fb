package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tile-duel/internal/config"
	"github.com/tile-duel/internal/domain"
	"github.com/tile-duel/internal/engine"
	"github.com/tile-duel/internal/memstore"
)

func newTestSweeper(t *testing.T) (*Sweeper, *memstore.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	game := &config.DefaultConfig().Game
	eng := engine.New(store, engine.NewRateLimiter(game.RateLimitInterval), game, logger)

	sweepCfg := &config.SweepConfig{
		Interval:      time.Minute,
		DoneRetention: 120 * time.Second,
		Enabled:       true,
	}
	sw := NewSweeper(store, eng, sweepCfg, logger)
	sw.now = func() int64 { return 1_000_000 }
	return sw, store
}

func seedMatch(t *testing.T, store *memstore.Store, id string, expiresAt int64, status domain.Status, endedAt int64) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &domain.Match{
		ID:        id,
		Rows:      5,
		Cols:      5,
		K:         512,
		Seed:      "deadbeefcafe0123",
		Status:    status,
		EndedAt:   endedAt,
		ExpiresAt: expiresAt,
		CreatedAt: 1,
	}))
}

func TestSweeperRemovesExpiredMatches(t *testing.T) {
	sw, store := newTestSweeper(t)
	ctx := context.Background()

	seedMatch(t, store, "fresh", 5_000_000, domain.StatusActive, 0)
	seedMatch(t, store, "expired", 900_000, domain.StatusWaiting, 0)
	seedMatch(t, store, "done-recent", 5_000_000, domain.StatusDone, 999_000)
	seedMatch(t, store, "done-stale", 5_000_000, domain.StatusDone, 700_000)

	sw.RunOnce(ctx)

	_, err := store.Get(ctx, "fresh")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "done-recent")
	assert.NoError(t, err, "finished matches survive the retention grace")

	_, err = store.Get(ctx, "expired")
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)
	_, err = store.Get(ctx, "done-stale")
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)
}

func TestSweeperRunOnceIsIdempotent(t *testing.T) {
	sw, store := newTestSweeper(t)
	ctx := context.Background()

	seedMatch(t, store, "expired", 900_000, domain.StatusWaiting, 0)

	sw.RunOnce(ctx)
	sw.RunOnce(ctx)

	assert.Equal(t, 0, store.Len())
}

func TestSweeperLifecycle(t *testing.T) {
	sw, _ := newTestSweeper(t)
	ctx := context.Background()

	assert.False(t, sw.IsRunning())
	require.NoError(t, sw.Start(ctx))
	assert.True(t, sw.IsRunning())

	// Starting twice is a no-op.
	require.NoError(t, sw.Start(ctx))

	require.NoError(t, sw.Stop())
	assert.False(t, sw.IsRunning())
}
