package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tile-duel/internal/domain"
)

func testMatch(id string) *domain.Match {
	return &domain.Match{
		ID:        id,
		Rows:      5,
		Cols:      5,
		K:         512,
		Seed:      "deadbeefcafe0123",
		Status:    domain.StatusWaiting,
		ExpiresAt: 2_000_000,
		CreatedAt: 1_000_000,
		P1:        &domain.Player{UserID: "u1", Handle: "Alice"},
	}
}

func TestStoreCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Get(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	require.NoError(t, s.Create(ctx, testMatch("m1")))
	assert.Error(t, s.Create(ctx, testMatch("m1")), "duplicate id")

	got, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.P1.UserID)

	got.Status = domain.StatusActive
	require.NoError(t, s.Update(ctx, got))
	got, err = s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	assert.ErrorIs(t, s.Update(ctx, testMatch("m2")), domain.ErrMatchNotFound)

	require.NoError(t, s.Delete(ctx, "m1"))
	_, err = s.Get(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	// Deleting an absent match is fine.
	assert.NoError(t, s.Delete(ctx, "m1"))
	assert.Equal(t, 0, s.Len())
}

func TestStoreIsolatesCallers(t *testing.T) {
	s := New()
	ctx := context.Background()

	m := testMatch("m1")
	m.P1.Board = []int{1, 0, 2}
	require.NoError(t, s.Create(ctx, m))

	// Mutating the caller's copy must not leak into the store.
	m.P1.Board[0] = 99
	m.Status = domain.StatusDone

	got, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 2}, got.P1.Board)
	assert.Equal(t, domain.StatusWaiting, got.Status)

	// Nor mutations of a returned copy.
	got.P1.Handle = "Mallory"
	again, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.P1.Handle)
}

func TestListExpirable(t *testing.T) {
	s := New()
	ctx := context.Background()

	fresh := testMatch("fresh")
	fresh.ExpiresAt = 5_000_000

	expired := testMatch("expired")
	expired.ExpiresAt = 900_000

	doneRecent := testMatch("done-recent")
	doneRecent.ExpiresAt = 5_000_000
	doneRecent.Status = domain.StatusDone
	doneRecent.EndedAt = 999_000

	doneStale := testMatch("done-stale")
	doneStale.ExpiresAt = 5_000_000
	doneStale.Status = domain.StatusDone
	doneStale.EndedAt = 800_000

	for _, m := range []*domain.Match{fresh, expired, doneRecent, doneStale} {
		require.NoError(t, s.Create(ctx, m))
	}

	ids, err := s.ListExpirable(ctx, 1_000_000, 120_000)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"expired", "done-stale"}, ids)
}
