package engine

import (
	"context"

	"github.com/tile-duel/internal/domain"
)

// MatchStore is the durable keyed storage the engine persists matches
// through. Update has full-record replace semantics: the engine always
// re-reads, mutates in memory, and writes back the whole record, holding
// the per-match lock across the cycle, so the store itself needs no
// optimistic concurrency.
type MatchStore interface {
	// Get returns the match or domain.ErrMatchNotFound.
	Get(ctx context.Context, id string) (*domain.Match, error)

	// Create inserts a new match. Fails on duplicate id.
	Create(ctx context.Context, m *domain.Match) error

	// Update replaces the stored record. Returns domain.ErrMatchNotFound
	// if the match no longer exists.
	Update(ctx context.Context, m *domain.Match) error

	// Delete removes the match. Deleting an absent match is not an error.
	Delete(ctx context.Context, id string) error

	// ListExpirable returns ids of matches past their expiry, or done for
	// longer than doneRetentionMs. Timestamps are Unix milliseconds.
	ListExpirable(ctx context.Context, nowMs, doneRetentionMs int64) ([]string, error)
}
