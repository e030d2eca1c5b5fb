package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tile-duel/internal/config"
	"github.com/tile-duel/internal/domain"
)

// syncCaller is the rate-limit key used for sync-only board updates, which
// carry no user identity.
const syncCaller = "sync"

// ViewCache caches public match views for the polling read path. All cache
// failures are treated as best-effort: the engine logs and falls through to
// the store.
type ViewCache interface {
	SetView(ctx context.Context, view *domain.MatchView) error
	GetView(ctx context.Context, matchID string) (*domain.MatchView, error)
	Invalidate(ctx context.Context, matchID string) error
}

// Broadcaster pushes match updates to subscribed live clients.
type Broadcaster interface {
	BroadcastMatchUpdate(matchID string, view *domain.MatchView)
}

// Engine is the server-authoritative match state machine. It validates
// phase transitions, applies player mutations, adjudicates winners, and
// persists everything through the MatchStore. Operations are serialized
// per match id; see matchLocks.
type Engine struct {
	store   MatchStore
	limiter *RateLimiter
	game    *config.GameConfig
	logger  *slog.Logger
	locks   *matchLocks
	cache   ViewCache
	hub     Broadcaster
	now     func() int64
}

// New creates a match engine.
func New(store MatchStore, limiter *RateLimiter, game *config.GameConfig, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		limiter: limiter,
		game:    game,
		logger:  logger,
		locks:   newMatchLocks(),
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// SetCache attaches a best-effort view cache for the polling read path.
func (e *Engine) SetCache(cache ViewCache) {
	e.cache = cache
}

// SetHub attaches a broadcaster notified on every match mutation.
func (e *Engine) SetHub(hub Broadcaster) {
	e.hub = hub
}

// Signup mints a fresh user identity for a handle.
func (e *Engine) Signup(handle string) (*domain.Identity, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, domain.ErrInvalidRequest
	}
	return &domain.Identity{
		UserID: "user-" + uuid.NewString(),
		Handle: handle,
	}, nil
}

// CreateMatch allocates a new match with the caller seated as p1.
func (e *Engine) CreateMatch(ctx context.Context, req domain.CreateMatchRequest) (*domain.CreateMatchResponse, error) {
	handle := strings.TrimSpace(req.Handle)
	if req.UserID == "" || handle == "" {
		return nil, domain.ErrInvalidRequest
	}

	now := e.now()
	match := &domain.Match{
		ID:       "match-" + uuid.NewString(),
		Rows:     e.game.Rows,
		Cols:     e.game.Cols,
		K:        e.game.ScrambleSwaps,
		Seed:     newSeed(),
		ImageURL: e.game.ImageURL,
		Status:   domain.StatusWaiting,
		P1: &domain.Player{
			UserID: req.UserID,
			Handle: handle,
		},
		ExpiresAt: now + e.game.MatchTTL.Milliseconds(),
		CreatedAt: now,
	}

	if err := e.store.Create(ctx, match); err != nil {
		return nil, fmt.Errorf("creating match: %w", err)
	}
	e.publish(ctx, match)

	e.logger.Info("match created",
		"match_id", match.ID,
		"user_id", req.UserID,
		"rows", match.Rows,
		"cols", match.Cols,
	)

	return &domain.CreateMatchResponse{
		MatchID:  match.ID,
		Seed:     match.Seed,
		Rows:     match.Rows,
		Cols:     match.Cols,
		K:        match.K,
		ImageURL: match.ImageURL,
	}, nil
}

// GetMatch returns the public view of a match, preferring the view cache.
func (e *Engine) GetMatch(ctx context.Context, matchID string) (*domain.MatchView, error) {
	if e.cache != nil {
		view, err := e.cache.GetView(ctx, matchID)
		if err == nil && view != nil {
			return view, nil
		}
	}

	match, err := e.store.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	view := e.view(match)
	if e.cache != nil {
		if err := e.cache.SetView(ctx, view); err != nil {
			e.logger.Warn("failed to cache match view", "match_id", matchID, "error", err)
		}
	}
	return view, nil
}

// Join seats the caller as p2. Joining a match the caller already occupies
// is idempotent. A seat lazily created by sync-only updates (empty user id)
// counts as free and is claimed with its board state intact.
func (e *Engine) Join(ctx context.Context, matchID string, req domain.JoinRequest) (*domain.JoinResponse, error) {
	handle := strings.TrimSpace(req.Handle)
	if req.UserID == "" || handle == "" {
		return nil, domain.ErrInvalidRequest
	}

	mu := e.locks.get(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := e.store.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if match.Status != domain.StatusWaiting {
		return nil, domain.ErrNotAcceptingPlayers
	}

	if !match.HasPlayer(req.UserID) {
		switch {
		case match.P2 == nil:
			match.P2 = &domain.Player{UserID: req.UserID, Handle: handle}
		case match.P2.UserID == "":
			match.P2.UserID = req.UserID
			match.P2.Handle = handle
		default:
			return nil, domain.ErrMatchFull
		}
		if err := e.store.Update(ctx, match); err != nil {
			return nil, fmt.Errorf("updating match: %w", err)
		}
		e.publish(ctx, match)
		e.logger.Info("player joined", "match_id", matchID, "user_id", req.UserID)
	}

	return &domain.JoinResponse{
		ID:     match.ID,
		Status: match.Status,
		P1:     match.P1,
		P2:     match.P2,
	}, nil
}

// AddSecondPlayer is the privileged join variant: p1 mints a fresh identity
// for the second seat directly.
func (e *Engine) AddSecondPlayer(ctx context.Context, matchID string, req domain.AddPlayerRequest) (*domain.AddPlayerResponse, error) {
	handle := strings.TrimSpace(req.Player2Handle)
	if req.P1UserID == "" || handle == "" {
		return nil, domain.ErrInvalidRequest
	}

	mu := e.locks.get(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := e.store.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if match.P1 == nil || match.P1.UserID != req.P1UserID {
		return nil, domain.ErrForbidden
	}
	if match.Status != domain.StatusWaiting {
		return nil, domain.ErrNotAcceptingPlayers
	}
	if match.P2 != nil && match.P2.UserID != "" {
		return nil, domain.ErrPlayerExists
	}

	p2UserID := "user-" + uuid.NewString()
	if match.P2 == nil {
		match.P2 = &domain.Player{}
	}
	match.P2.UserID = p2UserID
	match.P2.Handle = handle

	if err := e.store.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("updating match: %w", err)
	}
	e.publish(ctx, match)

	e.logger.Info("second player added", "match_id", matchID, "p2_user_id", p2UserID)

	return &domain.AddPlayerResponse{
		P2UserID: p2UserID,
		P2Handle: handle,
	}, nil
}

// SetReady marks the caller's seat ready. When both seats are ready and the
// match is still waiting, it transitions to active with the gameplay timer
// starting after the lead-in countdown. Ready is never unset; calls on an
// already active or done match are no-ops that report the start time.
func (e *Engine) SetReady(ctx context.Context, matchID, userID string) (*domain.ReadyResponse, error) {
	if userID == "" {
		return nil, domain.ErrInvalidRequest
	}

	mu := e.locks.get(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := e.store.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	player := match.PlayerByID(userID)
	if player == nil {
		return nil, domain.ErrNotInMatch
	}

	if match.Status != domain.StatusWaiting {
		return &domain.ReadyResponse{StartedAt: match.StartedAt}, nil
	}

	player.Ready = true

	if match.P1 != nil && match.P1.Ready && match.P2 != nil && match.P2.Ready {
		match.StartedAt = e.now() + e.game.LeadIn.Milliseconds()
		match.Status = domain.StatusActive
		e.logger.Info("match started", "match_id", matchID, "started_at", match.StartedAt)
	}

	if err := e.store.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("updating match: %w", err)
	}
	e.publish(ctx, match)

	return &domain.ReadyResponse{StartedAt: match.StartedAt}, nil
}

// RecordProgress applies a partial progress update to one seat. Updates are
// addressed by user id, or by explicit slot number for sync-only callers;
// slot-addressed updates create the seat on first contact (ensureSeat) so
// board sync arriving before a formal join is tolerated. Progress against a
// done match is rejected.
func (e *Engine) RecordProgress(ctx context.Context, matchID string, upd domain.ProgressUpdate) error {
	caller := upd.UserID
	if upd.SyncOnly {
		// Sync-only updates carry board state and nothing else.
		if upd.Percent != nil || upd.Moves != nil {
			return domain.ErrInvalidRequest
		}
		caller = syncCaller
	} else if upd.UserID == "" {
		return domain.ErrInvalidRequest
	}

	mu := e.locks.get(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := e.store.Get(ctx, matchID)
	if err != nil {
		return err
	}

	if match.Status == domain.StatusDone {
		return domain.ErrMatchDone
	}
	if !upd.SyncOnly && !match.HasPlayer(upd.UserID) {
		return domain.ErrNotInMatch
	}
	if !e.limiter.Allow(matchID, caller) {
		return domain.ErrRateLimited
	}

	var target *domain.Player
	switch {
	case upd.PlayerNumber == domain.SlotP1 || upd.PlayerNumber == domain.SlotP2:
		target = e.ensureSeat(match, upd.PlayerNumber, upd.UserID)
	default:
		target = match.PlayerByID(upd.UserID)
	}
	if target == nil {
		// Nothing addressable; acknowledged without mutation.
		return nil
	}

	if upd.Percent != nil {
		target.Percent = *upd.Percent
	}
	if upd.Moves != nil {
		target.Moves = *upd.Moves
	}
	if upd.LastCorrectAt != nil {
		target.LastCorrectAt = *upd.LastCorrectAt
	}
	if upd.Board != nil {
		target.Board = upd.Board
	}

	if err := e.store.Update(ctx, match); err != nil {
		return fmt.Errorf("updating match: %w", err)
	}
	e.publish(ctx, match)
	return nil
}

// ensureSeat returns the player record for a slot, creating it if the seat
// has never been touched. Created seats carry a placeholder handle and the
// caller's user id (empty for sync-only callers); Join later claims such a
// seat by filling in the real identity.
func (e *Engine) ensureSeat(match *domain.Match, slot int, userID string) *domain.Player {
	if p := match.Seat(slot); p != nil {
		return p
	}
	p := &domain.Player{
		UserID: userID,
		Handle: fmt.Sprintf("Player %d", slot),
	}
	switch slot {
	case domain.SlotP1:
		match.P1 = p
	case domain.SlotP2:
		match.P2 = p
	}
	return p
}

// Finish records the caller's latest progress and evaluates the two winning
// conditions in order: a fully solved board wins immediately; otherwise, if
// the match duration has elapsed, the winner is adjudicated by tie-break
// (higher percent, then fewer moves, then p1). If neither holds, the match
// stays active and the call has only recorded progress.
func (e *Engine) Finish(ctx context.Context, matchID string, req domain.FinishRequest) (*domain.FinishResult, error) {
	if req.UserID == "" {
		return nil, domain.ErrInvalidRequest
	}

	mu := e.locks.get(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := e.store.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	player := match.PlayerByID(req.UserID)
	if player == nil {
		return nil, domain.ErrNotInMatch
	}
	if match.Status != domain.StatusActive {
		return nil, domain.ErrNotActive
	}
	if match.StartedAt == 0 {
		return nil, domain.ErrNotStarted
	}
	if !domain.IsPermutation(req.Board, match.Size()) {
		return nil, domain.ErrInvalidRequest
	}
	if !e.limiter.Allow(matchID, req.UserID) {
		return nil, domain.ErrRateLimited
	}

	now := e.now()
	elapsed := now - match.StartedAt
	solved := domain.IsSolved(req.Board)
	timeout := elapsed >= e.game.MatchDuration.Milliseconds()

	// The caller's latest state is recorded regardless of outcome.
	player.Moves = req.Moves
	player.Percent = req.Percent
	if req.LastCorrectAt != nil {
		player.LastCorrectAt = *req.LastCorrectAt
	}
	player.Board = req.Board
	player.FinishedAt = now
	player.DurationMs = elapsed

	result := &domain.FinishResult{Solved: solved, Timeout: timeout}

	switch {
	case solved:
		// Solve win takes precedence over timeout adjudication.
		e.endMatch(match, req.UserID, now)
		result.Timeout = false
		e.logger.Info("match solved", "match_id", matchID, "winner_id", req.UserID)

	case timeout:
		// Backfill result fields for any player who never submitted.
		for _, p := range []*domain.Player{match.P1, match.P2} {
			if p != nil && p.FinishedAt == 0 {
				p.FinishedAt = now
				p.DurationMs = elapsed
			}
		}
		e.endMatch(match, adjudicateWinner(match), now)
		result.Adjudicated = true
		e.logger.Info("match adjudicated",
			"match_id", matchID,
			"winner_id", match.WinnerID,
		)
	}

	if err := e.store.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("updating match: %w", err)
	}
	e.publish(ctx, match)

	result.WinnerID = match.WinnerID
	result.P1Time = durationOf(match.P1)
	result.P2Time = durationOf(match.P2)
	return result, nil
}

// endMatch transitions an active match to done with the given winner.
func (e *Engine) endMatch(match *domain.Match, winnerID string, now int64) {
	match.WinnerID = winnerID
	match.Status = domain.StatusDone
	match.EndedAt = now

	for _, p := range []*domain.Player{match.P1, match.P2} {
		if p == nil {
			continue
		}
		won := p.UserID == winnerID
		p.Won = &won
	}
}

// adjudicateWinner picks the timeout winner: higher percent, then fewer
// moves, then p1 by documented tie-break. Never produces a draw once at
// least one seat is occupied.
func adjudicateWinner(match *domain.Match) string {
	p1, p2 := match.P1, match.P2
	switch {
	case p1 == nil && p2 == nil:
		return ""
	case p2 == nil:
		return p1.UserID
	case p1 == nil:
		return p2.UserID
	}

	if p1.Percent != p2.Percent {
		if p1.Percent > p2.Percent {
			return p1.UserID
		}
		return p2.UserID
	}
	if p1.Moves != p2.Moves {
		if p1.Moves < p2.Moves {
			return p1.UserID
		}
		return p2.UserID
	}
	return p1.UserID
}

// DeleteMatch removes a match and all process-local state keyed to it:
// rate-limit entries, the per-match lock, and the cached view. Deletion is
// idempotent.
func (e *Engine) DeleteMatch(ctx context.Context, matchID string) error {
	mu := e.locks.get(matchID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.store.Delete(ctx, matchID); err != nil {
		return fmt.Errorf("deleting match: %w", err)
	}

	e.limiter.Purge(matchID)
	e.locks.forget(matchID)

	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, matchID); err != nil {
			e.logger.Warn("failed to invalidate cached view", "match_id", matchID, "error", err)
		}
	}
	return nil
}

// view projects a match with the engine's timing profile attached.
func (e *Engine) view(match *domain.Match) *domain.MatchView {
	return match.View(e.game.MatchDuration.Milliseconds(), e.game.MemorizeWindow.Milliseconds())
}

// publish refreshes the cached view and notifies live subscribers.
// Both paths are best-effort.
func (e *Engine) publish(ctx context.Context, match *domain.Match) {
	view := e.view(match)
	if e.cache != nil {
		if err := e.cache.SetView(ctx, view); err != nil {
			e.logger.Warn("failed to cache match view", "match_id", match.ID, "error", err)
		}
	}
	if e.hub != nil {
		e.hub.BroadcastMatchUpdate(match.ID, view)
	}
}

// durationOf returns a player's recorded duration, or nil when absent.
func durationOf(p *domain.Player) *int64 {
	if p == nil || p.DurationMs == 0 {
		return nil
	}
	d := p.DurationMs
	return &d
}

// newSeed mints a public scramble seed.
func newSeed() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
