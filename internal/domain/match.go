package domain

// Status represents the lifecycle phase of a match.
// Transitions are forward-only: waiting -> active -> done.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
	StatusDone    Status = "done"
)

// Player slots within a match
const (
	SlotP1 = 1
	SlotP2 = 2
)

// Player is one contestant's mutable progress within a match.
// The board is client-computed and server-stored; the server validates
// solved/percent from what it is given but never recomputes swaps.
type Player struct {
	UserID        string `json:"userId"`
	Handle        string `json:"handle"`
	Ready         bool   `json:"ready"`
	Moves         int    `json:"moves"`
	Percent       int    `json:"percent"`
	LastCorrectAt int64  `json:"lastCorrectAt,omitempty"`
	FinishedAt    int64  `json:"finishedAt,omitempty"`
	DurationMs    int64  `json:"durationMs,omitempty"`
	Won           *bool  `json:"won,omitempty"`
	Board         []int  `json:"board,omitempty"`
}

// Match is a single contest instance. All timestamps are Unix milliseconds;
// zero means unset.
type Match struct {
	ID        string  `json:"id"`
	Rows      int     `json:"rows"`
	Cols      int     `json:"cols"`
	K         int     `json:"k"`
	Seed      string  `json:"seed"`
	ImageURL  string  `json:"imageUrl"`
	Status    Status  `json:"status"`
	StartedAt int64   `json:"startedAt,omitempty"`
	EndedAt   int64   `json:"endedAt,omitempty"`
	WinnerID  string  `json:"winnerId,omitempty"`
	ExpiresAt int64   `json:"expiresAt"`
	CreatedAt int64   `json:"createdAt"`
	P1        *Player `json:"p1,omitempty"`
	P2        *Player `json:"p2,omitempty"`
}

// Size returns the number of cells on the match's board.
func (m *Match) Size() int {
	return m.Rows * m.Cols
}

// PlayerByID returns the seat occupied by userID, or nil.
func (m *Match) PlayerByID(userID string) *Player {
	if m.P1 != nil && m.P1.UserID == userID {
		return m.P1
	}
	if m.P2 != nil && m.P2.UserID == userID {
		return m.P2
	}
	return nil
}

// Opponent returns the other seat relative to userID, or nil.
func (m *Match) Opponent(userID string) *Player {
	if m.P1 != nil && m.P1.UserID == userID {
		return m.P2
	}
	if m.P2 != nil && m.P2.UserID == userID {
		return m.P1
	}
	return nil
}

// HasPlayer reports whether userID occupies either seat.
func (m *Match) HasPlayer(userID string) bool {
	return m.PlayerByID(userID) != nil
}

// Seat returns the player record for a slot number, or nil.
func (m *Match) Seat(slot int) *Player {
	switch slot {
	case SlotP1:
		return m.P1
	case SlotP2:
		return m.P2
	}
	return nil
}

// Clone returns a deep copy of the match, including seats and boards.
func (m *Match) Clone() *Match {
	clone := *m
	clone.P1 = m.P1.clone()
	clone.P2 = m.P2.clone()
	return &clone
}

func (p *Player) clone() *Player {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Won != nil {
		won := *p.Won
		clone.Won = &won
	}
	if p.Board != nil {
		clone.Board = append([]int(nil), p.Board...)
	}
	return &clone
}

// PlayerView is the externally visible projection of a Player.
type PlayerView struct {
	UserID     string `json:"userId"`
	Handle     string `json:"handle"`
	Moves      int    `json:"moves"`
	Percent    int    `json:"percent"`
	Ready      bool   `json:"ready"`
	DurationMs int64  `json:"durationMs,omitempty"`
	FinishedAt int64  `json:"finishedAt,omitempty"`
	Won        *bool  `json:"won,omitempty"`
	Board      []int  `json:"board,omitempty"`
}

// MatchView is the externally visible projection of a Match. The seed is
// intentionally public: clients reproduce the scrambled board from it.
// DurationMs and MemorizeMs are timer hints so clients can render the
// countdown and the memorization window.
type MatchView struct {
	ID         string      `json:"id"`
	Rows       int         `json:"rows"`
	Cols       int         `json:"cols"`
	K          int         `json:"k"`
	Seed       string      `json:"seed"`
	ImageURL   string      `json:"imageUrl"`
	Status     Status      `json:"status"`
	StartedAt  int64       `json:"startedAt,omitempty"`
	WinnerID   string      `json:"winnerId,omitempty"`
	DurationMs int64       `json:"matchDurationMs"`
	MemorizeMs int64       `json:"memorizeMs"`
	P1         *PlayerView `json:"p1,omitempty"`
	P2         *PlayerView `json:"p2,omitempty"`
}

func (p *Player) view() *PlayerView {
	if p == nil {
		return nil
	}
	return &PlayerView{
		UserID:     p.UserID,
		Handle:     p.Handle,
		Moves:      p.Moves,
		Percent:    p.Percent,
		Ready:      p.Ready,
		DurationMs: p.DurationMs,
		FinishedAt: p.FinishedAt,
		Won:        p.Won,
		Board:      p.Board,
	}
}

// View projects the match into its public form.
func (m *Match) View(durationMs, memorizeMs int64) *MatchView {
	return &MatchView{
		ID:         m.ID,
		Rows:       m.Rows,
		Cols:       m.Cols,
		K:          m.K,
		Seed:       m.Seed,
		ImageURL:   m.ImageURL,
		Status:     m.Status,
		StartedAt:  m.StartedAt,
		WinnerID:   m.WinnerID,
		DurationMs: durationMs,
		MemorizeMs: memorizeMs,
		P1:         m.P1.view(),
		P2:         m.P2.view(),
	}
}

// Identity is a minted user identity.
type Identity struct {
	UserID string `json:"userId"`
	Handle string `json:"handle"`
}

// CreateMatchRequest is a request to create a new match.
type CreateMatchRequest struct {
	UserID string `json:"userId"`
	Handle string `json:"handle"`
}

// CreateMatchResponse describes a freshly created match.
type CreateMatchResponse struct {
	MatchID  string `json:"matchId"`
	Seed     string `json:"seed"`
	Rows     int    `json:"rows"`
	Cols     int    `json:"cols"`
	K        int    `json:"k"`
	ImageURL string `json:"imageUrl"`
	JoinURL  string `json:"joinUrl"`
}

// JoinRequest is a request to take the second seat of a match.
type JoinRequest struct {
	UserID string `json:"userId"`
	Handle string `json:"handle"`
}

// JoinResponse is the view subset returned to a joining player.
type JoinResponse struct {
	ID     string  `json:"id"`
	Status Status  `json:"status"`
	P1     *Player `json:"p1,omitempty"`
	P2     *Player `json:"p2,omitempty"`
}

// AddPlayerRequest is the privileged join variant: p1 mints the second seat
// directly, e.g. for a pass-the-link local opponent.
type AddPlayerRequest struct {
	P1UserID      string `json:"p1UserId"`
	Player2Handle string `json:"player2Handle"`
}

// AddPlayerResponse carries the minted identity of the second player.
type AddPlayerResponse struct {
	P2UserID string `json:"p2UserId"`
	P2Handle string `json:"p2Handle"`
}

// ReadyRequest marks the caller's seat as ready.
type ReadyRequest struct {
	UserID string `json:"userId"`
}

// ReadyResponse reports the match start time once both seats are ready.
type ReadyResponse struct {
	StartedAt int64 `json:"startedAt,omitempty"`
}

// ProgressUpdate applies a partial update to one seat's progress. Fields
// left nil are not touched. SyncOnly marks an unauthenticated board-sync
// update (viewer tabs, event-stream ingestion): it may only carry board
// state and is addressed by slot, never by user identity.
type ProgressUpdate struct {
	UserID        string `json:"userId,omitempty"`
	PlayerNumber  int    `json:"playerNumber,omitempty"`
	SyncOnly      bool   `json:"-"`
	Percent       *int   `json:"percentCorrect,omitempty"`
	Moves         *int   `json:"moves,omitempty"`
	LastCorrectAt *int64 `json:"lastCorrectAt,omitempty"`
	Board         []int  `json:"board,omitempty"`
}

// FinishRequest submits a player's final (or latest) board for win
// evaluation and timeout adjudication.
type FinishRequest struct {
	UserID        string `json:"userId"`
	Board         []int  `json:"board"`
	Moves         int    `json:"moves"`
	Percent       int    `json:"percentCorrect"`
	LastCorrectAt *int64 `json:"lastCorrectAt,omitempty"`
}

// FinishResult reports the outcome of a finish call.
type FinishResult struct {
	WinnerID    string `json:"winnerId,omitempty"`
	P1Time      *int64 `json:"p1Time,omitempty"`
	P2Time      *int64 `json:"p2Time,omitempty"`
	Adjudicated bool   `json:"adjudicated"`
	Solved      bool   `json:"solved"`
	Timeout     bool   `json:"timeout"`
}
