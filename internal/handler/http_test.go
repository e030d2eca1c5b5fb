package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tile-duel/internal/config"
	"github.com/tile-duel/internal/engine"
	"github.com/tile-duel/internal/memstore"
	"github.com/tile-duel/internal/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	cfg.Server.PublicURL = "http://duel.test"

	store := memstore.New()
	limiter := engine.NewRateLimiter(cfg.Game.RateLimitInterval)
	eng := engine.New(store, limiter, &cfg.Game, logger)
	hub := websocket.NewHub(logger)

	h := NewHandler(eng, hub, &cfg.Server, logger)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

// doJSON posts body to path and decodes the APIResponse data into out.
func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) (int, APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var apiResp APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiResp))

	if out != nil && apiResp.Data != nil {
		data, err := json.Marshal(apiResp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out))
	}
	return resp.StatusCode, apiResp
}

func TestSignupEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var identity struct {
		UserID string `json:"userId"`
		Handle string `json:"handle"`
	}
	status, apiResp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/signup", map[string]string{"handle": "Alice"}, &identity)
	assert.Equal(t, http.StatusCreated, status)
	assert.True(t, apiResp.Success)
	assert.NotEmpty(t, identity.UserID)
	assert.Equal(t, "Alice", identity.Handle)

	status, apiResp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/signup", map[string]string{"handle": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, apiResp.Success)
}

func TestCreateAndGetMatch(t *testing.T) {
	srv := newTestServer(t)

	var created struct {
		MatchID string `json:"matchId"`
		Seed    string `json:"seed"`
		JoinURL string `json:"joinUrl"`
	}
	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches", map[string]string{
		"userId": "u1",
		"handle": "Alice",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, created.Seed)
	assert.Equal(t, "http://duel.test/match/"+created.MatchID, created.JoinURL)

	var view struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		DurationMs int64  `json:"matchDurationMs"`
		MemorizeMs int64  `json:"memorizeMs"`
	}
	status, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/matches/"+created.MatchID, nil, &view)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.MatchID, view.ID)
	assert.Equal(t, "waiting", view.Status)
	assert.Equal(t, int64(60_000), view.DurationMs)
	assert.Equal(t, int64(20_000), view.MemorizeMs)

	status, apiResp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/matches/match-missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, apiResp.Success)
}

func createTestMatch(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	var created struct {
		MatchID string `json:"matchId"`
	}
	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches", map[string]string{
		"userId": "u1",
		"handle": "Alice",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	return created.MatchID
}

func TestJoinEndpoint(t *testing.T) {
	srv := newTestServer(t)
	matchID := createTestMatch(t, srv)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/join", map[string]string{
		"userId": "u2",
		"handle": "Bob",
	}, nil)
	assert.Equal(t, http.StatusOK, status)

	// A third identity conflicts with the occupied seat.
	status, apiResp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/join", map[string]string{
		"userId": "u3",
		"handle": "Carol",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, apiResp.Success)
}

func TestAddSecondPlayerEndpoint(t *testing.T) {
	srv := newTestServer(t)
	matchID := createTestMatch(t, srv)

	var added struct {
		P2UserID string `json:"p2UserId"`
	}
	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/players", map[string]string{
		"p1UserId":      "u1",
		"player2Handle": "Bob",
	}, &added)
	assert.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, added.P2UserID)

	// Only p1 may mint the second seat.
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/players", map[string]string{
		"p1UserId":      "u9",
		"player2Handle": "Carol",
	}, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestReadyAndProgressFlow(t *testing.T) {
	srv := newTestServer(t)
	matchID := createTestMatch(t, srv)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/join", map[string]string{
		"userId": "u2",
		"handle": "Bob",
	}, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/ready", map[string]string{"userId": "u1"}, nil)
	assert.Equal(t, http.StatusOK, status)

	var ready struct {
		StartedAt int64 `json:"startedAt"`
	}
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/ready", map[string]string{"userId": "u2"}, &ready)
	assert.Equal(t, http.StatusOK, status)
	assert.NotZero(t, ready.StartedAt)

	// Non-member ready is forbidden.
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/ready", map[string]string{"userId": "u9"}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Authenticated progress update.
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/progress", map[string]interface{}{
		"userId":         "u1",
		"percentCorrect": 40,
		"moves":          12,
	}, nil)
	assert.Equal(t, http.StatusOK, status)

	// Immediate repeat trips the per-player rate limit.
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/progress", map[string]interface{}{
		"userId":         "u1",
		"percentCorrect": 44,
	}, nil)
	assert.Equal(t, http.StatusTooManyRequests, status)

	// A request without a user id is a sync-only board update.
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/progress", map[string]interface{}{
		"playerNumber": 2,
		"board":        []int{1, 0, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24},
	}, nil)
	assert.Equal(t, http.StatusOK, status)

	// Sync-only updates may not carry score fields.
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/progress", map[string]interface{}{
		"playerNumber":   1,
		"percentCorrect": 90,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFinishEndpoint(t *testing.T) {
	srv := newTestServer(t)
	matchID := createTestMatch(t, srv)

	solved := make([]int, 25)
	for i := range solved {
		solved[i] = i
	}

	// Finishing a match that never started conflicts with its state.
	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+matchID+"/finish", map[string]interface{}{
		"userId":         "u1",
		"board":          solved,
		"percentCorrect": 100,
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		status, apiResp := doJSON(t, http.MethodGet, srv.URL+path, nil, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, apiResp.Success)
	}

	var stats struct {
		TotalConnections int `json:"total_connections"`
	}
	status, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/ws/stats", nil, &stats)
	assert.Equal(t, http.StatusOK, status)
	assert.Zero(t, stats.TotalConnections)
}
