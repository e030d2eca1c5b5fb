package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tile-duel/internal/config"
	"github.com/tile-duel/internal/domain"
	"github.com/tile-duel/internal/engine"
	"github.com/tile-duel/internal/websocket"
)

// Handler provides HTTP handlers for the match API
type Handler struct {
	engine *engine.Engine
	hub    *websocket.Hub
	server *config.ServerConfig
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(eng *engine.Engine, hub *websocket.Hub, server *config.ServerConfig, logger *slog.Logger) *Handler {
	return &Handler{
		engine: eng,
		hub:    hub,
		server: server,
		logger: logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/signup", h.Signup)

		// Match operations
		r.Route("/matches", func(r chi.Router) {
			r.Post("/", h.CreateMatch)

			r.Route("/{matchID}", func(r chi.Router) {
				r.Get("/", h.GetMatch)
				r.Post("/join", h.Join)
				r.Post("/players", h.AddSecondPlayer)
				r.Post("/ready", h.SetReady)
				r.Post("/progress", h.RecordProgress)
				r.Post("/finish", h.Finish)
			})
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeEngineError maps a domain error to its HTTP status. Unknown errors
// are logged and masked as an internal error.
func (h *Handler) writeEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case domain.IsForbiddenError(err):
		h.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err)
	case domain.IsConflictError(err):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err)
	default:
		h.logger.Error("failed to "+op, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// Signup mints a fresh user identity
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	identity, err := h.engine.Signup(req.Handle)
	if err != nil {
		h.writeEngineError(w, "sign up", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    identity,
	})
}

// CreateMatch handles match creation, seating the caller as p1
func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	resp, err := h.engine.CreateMatch(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, "create match", err)
		return
	}

	resp.JoinURL = fmt.Sprintf("%s/match/%s", h.server.PublicURL, resp.MatchID)

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    resp,
	})
}

// GetMatch returns the public view of a match
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	if matchID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	view, err := h.engine.GetMatch(r.Context(), matchID)
	if err != nil {
		h.writeEngineError(w, "get match", err)
		return
	}

	h.writeSuccess(w, view)
}

// Join seats the caller as the second player
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	if matchID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req domain.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	resp, err := h.engine.Join(r.Context(), matchID, req)
	if err != nil {
		h.writeEngineError(w, "join match", err)
		return
	}

	h.writeSuccess(w, resp)
}

// AddSecondPlayer lets p1 mint an identity for the second seat
func (h *Handler) AddSecondPlayer(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	if matchID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req domain.AddPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	resp, err := h.engine.AddSecondPlayer(r.Context(), matchID, req)
	if err != nil {
		h.writeEngineError(w, "add second player", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    resp,
	})
}

// SetReady marks the caller's seat ready
func (h *Handler) SetReady(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	if matchID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req domain.ReadyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	resp, err := h.engine.SetReady(r.Context(), matchID, req.UserID)
	if err != nil {
		h.writeEngineError(w, "set ready", err)
		return
	}

	h.writeSuccess(w, resp)
}

// RecordProgress applies a partial progress update to one seat. Requests
// without a user id are treated as sync-only board updates addressed by
// slot number.
func (h *Handler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	if matchID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var upd domain.ProgressUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	upd.SyncOnly = upd.UserID == ""

	if err := h.engine.RecordProgress(r.Context(), matchID, upd); err != nil {
		h.writeEngineError(w, "record progress", err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "accepted"})
}

// Finish submits a player's board for win evaluation
func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	if matchID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req domain.FinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.engine.Finish(r.Context(), matchID, req)
	if err != nil {
		h.writeEngineError(w, "finish match", err)
		return
	}

	h.writeSuccess(w, result)
}
