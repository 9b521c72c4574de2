package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/turfwar-server/internal/auth"
	"github.com/turfwar-server/internal/config"
	"github.com/turfwar-server/internal/domain"
	"github.com/turfwar-server/internal/service"
	"github.com/turfwar-server/internal/web"
	"github.com/turfwar-server/internal/websocket"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// Handler provides HTTP handlers for the match and finance API
type Handler struct {
	matches  *service.MatchService
	finance  *service.FinanceService
	hub      *websocket.Hub
	renderer *web.Renderer
	verifier *auth.Verifier
	config   *config.ServerConfig
	checks   map[string]ReadinessCheck
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	matches *service.MatchService,
	finance *service.FinanceService,
	hub *websocket.Hub,
	renderer *web.Renderer,
	verifier *auth.Verifier,
	cfg *config.ServerConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		matches:  matches,
		finance:  finance,
		hub:      hub,
		renderer: renderer,
		verifier: verifier,
		config:   cfg,
		checks:   make(map[string]ReadinessCheck),
		logger:   logger,
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// APIResponse is the envelope used by the operational endpoints
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

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Route("/matches", func(r chi.Router) {
			r.Get("/", h.ListMatches)
			r.Get("/{matchID}", h.GetMatch)
			r.Get("/{matchID}/activity", h.GetActivity)

			r.Group(func(r chi.Router) {
				r.Use(h.verifier.Middleware)
				r.Post("/", h.CreateMatch)
				r.Put("/{matchID}", h.UpdateMatch)
				r.Post("/{matchID}/join", h.JoinMatch)
				r.Post("/{matchID}/comment", h.AddComment)
				r.Post("/{matchID}/guest", h.AddGuest)
				r.Put("/{matchID}/score", h.FinalizeResult)
				r.Put("/{matchID}/payment", h.SetPaymentStatus)
			})
		})

		r.Route("/finance", func(r chi.Router) {
			r.Get("/pay-redirect", h.PayRedirect)
			r.With(h.verifier.Middleware).Post("/remind", h.SendReminder)
			r.With(h.verifier.Middleware).Put("/upi", h.UpdateUPI)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return cors.New(cors.Options{
		AllowedOrigins: h.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token", "X-Request-ID"},
	}).Handler(r)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeMessage writes a {"message": ...} response
func (h *Handler) writeMessage(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"message": message})
}

// errorResponse is how a route reports one domain error
type errorResponse struct {
	status  int
	message string
}

type errorMap map[error]errorResponse

var defaultErrors = errorMap{
	domain.ErrMatchNotFound:  {http.StatusNotFound, "Match not found"},
	domain.ErrPlayerNotFound: {http.StatusNotFound, "Player not found"},
	domain.ErrUserNotFound:   {http.StatusNotFound, "User not found"},
	domain.ErrNotOrganizer:   {http.StatusForbidden, "Access Denied"},
	domain.ErrNotMatchOwner:  {http.StatusForbidden, "Unauthorized"},
	domain.ErrAlreadyJoined:  {http.StatusBadRequest, "Already joined"},
	domain.ErrMatchCompleted: {http.StatusBadRequest, "Match already completed"},
	domain.ErrGuestNoEmail:   {http.StatusBadRequest, "Guest player has no email"},
	domain.ErrInvalidRequest: {http.StatusBadRequest, "Invalid request"},
}

const serverErrorMessage = "Server Error"

// writeServiceError maps err to a response, checking the route's overrides
// before the defaults. Anything unrecognised is logged and reported with
// fallback as a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, overrides errorMap, fallback string) {
	for _, table := range []errorMap{overrides, defaultErrors} {
		for target, resp := range table {
			if errors.Is(err, target) {
				h.writeMessage(w, resp.status, resp.message)
				return
			}
		}
	}

	if kind := domain.KindOf(err); kind != domain.KindInternal {
		h.writeMessage(w, statusForKind(kind), err.Error())
		return
	}

	h.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	)
	h.writeMessage(w, http.StatusInternalServerError, fallback)
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindConflict, domain.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.ErrInvalidRequest
	}
	return nil
}

// caller returns the identity stored by the auth middleware
func caller(r *http.Request) domain.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

// baseURL is the absolute origin used in links sent by email
func (h *Handler) baseURL(r *http.Request) string {
	if h.config.PublicBaseURL != "" {
		return strings.TrimRight(h.config.PublicBaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"total_connections": h.hub.GetTotalConnections(),
			"watched_matches":   h.hub.GetWatchedMatches(),
		},
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]string{"status": "healthy"},
	})
}

// ReadyCheck probes every registered dependency
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    map[string]interface{}{"status": "not ready", "checks": failed},
			Error:   "dependency unavailable",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]string{"status": "ready"},
	})
}
