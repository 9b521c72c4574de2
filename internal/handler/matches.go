package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/turfwar-server/internal/domain"
)

// ListMatches returns every match, earliest first
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matches.ListMatches(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}
	h.writeJSON(w, http.StatusOK, matches)
}

// GetMatch returns a match by ID
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	match, err := h.matches.GetMatch(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}
	h.writeJSON(w, http.StatusOK, match)
}

// GetActivity returns a match's recent events
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.matches.Activity(r.Context(), chi.URLParam(r, "matchID"), limit)
	if err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

// CreateMatch handles match creation by an organizer
func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMatchRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}

	match, err := h.matches.CreateMatch(r.Context(), caller(r), req)
	if err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}
	h.writeJSON(w, http.StatusOK, match)
}

// JoinMatch adds the caller to a match
func (h *Handler) JoinMatch(w http.ResponseWriter, r *http.Request) {
	var req domain.JoinRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}

	match, err := h.matches.JoinMatch(r.Context(), caller(r), chi.URLParam(r, "matchID"), req)
	if err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}
	h.writeJSON(w, http.StatusOK, match)
}

// AddComment appends a chat comment
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req domain.CommentRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}

	match, err := h.matches.AddComment(r.Context(), caller(r), chi.URLParam(r, "matchID"), req)
	if err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}
	h.writeJSON(w, http.StatusOK, match)
}

// UpdateMatch edits match details
func (h *Handler) UpdateMatch(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateMatchRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}

	match, err := h.matches.UpdateDetails(r.Context(), caller(r), chi.URLParam(r, "matchID"), req)
	if err != nil {
		h.writeServiceError(w, r, err, errorMap{
			domain.ErrNotMatchOwner: {http.StatusUnauthorized, "Not authorized to edit this match"},
		}, serverErrorMessage)
		return
	}
	h.writeJSON(w, http.StatusOK, match)
}

// FinalizeResult declares the winner
func (h *Handler) FinalizeResult(w http.ResponseWriter, r *http.Request) {
	var req domain.ScoreRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}

	match, err := h.matches.FinalizeResult(r.Context(), caller(r), chi.URLParam(r, "matchID"), req)
	if err != nil {
		h.writeServiceError(w, r, err, errorMap{
			domain.ErrNotMatchOwner: {http.StatusForbidden, "Only organizer can finalize match"},
		}, serverErrorMessage)
		return
	}
	h.writeJSON(w, http.StatusOK, match)
}

// SetPaymentStatus marks a player as paid or pending
func (h *Handler) SetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}

	match, err := h.matches.SetPaymentStatus(r.Context(), caller(r), chi.URLParam(r, "matchID"), req)
	if err != nil {
		h.writeServiceError(w, r, err, errorMap{
			domain.ErrNotMatchOwner: {http.StatusForbidden, "Only organizer can manage money"},
		}, serverErrorMessage)
		return
	}
	h.writeJSON(w, http.StatusOK, match)
}

// AddGuest adds a player without an account
func (h *Handler) AddGuest(w http.ResponseWriter, r *http.Request) {
	var req domain.GuestRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}

	match, err := h.matches.AddGuest(r.Context(), caller(r), chi.URLParam(r, "matchID"), req)
	if err != nil {
		h.writeServiceError(w, r, err, errorMap{
			domain.ErrNotMatchOwner: {http.StatusForbidden, "Only organizer can add guests"},
		}, serverErrorMessage)
		return
	}
	h.writeJSON(w, http.StatusOK, match)
}
