package handler

import (
	"net/http"

	"github.com/turfwar-server/internal/domain"
	"github.com/turfwar-server/internal/upi"
	"github.com/turfwar-server/internal/web"
)

// SendReminder emails a player a payment request
func (h *Handler) SendReminder(w http.ResponseWriter, r *http.Request) {
	var req domain.ReminderRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}

	if _, err := h.finance.SendReminder(r.Context(), caller(r), req, h.baseURL(r)); err != nil {
		h.writeServiceError(w, r, err, nil, "Failed to send reminder")
		return
	}
	h.writeMessage(w, http.StatusOK, "Reminder sent successfully")
}

// UpdateUPI sets the caller's UPI id
func (h *Handler) UpdateUPI(w http.ResponseWriter, r *http.Request) {
	var req domain.UPIRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, r, err, nil, serverErrorMessage)
		return
	}

	user, err := h.finance.UpdateUPI(r.Context(), caller(r), req)
	if err != nil {
		h.writeServiceError(w, r, err, nil, "Error updating UPI")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "UPI ID Updated",
		"user":    user,
	})
}

// PayRedirect serves the landing page that opens a UPI app
func (h *Handler) PayRedirect(w http.ResponseWriter, r *http.Request) {
	links := upi.BuildDeepLinks(upi.ParamsFromQuery(r.URL.Query()))
	if err := h.renderer.WritePayRedirect(w, http.StatusOK, web.PayRedirectPage{DeepLinks: links}); err != nil {
		h.logger.Error("failed to render pay redirect", "error", err)
	}
}
