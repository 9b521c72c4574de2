// Package notify delivers transactional email through the Brevo HTTP API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/turfwar-server/internal/config"
)

// Email is a single outbound message.
type Email struct {
	ToEmail string
	ToName  string
	Subject string
	HTML    string
}

// Dispatcher sends an email and reports whether it was accepted.
type Dispatcher interface {
	Send(ctx context.Context, email Email) error
}

// BrevoDispatcher sends email through Brevo's /v3/smtp/email endpoint.
type BrevoDispatcher struct {
	cfg    *config.EmailConfig
	client *http.Client
	logger *slog.Logger
}

// NewBrevoDispatcher creates a dispatcher using cfg.
func NewBrevoDispatcher(cfg *config.EmailConfig, logger *slog.Logger) *BrevoDispatcher {
	return &BrevoDispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type brevoContact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

// Send posts the email. Any non-2xx response is an error; nothing is retried.
func (d *BrevoDispatcher) Send(ctx context.Context, email Email) error {
	payload, err := json.Marshal(brevoRequest{
		Sender:      brevoContact{Name: d.cfg.SenderName, Email: d.cfg.SenderEmail},
		To:          []brevoContact{{Name: email.ToName, Email: email.ToEmail}},
		Subject:     email.Subject,
		HTMLContent: email.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshaling email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building email request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("api-key", d.cfg.APIKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email api returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	d.logger.Info("email dispatched", "to", email.ToEmail, "subject", email.Subject)
	return nil
}
