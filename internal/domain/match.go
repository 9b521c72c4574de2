package domain

import (
	"math"
	"time"
)

// PaymentStatus is the per-player payment state. Only Pending and Paid are
// used by clients, but the value is stored as sent.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
)

// DefaultPlayerRole is applied when a player joins without a role.
const DefaultPlayerRole = "All-Rounder"

// Match is the aggregate persisted as a single document. Players and
// comments are embedded and only ever written together with the match.
type Match struct {
	ID            string    `json:"_id"`
	Title         string    `json:"title"`
	TurfName      string    `json:"turfName"`
	Date          time.Time `json:"date"`
	CostPerHour   float64   `json:"costPerHour"`
	DurationHours float64   `json:"durationHours"`
	Players       []Player  `json:"players"`
	Comments      []Comment `json:"comments"`
	CreatedBy     string    `json:"createdBy"`
	Result        Result    `json:"result"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Player is a roster entry. Guests have no UserID and may carry an email.
type Player struct {
	ID            string        `json:"_id"`
	UserID        *string       `json:"userId"`
	Name          string        `json:"name"`
	Role          string        `json:"role"`
	Skill         float64       `json:"skill"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	IsGuest       bool          `json:"isGuest"`
	Email         string        `json:"email,omitempty"`
}

// Comment is an append-only chat entry on a match.
type Comment struct {
	ID        string    `json:"_id"`
	User      string    `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Result holds the final outcome. IsCompleted flips to true exactly once.
type Result struct {
	Winner      string     `json:"winner,omitempty"`
	Score       string     `json:"score,omitempty"`
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// IsOwnedBy reports whether userID organised the match.
func (m *Match) IsOwnedBy(userID string) bool {
	return m.CreatedBy == userID
}

// HasUser reports whether userID already appears on the roster.
func (m *Match) HasUser(userID string) bool {
	for _, p := range m.Players {
		if p.UserID != nil && *p.UserID == userID {
			return true
		}
	}
	return false
}

// FindPlayer returns a pointer into the roster so callers can mutate it in place.
func (m *Match) FindPlayer(playerID string) *Player {
	for i := range m.Players {
		if m.Players[i].ID == playerID {
			return &m.Players[i]
		}
	}
	return nil
}

// TotalCost is costPerHour x durationHours.
func (m *Match) TotalCost() float64 {
	return m.CostPerHour * m.DurationHours
}

// AmountPerHead splits the total cost across the current roster, rounding up
// to the next whole currency unit. It is derived on demand and never stored.
func (m *Match) AmountPerHead() int64 {
	if len(m.Players) == 0 {
		return 0
	}
	return int64(math.Ceil(m.TotalCost() / float64(len(m.Players))))
}

// CreateMatchRequest is the body of POST /matches.
type CreateMatchRequest struct {
	Title         string    `json:"title"`
	TurfName      string    `json:"turfName"`
	Date          MatchDate `json:"date"`
	CostPerHour   Number    `json:"costPerHour"`
	DurationHours Number    `json:"durationHours"`
}

// JoinRequest is the body of POST /matches/{id}/join.
type JoinRequest struct {
	Role  string  `json:"role"`
	Skill float64 `json:"skill"`
}

// GuestRequest is the body of POST /matches/{id}/guest.
type GuestRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CommentRequest is the body of POST /matches/{id}/comment.
type CommentRequest struct {
	Text string `json:"text"`
}

// UpdateMatchRequest is the body of PUT /matches/{id}. Falsy values ("",
// null, false, 0) mean "keep the current value", so a field cannot be
// cleared or set to 0.
type UpdateMatchRequest struct {
	Title         Text      `json:"title"`
	TurfName      Text      `json:"turfName"`
	Date          MatchDate `json:"date"`
	CostPerHour   Number    `json:"costPerHour"`
	DurationHours Number    `json:"durationHours"`
}

// Apply merges the non-zero fields of r into m.
func (r *UpdateMatchRequest) Apply(m *Match) {
	if r.Title != "" {
		m.Title = string(r.Title)
	}
	if r.TurfName != "" {
		m.TurfName = string(r.TurfName)
	}
	if !r.Date.IsZero() {
		m.Date = r.Date.Time
	}
	if r.CostPerHour != 0 {
		m.CostPerHour = float64(r.CostPerHour)
	}
	if r.DurationHours != 0 {
		m.DurationHours = float64(r.DurationHours)
	}
}

// ScoreRequest is the body of PUT /matches/{id}/score.
type ScoreRequest struct {
	Winner string `json:"winner"`
	Score  string `json:"score"`
}

// PaymentRequest is the body of PUT /matches/{id}/payment.
type PaymentRequest struct {
	PlayerID string        `json:"playerId"`
	Status   PaymentStatus `json:"status"`
}
