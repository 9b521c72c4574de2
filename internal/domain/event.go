package domain

import "time"

// EventType names a match activity.
type EventType string

const (
	EventMatchCreated    EventType = "match.created"
	EventPlayerJoined    EventType = "player.joined"
	EventGuestAdded      EventType = "guest.added"
	EventCommentAdded    EventType = "comment.added"
	EventMatchUpdated    EventType = "match.updated"
	EventResultFinalized EventType = "result.finalized"
	EventPaymentUpdated  EventType = "payment.updated"
	EventReminderSent    EventType = "reminder.sent"
)

// MatchEvent records something that happened to a match. It is stored for
// auditing and fanned out to live subscribers.
type MatchEvent struct {
	MatchID   string                 `json:"match_id"`
	Type      EventType              `json:"type"`
	ActorID   string                 `json:"actor_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
