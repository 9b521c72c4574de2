package domain

import "errors"

// Domain errors
var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNotOrganizer    = errors.New("access denied")
	ErrNotMatchOwner   = errors.New("only the match organizer can do this")
	ErrAlreadyJoined   = errors.New("already joined")
	ErrMatchCompleted  = errors.New("match already completed")
	ErrGuestNoEmail    = errors.New("guest player has no email")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrVersionConflict = errors.New("match was modified concurrently")
	ErrReminderNotSent = errors.New("failed to send reminder")
	ErrInternalError   = errors.New("internal server error")
)

// Kind groups domain errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindBadRequest
)

// KindOf classifies err. Anything unrecognised is internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case IsNotFoundError(err):
		return KindNotFound
	case errors.Is(err, ErrNotOrganizer), errors.Is(err, ErrNotMatchOwner):
		return KindForbidden
	case errors.Is(err, ErrAlreadyJoined), errors.Is(err, ErrMatchCompleted):
		return KindConflict
	case errors.Is(err, ErrGuestNoEmail), errors.Is(err, ErrInvalidRequest):
		return KindBadRequest
	default:
		return KindInternal
	}
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrMatchNotFound) || errors.Is(err, ErrPlayerNotFound) || errors.Is(err, ErrUserNotFound)
}
