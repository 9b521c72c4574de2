package domain

// RoleOrganizer is the only role allowed to create matches.
const RoleOrganizer = "organizer"

// User is owned by the auth service; this backend reads it and only ever
// writes the UPI id.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	UPIID string `json:"upiId,omitempty"`
}

// Identity is the caller resolved from the request token.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// IsOrganizer reports whether the caller may create matches.
func (i Identity) IsOrganizer() bool {
	return i.Role == RoleOrganizer
}

// ReminderRequest is the body of POST /finance/remind.
type ReminderRequest struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId"`
}

// UPIRequest is the body of PUT /finance/upi.
type UPIRequest struct {
	UPIID string `json:"upiId"`
}
