package domain

import "time"

// RSVPResponse is a member's answer to an event invitation.
type RSVPResponse string

const (
	RSVPYes RSVPResponse = "yes"
	RSVPNo  RSVPResponse = "no"
)

// ParseRSVPResponse accepts only "yes" and "no".
func ParseRSVPResponse(s string) (RSVPResponse, bool) {
	switch RSVPResponse(s) {
	case RSVPYes, RSVPNo:
		return RSVPResponse(s), true
	}
	return "", false
}

// RsvpToken is a single-use capability for one (user, event) RSVP action.
type RsvpToken struct {
	Token           string        `json:"token" db:"token"`
	UserID          string        `json:"user_id" db:"user_id"`
	EventID         string        `json:"event_id" db:"event_id"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	ExpiresAt       time.Time     `json:"expires_at" db:"expires_at"`
	UsedAt          *time.Time    `json:"used_at,omitempty" db:"used_at"`
	UsedForResponse *RSVPResponse `json:"used_for_response,omitempty" db:"used_for_response"`
	UsedWithPlusOne bool          `json:"used_with_plus_one" db:"used_with_plus_one"`
}

// IsUsed reports whether the token has been consumed.
func (t *RsvpToken) IsUsed() bool { return t.UsedAt != nil }

// IsExpired reports whether now is past the token's expiry.
func (t *RsvpToken) IsExpired(now time.Time) bool { return now.After(t.ExpiresAt) }

// Event is the slice of the events table the mailer reads.
type Event struct {
	ID           string     `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	Location     string     `json:"location,omitempty" db:"location"`
	StartsAt     time.Time  `json:"starts_at" db:"starts_at"`
	RSVPDeadline *time.Time `json:"rsvp_deadline,omitempty" db:"rsvp_deadline"`
}

// TokenExpiry is when RSVP links for the event stop working: the RSVP
// deadline if set, else the event start.
func (e *Event) TokenExpiry() time.Time {
	if e.RSVPDeadline != nil {
		return *e.RSVPDeadline
	}
	return e.StartsAt
}

// Member is the slice of the users table the mailer reads.
type Member struct {
	ID    string `json:"id" db:"id"`
	Email string `json:"email" db:"email"`
	Name  string `json:"name" db:"name"`
}
