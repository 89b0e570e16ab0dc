package token

import (
	"context"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
)

// Repository defines the data access contract for RSVP tokens.
type Repository interface {
	// FindUnused returns the newest token for the pair that is unused and
	// expires after now. found is false when there is none.
	FindUnused(ctx context.Context, userID, eventID string, now time.Time) (*domain.RsvpToken, bool, error)

	// Insert persists a newly minted token.
	Insert(ctx context.Context, t *domain.RsvpToken) error

	// Get returns a token by its string. Returns ErrTokenNotFound if unknown.
	Get(ctx context.Context, token string) (*domain.RsvpToken, error)

	// MarkUsed stamps used_at, response and plus-one on a token that has not
	// been used yet. found reports whether the token exists at all; a token
	// that was already used is left unchanged.
	MarkUsed(ctx context.Context, token string, response domain.RSVPResponse, plusOne bool, at time.Time) (found bool, err error)
}
