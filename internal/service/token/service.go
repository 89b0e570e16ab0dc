package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/pkg/idem"
)

// randomBytes is 256 bits of entropy per token.
const randomBytes = 32

// Key identifies the (user, event) pair a token is issued for.
type Key struct {
	UserID  string
	EventID string
}

// Service implements token issue, validation and consumption.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a token service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// activeTokens adapts the repository to idem.Store at a fixed instant.
type activeTokens struct {
	repo Repository
	now  time.Time
}

func (a activeTokens) FindActive(ctx context.Context, k Key) (*domain.RsvpToken, bool, error) {
	return a.repo.FindUnused(ctx, k.UserID, k.EventID, a.now)
}

func (a activeTokens) Insert(ctx context.Context, t *domain.RsvpToken) error {
	return a.repo.Insert(ctx, t)
}

// Generate returns the pair's unused, unexpired token if one exists,
// otherwise mints and stores a new one expiring at expiresAt.
func (s *Service) Generate(ctx context.Context, userID, eventID string, expiresAt time.Time) (*domain.RsvpToken, error) {
	now := s.now()
	store := activeTokens{repo: s.repo, now: now}

	t, _, err := idem.FindOrCreate[Key, *domain.RsvpToken](ctx, store, Key{UserID: userID, EventID: eventID}, func() (*domain.RsvpToken, error) {
		value, err := newTokenString(now)
		if err != nil {
			return nil, err
		}
		return &domain.RsvpToken{
			Token:     value,
			UserID:    userID,
			EventID:   eventID,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return t, nil
}

// Validate returns the token when it exists, is unused and is not expired.
// A used token fails with ErrTokenAlreadyUsed whatever its expiry.
func (s *Service) Validate(ctx context.Context, value string) (*domain.RsvpToken, error) {
	if value == "" {
		return nil, ErrTokenNotFound
	}
	t, err := s.repo.Get(ctx, value)
	if err != nil {
		return nil, err
	}
	if t.IsUsed() {
		return t, ErrTokenAlreadyUsed
	}
	if t.IsExpired(s.now()) {
		return t, ErrTokenExpired
	}
	return t, nil
}

// MarkUsed consumes the token. Call it only after the RSVP itself has been
// stored. Returns false for an unknown token; a second call on a used token
// returns true and changes nothing.
func (s *Service) MarkUsed(ctx context.Context, value string, response domain.RSVPResponse, plusOne bool) (bool, error) {
	if response == domain.RSVPNo {
		plusOne = false
	}
	return s.repo.MarkUsed(ctx, value, response, plusOne, s.now())
}

// newTokenString returns base64url(32 random bytes) followed by the
// Unix-millisecond timestamp.
func newTokenString(now time.Time) (string, error) {
	b := make([]byte, randomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b) + strconv.FormatInt(now.UnixMilli(), 10), nil
}
