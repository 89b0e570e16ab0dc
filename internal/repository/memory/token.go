package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/service/token"
)

// TokenRepo implements token.Repository.
type TokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.RsvpToken
	seq    []string
}

// NewTokenRepo returns an empty token store.
func NewTokenRepo() *TokenRepo {
	return &TokenRepo{tokens: make(map[string]*domain.RsvpToken)}
}

func (r *TokenRepo) FindUnused(_ context.Context, userID, eventID string, now time.Time) (*domain.RsvpToken, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.seq) - 1; i >= 0; i-- {
		t := r.tokens[r.seq[i]]
		if t.UserID == userID && t.EventID == eventID && t.UsedAt == nil && t.ExpiresAt.After(now) {
			cp := *t
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (r *TokenRepo) Insert(_ context.Context, t *domain.RsvpToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tokens[t.Token] = &cp
	r.seq = append(r.seq, t.Token)
	return nil
}

func (r *TokenRepo) Get(_ context.Context, value string) (*domain.RsvpToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[value]
	if !ok {
		return nil, token.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *TokenRepo) MarkUsed(_ context.Context, value string, response domain.RSVPResponse, plusOne bool, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[value]
	if !ok {
		return false, nil
	}
	if t.UsedAt == nil {
		t.UsedAt = &at
		t.UsedForResponse = &response
		t.UsedWithPlusOne = plusOne
	}
	return true, nil
}

// Tokens returns a snapshot of every token in insertion order.
func (r *TokenRepo) Tokens() []domain.RsvpToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RsvpToken, 0, len(r.seq))
	for _, v := range r.seq {
		out = append(out, *r.tokens[v])
	}
	return out
}
