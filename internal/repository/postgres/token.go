package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/service/token"
)

// TokenRepo implements token.Repository.
type TokenRepo struct{ db *sql.DB }

// NewTokenRepo creates a Postgres-backed RSVP token repository.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

const tokenColumns = `token, user_id, event_id, created_at, expires_at, used_at, used_for_response, used_with_plus_one`

func scanToken(s scanner) (*domain.RsvpToken, error) {
	t := &domain.RsvpToken{}
	err := s.Scan(&t.Token, &t.UserID, &t.EventID, &t.CreatedAt, &t.ExpiresAt,
		&t.UsedAt, &t.UsedForResponse, &t.UsedWithPlusOne)
	return t, err
}

func (r *TokenRepo) FindUnused(ctx context.Context, userID, eventID string, now time.Time) (*domain.RsvpToken, bool, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx, `
		SELECT `+tokenColumns+`
		FROM rsvp_tokens
		WHERE user_id = $1 AND event_id = $2 AND used_at IS NULL AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, eventID, now))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find unused token: %w", err)
	}
	return t, true, nil
}

func (r *TokenRepo) Insert(ctx context.Context, t *domain.RsvpToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rsvp_tokens (token, user_id, event_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.Token, t.UserID, t.EventID, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (r *TokenRepo) Get(ctx context.Context, value string) (*domain.RsvpToken, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM rsvp_tokens WHERE token = $1`, value))
	if err == sql.ErrNoRows {
		return nil, token.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// MarkUsed stamps the token once. A second call leaves the first answer in
// place and still reports found.
func (r *TokenRepo) MarkUsed(ctx context.Context, value string, response domain.RSVPResponse, plusOne bool, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE rsvp_tokens SET used_at = $2, used_for_response = $3, used_with_plus_one = $4
		WHERE token = $1 AND used_at IS NULL
	`, value, at, response, plusOne)
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}
	var found bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rsvp_tokens WHERE token = $1)`, value).Scan(&found); err != nil {
		return false, fmt.Errorf("check token: %w", err)
	}
	return found, nil
}
