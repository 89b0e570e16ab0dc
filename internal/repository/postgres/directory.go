package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/member-mailer/internal/domain"
)

// DirectoryRepo reads events and members from the membership tables and
// upserts RSVP answers.
type DirectoryRepo struct{ db *sql.DB }

// NewDirectoryRepo creates a Postgres-backed membership directory.
func NewDirectoryRepo(db *sql.DB) *DirectoryRepo { return &DirectoryRepo{db: db} }

const memberColumns = `u.id, u.email, TRIM(COALESCE(u.first_name,'') || ' ' || COALESCE(u.last_name,''))`

func (r *DirectoryRepo) GetEvent(ctx context.Context, id string) (*domain.Event, bool, error) {
	ev := &domain.Event{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, COALESCE(location,''), starts_at, rsvp_deadline
		FROM events WHERE id = $1
	`, id).Scan(&ev.ID, &ev.Title, &ev.Location, &ev.StartsAt, &ev.RSVPDeadline)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get event: %w", err)
	}
	return ev, true, nil
}

func (r *DirectoryRepo) GetMember(ctx context.Context, id string) (*domain.Member, bool, error) {
	m := &domain.Member{}
	err := r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM users u WHERE u.id = $1`, id).
		Scan(&m.ID, &m.Email, &m.Name)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get member: %w", err)
	}
	return m, true, nil
}

// NonResponders returns active members with no RSVP row for the event.
func (r *DirectoryRepo) NonResponders(ctx context.Context, eventID string) ([]domain.Member, error) {
	return r.members(ctx, `
		SELECT `+memberColumns+`
		FROM users u
		WHERE u.status = 'active'
		  AND NOT EXISTS (SELECT 1 FROM event_rsvps r WHERE r.event_id = $1 AND r.user_id = u.id)
		ORDER BY u.id
	`, eventID)
}

// Attendees returns members who answered yes.
func (r *DirectoryRepo) Attendees(ctx context.Context, eventID string) ([]domain.Member, error) {
	return r.members(ctx, `
		SELECT `+memberColumns+`
		FROM users u
		JOIN event_rsvps r ON r.user_id = u.id
		WHERE r.event_id = $1 AND r.response = 'yes'
		ORDER BY u.id
	`, eventID)
}

func (r *DirectoryRepo) members(ctx context.Context, q string, args ...any) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.Email, &m.Name); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *DirectoryRepo) ApplyRSVP(ctx context.Context, userID, eventID string, response domain.RSVPResponse, plusOne bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_rsvps (event_id, user_id, response, plus_one, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET response = EXCLUDED.response, plus_one = EXCLUDED.plus_one, updated_at = NOW()
	`, eventID, userID, response, plusOne)
	if err != nil {
		return fmt.Errorf("apply rsvp: %w", err)
	}
	return nil
}
