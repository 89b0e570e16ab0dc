package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
)

// QuotaRepo implements quota.Repository. One row per UTC day.
type QuotaRepo struct{ db *sql.DB }

// NewQuotaRepo creates a Postgres-backed quota repository.
func NewQuotaRepo(db *sql.DB) *QuotaRepo { return &QuotaRepo{db: db} }

func (r *QuotaRepo) GetOrCreate(ctx context.Context, day time.Time, limit int) (*domain.EmailQuota, error) {
	q := &domain.EmailQuota{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO email_quotas (date, emails_sent, quota_limit)
		VALUES ($1, 0, $2)
		ON CONFLICT (date) DO UPDATE SET date = EXCLUDED.date
		RETURNING date, emails_sent, quota_limit
	`, day, limit).Scan(&q.Date, &q.EmailsSent, &q.QuotaLimit)
	if err != nil {
		return nil, fmt.Errorf("get quota: %w", err)
	}
	return q, nil
}

func (r *QuotaRepo) Increment(ctx context.Context, day time.Time, limit, n int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_quotas (date, emails_sent, quota_limit)
		VALUES ($1, $3, $2)
		ON CONFLICT (date) DO UPDATE SET emails_sent = email_quotas.emails_sent + EXCLUDED.emails_sent
	`, day, limit, n)
	if err != nil {
		return fmt.Errorf("increment quota: %w", err)
	}
	return nil
}
