package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/service/queue"
)

// QueueRepo implements queue.Repository and queue.CampaignRepository
// against PostgreSQL.
type QueueRepo struct{ db *sql.DB }

// NewQueueRepo creates a Postgres-backed email queue repository.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

const queueColumns = `id, campaign_id, to_email, COALESCE(to_name,''), subject, html_body,
	COALESCE(text_body,''), status, priority, scheduled_for, next_retry_at,
	COALESCE(error_message,''), created_at, updated_at, sent_at, failed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(s scanner) (*domain.EmailQueueItem, error) {
	it := &domain.EmailQueueItem{}
	err := s.Scan(
		&it.ID, &it.CampaignID, &it.ToEmail, &it.ToName, &it.Subject, &it.HTMLBody,
		&it.TextBody, &it.Status, &it.Priority, &it.ScheduledFor, &it.NextRetryAt,
		&it.ErrorMessage, &it.CreatedAt, &it.UpdatedAt, &it.SentAt, &it.FailedAt,
	)
	return it, err
}

func (r *QueueRepo) Insert(ctx context.Context, it *domain.EmailQueueItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_queue
			(id, campaign_id, to_email, to_name, subject, html_body, text_body,
			 status, priority, scheduled_for, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, NULLIF($7,''), $8, $9, $10, $11, $11)
	`, it.ID, it.CampaignID, it.ToEmail, it.ToName, it.Subject, it.HTMLBody, it.TextBody,
		it.Status, it.Priority, it.ScheduledFor, it.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

func (r *QueueRepo) Get(ctx context.Context, id string) (*domain.EmailQueueItem, error) {
	it, err := scanQueueItem(r.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM email_queue WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return it, nil
}

func (r *QueueRepo) List(ctx context.Context, f queue.ListFilter) ([]domain.EmailQueueItem, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.CampaignID != "" {
		where += fmt.Sprintf(" AND campaign_id = $%d", idx)
		args = append(args, f.CampaignID)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_queue`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count queue items: %w", err)
	}

	q := `SELECT ` + queueColumns + ` FROM email_queue` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limitOrDefault(f.Limit), f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailQueueItem
	for rows.Next() {
		it, err := scanQueueItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan queue item: %w", err)
		}
		out = append(out, *it)
	}
	return out, total, rows.Err()
}

func (r *QueueRepo) Due(ctx context.Context, now time.Time, limit int) ([]domain.EmailQueueItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+queueColumns+`
		FROM email_queue
		WHERE status IN ('pending', 'scheduled')
		  AND (scheduled_for IS NULL OR scheduled_for <= $1)
		  AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY priority DESC, created_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("load due queue items: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailQueueItem
	for rows.Next() {
		it, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *QueueRepo) Claim(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_queue SET status = 'sending', updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'scheduled')
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("claim queue item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *QueueRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_queue SET status = 'sent', sent_at = $2, updated_at = $2, error_message = NULL
		WHERE id = $1 AND status = 'sending'
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark queue item sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func (r *QueueRepo) MarkFailed(ctx context.Context, id, msg string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_queue SET status = 'failed', error_message = $2, failed_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'sending'
	`, id, msg, at)
	if err != nil {
		return fmt.Errorf("mark queue item failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func (r *QueueRepo) FailStale(ctx context.Context, olderThan time.Time, msg string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_queue SET status = 'failed', error_message = $2, failed_at = NOW(), updated_at = NOW()
		WHERE status = 'sending' AND updated_at < $1
	`, olderThan, msg)
	if err != nil {
		return 0, fmt.Errorf("fail stale queue items: %w", err)
	}
	return res.RowsAffected()
}

func (r *QueueRepo) CreateCampaign(ctx context.Context, c *domain.EmailCampaign) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_campaigns (id, name, type, status, total_recipients, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Name, c.Type, c.Status, c.TotalRecipients, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *QueueRepo) GetCampaign(ctx context.Context, id string) (*domain.EmailCampaign, error) {
	c := &domain.EmailCampaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, type, status, total_recipients, created_at
		FROM email_campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Type, &c.Status, &c.TotalRecipients, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, queue.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *QueueRepo) SetCampaignTotal(ctx context.Context, id string, total int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE email_campaigns SET total_recipients = $2 WHERE id = $1`, id, total)
	if err != nil {
		return fmt.Errorf("set campaign total: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queue.ErrCampaignNotFound
	}
	return nil
}
