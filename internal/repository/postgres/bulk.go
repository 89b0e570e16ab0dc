package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/service/bulk"
)

// BulkRepo implements bulk.Repository. Recipient outcomes and job counters
// change in one transaction so processed = success + failed at every commit.
type BulkRepo struct{ db *sql.DB }

// NewBulkRepo creates a Postgres-backed bulk job repository.
func NewBulkRepo(db *sql.DB) *BulkRepo { return &BulkRepo{db: db} }

const bulkColumns = `id, created_by, subject, body, is_html, status, total_recipients,
	processed_count, success_count, failed_count, scheduled_for, started_at, completed_at,
	created_at, updated_at`

func scanBulkJob(s scanner) (*domain.EmailJob, error) {
	j := &domain.EmailJob{}
	err := s.Scan(
		&j.ID, &j.CreatedBy, &j.Subject, &j.Body, &j.IsHTML, &j.Status, &j.TotalRecipients,
		&j.ProcessedCount, &j.SuccessCount, &j.FailedCount, &j.ScheduledFor, &j.StartedAt, &j.CompletedAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	return j, err
}

// Create stores the job and its recipients, numbered in the given order.
func (r *BulkRepo) Create(ctx context.Context, job *domain.EmailJob, recipients []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO email_jobs
			(id, created_by, subject, body, is_html, status, total_recipients, scheduled_for, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, job.ID, job.CreatedBy, job.Subject, job.Body, job.IsHTML, job.Status, job.TotalRecipients,
		job.ScheduledFor, job.CreatedAt); err != nil {
		return fmt.Errorf("insert email job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO email_job_recipients (job_id, email, position, status)
		SELECT $1, r.email, r.position, 'pending'
		FROM unnest($2::text[]) WITH ORDINALITY AS r(email, position)
	`, job.ID, pq.Array(recipients)); err != nil {
		return fmt.Errorf("insert email job recipients: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *BulkRepo) Get(ctx context.Context, id string) (*domain.EmailJob, error) {
	j, err := scanBulkJob(r.db.QueryRowContext(ctx, `SELECT `+bulkColumns+` FROM email_jobs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, bulk.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email job: %w", err)
	}
	return j, nil
}

func (r *BulkRepo) List(ctx context.Context, f bulk.ListFilter) ([]domain.EmailJob, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count email jobs: %w", err)
	}

	q := `SELECT ` + bulkColumns + ` FROM email_jobs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limitOrDefault(f.Limit), f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list email jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailJob
	for rows.Next() {
		j, err := scanBulkJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan email job: %w", err)
		}
		out = append(out, *j)
	}
	return out, total, rows.Err()
}

func (r *BulkRepo) Recipients(ctx context.Context, jobID string, f bulk.RecipientFilter) ([]domain.EmailJobRecipient, error) {
	q := `
		SELECT id, job_id, email, position, status, COALESCE(error_message,''), processed_at
		FROM email_job_recipients
		WHERE job_id = $1`
	args := []interface{}{jobID}
	idx := 2
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY position ASC LIMIT $%d OFFSET $%d", idx, idx+1)
	limit := f.Limit
	if limit <= 0 {
		limit = domain.MaxBulkRecipients
	}
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailJobRecipient
	for rows.Next() {
		var rc domain.EmailJobRecipient
		if err := rows.Scan(&rc.ID, &rc.JobID, &rc.Email, &rc.Position, &rc.Status, &rc.ErrorMessage, &rc.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (r *BulkRepo) Status(ctx context.Context, id string) (domain.BulkJobStatus, error) {
	var st domain.BulkJobStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM email_jobs WHERE id = $1`, id).Scan(&st)
	if err == sql.ErrNoRows {
		return "", bulk.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get email job status: %w", err)
	}
	return st, nil
}

func (r *BulkRepo) NextPending(ctx context.Context, now time.Time) (*domain.EmailJob, error) {
	j, err := scanBulkJob(r.db.QueryRowContext(ctx, `
		SELECT `+bulkColumns+`
		FROM email_jobs
		WHERE status = 'pending' AND (scheduled_for IS NULL OR scheduled_for <= $1)
		ORDER BY created_at ASC
		LIMIT 1
	`, now))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending email job: %w", err)
	}
	return j, nil
}

func (r *BulkRepo) Start(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = 'processing', started_at = COALESCE(started_at, $2), updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("start email job: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// RecordRecipient is a no-op for a recipient already in a final state.
func (r *BulkRepo) RecordRecipient(ctx context.Context, jobID, recipientID string, ok bool, errMsg string, at time.Time) error {
	status, success, failed := domain.RecipientCompleted, 1, 0
	if !ok {
		status, success, failed = domain.RecipientFailed, 0, 1
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	// A recipient cancelled while its send was in flight still records the outcome.
	res, err := tx.ExecContext(ctx, `
		UPDATE email_job_recipients SET status = $3, error_message = NULLIF($4,''), processed_at = $5
		WHERE id = $2 AND job_id = $1 AND status IN ('pending', 'processing', 'cancelled')
	`, jobID, recipientID, status, errMsg, at)
	if err != nil {
		return fmt.Errorf("update recipient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE email_jobs
		SET processed_count = processed_count + 1, success_count = success_count + $2,
		    failed_count = failed_count + $3, updated_at = $4
		WHERE id = $1
	`, jobID, success, failed, at); err != nil {
		return fmt.Errorf("update job counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *BulkRepo) Finish(ctx context.Context, id string, status domain.BulkJobStatus, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = $2, completed_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'processing'
	`, id, status, at)
	if err != nil {
		return false, fmt.Errorf("finish email job: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *BulkRepo) Cancel(ctx context.Context, id string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE email_jobs SET status = 'cancelled', completed_at = $2, updated_at = $2
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
	`, id, at)
	if err != nil {
		return fmt.Errorf("cancel email job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.transitionError(ctx, id)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE email_job_recipients SET status = 'cancelled'
		WHERE job_id = $1 AND status = 'pending'
	`, id); err != nil {
		return fmt.Errorf("cancel recipients: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *BulkRepo) Transition(ctx context.Context, id string, from []domain.BulkJobStatus, to domain.BulkJobStatus) error {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, to, pq.Array(allowed))
	if err != nil {
		return fmt.Errorf("transition email job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.transitionError(ctx, id)
	}
	return nil
}

func (r *BulkRepo) ResetStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("reset stale email jobs: %w", err)
	}
	return res.RowsAffected()
}

func (r *BulkRepo) transitionError(ctx context.Context, id string) error {
	ok, err := rowExists(ctx, r.db, "email_jobs", id)
	if err != nil {
		return err
	}
	if !ok {
		return bulk.ErrNotFound
	}
	return bulk.ErrInvalidTransition
}
