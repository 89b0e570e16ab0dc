package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/pkg/idem"
	"github.com/ignite/member-mailer/internal/service/schedule"
)

// ScheduleRepo implements schedule.Repository. The partial unique index
// uq_scheduled_email_jobs_active backs the one-active-job-per-key rule.
type ScheduleRepo struct{ db *sql.DB }

// NewScheduleRepo creates a Postgres-backed scheduled job repository.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

const scheduleColumns = `id, job_type, entity_type, entity_id, scheduled_for, status,
	last_run_date, next_run_date, COALESCE(recurrence_rule,''), run_count, failure_count,
	COALESCE(last_error,''), created_at, updated_at`

func scanScheduledJob(s scanner) (*domain.ScheduledEmailJob, error) {
	j := &domain.ScheduledEmailJob{}
	err := s.Scan(
		&j.ID, &j.JobType, &j.EntityType, &j.EntityID, &j.ScheduledFor, &j.Status,
		&j.LastRunDate, &j.NextRunDate, &j.RecurrenceRule, &j.RunCount, &j.FailureCount,
		&j.LastError, &j.CreatedAt, &j.UpdatedAt,
	)
	return j, err
}

func (r *ScheduleRepo) FindActive(ctx context.Context, key schedule.Key) (*domain.ScheduledEmailJob, bool, error) {
	j, err := scanScheduledJob(r.db.QueryRowContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM scheduled_email_jobs
		WHERE job_type = $1 AND entity_type = $2 AND entity_id = $3 AND status = 'active'
		LIMIT 1
	`, key.JobType, key.EntityType, key.EntityID))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find active scheduled job: %w", err)
	}
	return j, true, nil
}

func (r *ScheduleRepo) Insert(ctx context.Context, j *domain.ScheduledEmailJob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_email_jobs
			(id, job_type, entity_type, entity_id, scheduled_for, status, recurrence_rule, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), $8, $8)
	`, j.ID, j.JobType, j.EntityType, j.EntityID, j.ScheduledFor, j.Status, j.RecurrenceRule, j.CreatedAt)
	if isUniqueViolation(err) {
		return idem.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert scheduled job: %w", err)
	}
	return nil
}

func (r *ScheduleRepo) Get(ctx context.Context, id string) (*domain.ScheduledEmailJob, error) {
	j, err := scanScheduledJob(r.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM scheduled_email_jobs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled job: %w", err)
	}
	return j, nil
}

func (r *ScheduleRepo) List(ctx context.Context, f schedule.ListFilter) ([]domain.ScheduledEmailJob, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.EntityID != "" {
		where += fmt.Sprintf(" AND entity_id = $%d", idx)
		args = append(args, f.EntityID)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_email_jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scheduled jobs: %w", err)
	}

	q := `SELECT ` + scheduleColumns + ` FROM scheduled_email_jobs` + where +
		fmt.Sprintf(" ORDER BY scheduled_for ASC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limitOrDefault(f.Limit), f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list scheduled jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduledEmailJob
	for rows.Next() {
		j, err := scanScheduledJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan scheduled job: %w", err)
		}
		out = append(out, *j)
	}
	return out, total, rows.Err()
}

func (r *ScheduleRepo) Due(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledEmailJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM scheduled_email_jobs
		WHERE status = 'active'
		  AND (next_run_date <= $1 OR (next_run_date IS NULL AND scheduled_for <= $1))
		ORDER BY scheduled_for ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("load due scheduled jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduledEmailJob
	for rows.Next() {
		j, err := scanScheduledJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (r *ScheduleRepo) RecordRun(ctx context.Context, id string, res schedule.RunResult) error {
	var (
		out sql.Result
		err error
	)
	if res.Failed {
		out, err = r.db.ExecContext(ctx, `
			UPDATE scheduled_email_jobs
			SET last_run_date = $2, status = $3, run_count = run_count + 1,
			    failure_count = failure_count + 1, last_error = $4, updated_at = $2
			WHERE id = $1
		`, id, res.At, res.Status, res.Error)
	} else {
		out, err = r.db.ExecContext(ctx, `
			UPDATE scheduled_email_jobs
			SET last_run_date = $2, status = $3, run_count = run_count + 1,
			    next_run_date = COALESCE($4, next_run_date), last_error = NULL, updated_at = $2
			WHERE id = $1
		`, id, res.At, res.Status, res.NextRunDate)
	}
	if err != nil {
		return fmt.Errorf("record scheduled job run: %w", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}
