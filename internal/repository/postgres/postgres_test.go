package postgres_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/pkg/idem"
	"github.com/ignite/member-mailer/internal/repository/postgres"
	"github.com/ignite/member-mailer/internal/service/bulk"
	"github.com/ignite/member-mailer/internal/service/queue"
	"github.com/ignite/member-mailer/internal/service/schedule"
	"github.com/ignite/member-mailer/internal/service/token"
)

var t0 = time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var queueCols = []string{
	"id", "campaign_id", "to_email", "to_name", "subject", "html_body", "text_body", "status",
	"priority", "scheduled_for", "next_retry_at", "error_message", "created_at", "updated_at",
	"sent_at", "failed_at",
}

func TestQueueRepoGetNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery(q("FROM email_queue WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := postgres.NewQueueRepo(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestQueueRepoDue(t *testing.T) {
	db, mock := setupTestDB(t)
	camp := "camp-1"
	mock.ExpectQuery(q("WHERE status IN ('pending', 'scheduled')")).
		WithArgs(t0, 50).
		WillReturnRows(sqlmock.NewRows(queueCols).
			AddRow("q-1", camp, "a@example.org", "Ana", "Hi", "<p>Hi</p>", "", "pending",
				5, nil, nil, "", t0, t0, nil, nil).
			AddRow("q-2", nil, "b@example.org", "", "Hi", "<p>Hi</p>", "Hi", "scheduled",
				1, t0.Add(-time.Minute), nil, "", t0, t0, nil, nil))

	items, err := postgres.NewQueueRepo(db).Due(context.Background(), t0, 50)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].CampaignID)
	assert.Equal(t, camp, *items[0].CampaignID)
	assert.Equal(t, domain.EmailPending, items[0].Status)
	assert.Nil(t, items[1].CampaignID)
	assert.Equal(t, domain.EmailScheduled, items[1].Status)
	require.NotNil(t, items[1].ScheduledFor)
}

func TestQueueRepoClaim(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := postgres.NewQueueRepo(db)

	mock.ExpectExec(q("UPDATE email_queue SET status = 'sending'")).
		WithArgs("q-1", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE email_queue SET status = 'sending'")).
		WithArgs("q-1", t0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Claim(context.Background(), "q-1", t0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Claim(context.Background(), "q-1", t0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueueRepoMarkSentRequiresSending(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec(q("SET status = 'sent'")).
		WithArgs("q-1", t0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := postgres.NewQueueRepo(db).MarkSent(context.Background(), "q-1", t0)
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestQueueRepoFailStale(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec(q("WHERE status = 'sending' AND updated_at < $1")).
		WithArgs(t0, queue.InterruptedMessage).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := postgres.NewQueueRepo(db).FailStale(context.Background(), t0, queue.InterruptedMessage)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestQueueRepoListFilters(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery(q("SELECT COUNT(*) FROM email_queue WHERE 1=1 AND status = $1 AND campaign_id = $2")).
		WithArgs("failed", "camp-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(q("ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs("failed", "camp-1", 50, 0).
		WillReturnRows(sqlmock.NewRows(queueCols).
			AddRow("q-1", "camp-1", "a@example.org", "", "s", "h", "", "failed",
				1, nil, nil, "bounced", t0, t0, nil, t0))

	items, total, err := postgres.NewQueueRepo(db).List(context.Background(), queue.ListFilter{Status: "failed", CampaignID: "camp-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "bounced", items[0].ErrorMessage)
}

func TestQueueRepoSetCampaignTotal(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec(q("UPDATE email_campaigns SET total_recipients = $2 WHERE id = $1")).
		WithArgs("camp-1", 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, postgres.NewQueueRepo(db).SetCampaignTotal(context.Background(), "camp-1", 10))
}

func TestQuotaRepoGetOrCreate(t *testing.T) {
	db, mock := setupTestDB(t)
	day := domain.QuotaDay(t0)
	mock.ExpectQuery(q("INSERT INTO email_quotas")).
		WithArgs(day, 300).
		WillReturnRows(sqlmock.NewRows([]string{"date", "emails_sent", "quota_limit"}).AddRow(day, 42, 300))

	got, err := postgres.NewQuotaRepo(db).GetOrCreate(context.Background(), day, 300)
	require.NoError(t, err)
	assert.Equal(t, 258, got.Remaining())
}

func TestQuotaRepoIncrement(t *testing.T) {
	db, mock := setupTestDB(t)
	day := domain.QuotaDay(t0)
	mock.ExpectExec(q("emails_sent = email_quotas.emails_sent + EXCLUDED.emails_sent")).
		WithArgs(day, 300, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, postgres.NewQuotaRepo(db).Increment(context.Background(), day, 300, 1))
}

var tokenCols = []string{"token", "user_id", "event_id", "created_at", "expires_at", "used_at", "used_for_response", "used_with_plus_one"}

func TestTokenRepoGet(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery(q("FROM rsvp_tokens WHERE token = $1")).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("tok", "u-1", "ev-1", t0, t0.Add(time.Hour), t0, "yes", true))
	mock.ExpectQuery(q("FROM rsvp_tokens WHERE token = $1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	repo := postgres.NewTokenRepo(db)
	tok, err := repo.Get(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, tok.IsUsed())
	require.NotNil(t, tok.UsedForResponse)
	assert.Equal(t, domain.RSVPYes, *tok.UsedForResponse)
	assert.True(t, tok.UsedWithPlusOne)

	_, err = repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, token.ErrTokenNotFound)
}

func TestTokenRepoMarkUsedTwice(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec(q("WHERE token = $1 AND used_at IS NULL")).
		WithArgs("tok", t0, "no", false).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT EXISTS(SELECT 1 FROM rsvp_tokens WHERE token = $1)")).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	found, err := postgres.NewTokenRepo(db).MarkUsed(context.Background(), "tok", domain.RSVPNo, false, t0)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestScheduleRepoInsertConflict(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec(q("INSERT INTO scheduled_email_jobs")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := postgres.NewScheduleRepo(db).Insert(context.Background(), &domain.ScheduledEmailJob{
		ID: "j-1", JobType: "rsvp_deadline_reminder", EntityType: "event", EntityID: "ev-1",
		ScheduledFor: t0, Status: domain.ScheduleActive, CreatedAt: t0,
	})
	assert.ErrorIs(t, err, idem.ErrConflict)
}

func TestScheduleRepoRecordRun(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := postgres.NewScheduleRepo(db)
	next := t0.AddDate(0, 0, 7)

	mock.ExpectExec(q("run_count = run_count + 1")).
		WithArgs("j-1", t0, domain.ScheduleActive, next).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("run_count = run_count + 1, failure_count = failure_count + 1")).
		WithArgs("j-1", t0, domain.ScheduleActive, "boom").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("failure_count = failure_count + 1")).
		WithArgs("gone", t0, domain.ScheduleFailed, "boom").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, repo.RecordRun(ctx, "j-1", schedule.RunResult{At: t0, Status: domain.ScheduleActive, NextRunDate: &next}))
	require.NoError(t, repo.RecordRun(ctx, "j-1", schedule.RunResult{At: t0, Status: domain.ScheduleActive, Failed: true, Error: "boom"}))
	err := repo.RecordRun(ctx, "gone", schedule.RunResult{At: t0, Status: domain.ScheduleFailed, Failed: true, Error: "boom"})
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestScheduleRepoDue(t *testing.T) {
	db, mock := setupTestDB(t)
	cols := []string{"id", "job_type", "entity_type", "entity_id", "scheduled_for", "status", "last_run_date",
		"next_run_date", "recurrence_rule", "run_count", "failure_count", "last_error", "created_at", "updated_at"}
	mock.ExpectQuery(q("(next_run_date <= $1 OR (next_run_date IS NULL AND scheduled_for <= $1))")).
		WithArgs(t0, 20).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("j-1", "event_attendee_reminder", "event", "ev-1", t0, "active", nil, nil, "WEEKLY", 0, 0, "", t0, t0))

	jobs, err := postgres.NewScheduleRepo(db).Due(context.Background(), t0, 20)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.RecurWeekly, jobs[0].RecurrenceRule)
	assert.Nil(t, jobs[0].NextRunDate)
}

func TestBulkRepoCreate(t *testing.T) {
	db, mock := setupTestDB(t)
	job := &domain.EmailJob{ID: "job-1", CreatedBy: "admin", Subject: "s", Body: "b", IsHTML: true,
		Status: domain.BulkPending, TotalRecipients: 2, CreatedAt: t0}

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO email_jobs")).
		WithArgs("job-1", "admin", "s", "b", true, domain.BulkPending, 2, nil, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("FROM unnest($2::text[]) WITH ORDINALITY")).
		WithArgs("job-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, postgres.NewBulkRepo(db).Create(context.Background(), job, []string{"a@example.org", "b@example.org"}))
}

func TestBulkRepoRecordRecipient(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE email_job_recipients SET status = $3")).
		WithArgs("job-1", "r-1", domain.RecipientFailed, "rejected", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("processed_count = processed_count + 1")).
		WithArgs("job-1", 0, 1, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, postgres.NewBulkRepo(db).RecordRecipient(context.Background(), "job-1", "r-1", false, "rejected", t0))
}

func TestBulkRepoRecordRecipientAlreadyFinal(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE email_job_recipients SET status = $3")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	require.NoError(t, postgres.NewBulkRepo(db).RecordRecipient(context.Background(), "job-1", "r-1", true, "", t0))
}

func TestBulkRepoCancelCompleted(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("SET status = 'cancelled'")).
		WithArgs("job-1", t0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT EXISTS(SELECT 1 FROM email_jobs WHERE id = $1)")).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := postgres.NewBulkRepo(db).Cancel(context.Background(), "job-1", t0)
	assert.ErrorIs(t, err, bulk.ErrInvalidTransition)
}

func TestBulkRepoTransitionMissing(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec(q("WHERE id = $1 AND status = ANY($3)")).
		WithArgs("job-9", domain.BulkPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT EXISTS(SELECT 1 FROM email_jobs WHERE id = $1)")).
		WithArgs("job-9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := postgres.NewBulkRepo(db).Transition(context.Background(), "job-9", []domain.BulkJobStatus{domain.BulkPaused}, domain.BulkPending)
	assert.ErrorIs(t, err, bulk.ErrNotFound)
}

func TestBulkRepoNextPendingNone(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery(q("WHERE status = 'pending' AND (scheduled_for IS NULL OR scheduled_for <= $1)")).
		WithArgs(t0).
		WillReturnError(sql.ErrNoRows)

	job, err := postgres.NewBulkRepo(db).NextPending(context.Background(), t0)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDirectoryRepoNonResponders(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery(q("NOT EXISTS (SELECT 1 FROM event_rsvps r WHERE r.event_id = $1 AND r.user_id = u.id)")).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name"}).
			AddRow("u-1", "a@example.org", "Ana Diaz").
			AddRow("u-2", "b@example.org", ""))

	members, err := postgres.NewDirectoryRepo(db).NonResponders(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Ana Diaz", members[0].Name)
}

func TestDirectoryRepoGetEventMissing(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery(q("FROM events WHERE id = $1")).
		WithArgs("ev-x").
		WillReturnError(sql.ErrNoRows)

	ev, found, err := postgres.NewDirectoryRepo(db).GetEvent(context.Background(), "ev-x")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, ev)
}

func TestDirectoryRepoApplyRSVP(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec(q("ON CONFLICT (event_id, user_id) DO UPDATE")).
		WithArgs("ev-1", "u-1", domain.RSVPYes, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, postgres.NewDirectoryRepo(db).ApplyRSVP(context.Background(), "u-1", "ev-1", domain.RSVPYes, true))
}
