package bulk

import (
	"context"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
)

// Repository defines the data access contract for bulk jobs and their
// recipients. Implementations must be safe for concurrent use.
type Repository interface {
	// Create persists the job and one pending recipient per address, in
	// order, atomically.
	Create(ctx context.Context, job *domain.EmailJob, recipients []string) error

	// Get returns a job. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.EmailJob, error)

	// List returns jobs matching the filter, newest first, plus the total.
	List(ctx context.Context, f ListFilter) ([]domain.EmailJob, int, error)

	// Recipients returns a job's recipients in position order.
	Recipients(ctx context.Context, jobID string, f RecipientFilter) ([]domain.EmailJobRecipient, error)

	// Status returns only the job's current status.
	Status(ctx context.Context, id string) (domain.BulkJobStatus, error)

	// NextPending returns the oldest pending job whose scheduled_for is
	// unset or not after now, or nil when there is none.
	NextPending(ctx context.Context, now time.Time) (*domain.EmailJob, error)

	// Start moves a pending job to processing and stamps started_at the
	// first time. Returns false if the job was no longer pending.
	Start(ctx context.Context, id string, at time.Time) (bool, error)

	// RecordRecipient stores one recipient outcome and bumps the job's
	// processed and success or failed counters in the same transaction.
	RecordRecipient(ctx context.Context, jobID, recipientID string, ok bool, errMsg string, at time.Time) error

	// Finish moves a processing job to status and stamps completed_at.
	// Returns false if the job had left processing (paused or cancelled).
	Finish(ctx context.Context, id string, status domain.BulkJobStatus, at time.Time) (bool, error)

	// Cancel moves a job that is not completed or cancelled to cancelled
	// and cancels its pending recipients. Returns ErrInvalidTransition when
	// the job is already completed or cancelled.
	Cancel(ctx context.Context, id string, at time.Time) error

	// Transition moves a job from one of from to to. Returns
	// ErrInvalidTransition when the current status is not in from.
	Transition(ctx context.Context, id string, from []domain.BulkJobStatus, to domain.BulkJobStatus) error

	// ResetStale returns jobs stuck in processing since before olderThan to
	// pending.
	ResetStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// ListFilter controls pagination and filtering for job listings.
type ListFilter struct {
	Status string `json:"status" validate:"omitempty,oneof=pending processing paused cancelled completed failed"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// RecipientFilter selects recipients of one job. Zero Limit means all.
type RecipientFilter struct {
	Status string `json:"status" validate:"omitempty,oneof=pending processing completed failed cancelled"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}
