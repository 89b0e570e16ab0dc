package schedule

import (
	"context"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
)

// Repository defines the data access contract for scheduled jobs.
type Repository interface {
	// FindActive returns the active job for key, if any.
	FindActive(ctx context.Context, key Key) (*domain.ScheduledEmailJob, bool, error)

	// Insert persists a new job. Returns idem.ErrConflict when another
	// active job for the same key already exists.
	Insert(ctx context.Context, j *domain.ScheduledEmailJob) error

	// Get returns a job. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.ScheduledEmailJob, error)

	// List returns jobs matching the filter ordered by scheduled_for.
	List(ctx context.Context, f ListFilter) ([]domain.ScheduledEmailJob, int, error)

	// Due returns up to limit active jobs whose next_run_date (or, when
	// unset, scheduled_for) is not after now, ordered by scheduled_for.
	Due(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledEmailJob, error)

	// RecordRun stores the outcome of one run.
	RecordRun(ctx context.Context, id string, r RunResult) error
}

// Key is the de-duplication key of a scheduled job.
type Key struct {
	JobType    string
	EntityType string
	EntityID   string
}

// RunResult is written back after each run, failed or not. RunCount always
// increments and LastRunDate is set to At; a failed run also increments
// FailureCount. NextRunDate is only written when non-nil.
type RunResult struct {
	At          time.Time
	Status      domain.ScheduleStatus
	NextRunDate *time.Time
	Failed      bool
	Error       string
}

// ListFilter controls pagination and filtering for job listings.
type ListFilter struct {
	Status   string `json:"status" validate:"omitempty,oneof=active completed failed"`
	EntityID string `json:"entity_id"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}
