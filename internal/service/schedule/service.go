package schedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/metrics"
	"github.com/ignite/member-mailer/internal/pkg/idem"
	"github.com/ignite/member-mailer/internal/pkg/validation"
)

// Reminder offsets used by ScheduleEventReminders.
const (
	DeadlineReminderLead = 48 * time.Hour
	AttendeeReminderLead = 24 * time.Hour
)

// Expander turns one due job into queued email. It returns how many
// messages it queued.
type Expander func(ctx context.Context, job *domain.ScheduledEmailJob) (int, error)

// CreateInput holds the fields for a new scheduled job.
type CreateInput struct {
	JobType        string                `json:"job_type" validate:"required,oneof=rsvp_deadline_reminder event_attendee_reminder"`
	EntityType     string                `json:"entity_type"`
	EntityID       string                `json:"entity_id" validate:"required"`
	ScheduledFor   time.Time             `json:"scheduled_for" validate:"required"`
	RecurrenceRule domain.RecurrenceRule `json:"recurrence_rule" validate:"omitempty,oneof=DAILY WEEKLY MONTHLY"`
}

// RunStats summarises one RunDue call.
type RunStats struct {
	Due       int
	Succeeded int
	Failed    int
	Queued    int
}

// Service implements the scheduled job engine.
type Service struct {
	repo      Repository
	deps      Deps
	cfg       Config
	expanders map[domain.JobKind]Expander
	now       func() time.Time
}

// NewService wires the engine and its expander table.
func NewService(repo Repository, deps Deps, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	s := &Service{repo: repo, deps: deps, cfg: cfg, now: time.Now}
	s.expanders = map[domain.JobKind]Expander{
		domain.JobRSVPDeadlineReminder:  s.expandDeadlineReminder,
		domain.JobEventAttendeeReminder: s.expandAttendeeReminder,
	}
	return s
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Get returns a single job.
func (s *Service) Get(ctx context.Context, id string) (*domain.ScheduledEmailJob, error) {
	return s.repo.Get(ctx, id)
}

// List returns jobs matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.ScheduledEmailJob, int, error) {
	if err := validation.Struct(f); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, f)
}

// Create stores a new active job unless one already exists for the same
// (job type, entity type, entity id). In that case the existing job is
// returned together with ErrDuplicateJob.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.ScheduledEmailJob, error) {
	if in.EntityType == "" {
		in.EntityType = domain.EntityEvent
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	key := Key{JobType: in.JobType, EntityType: in.EntityType, EntityID: in.EntityID}
	job, created, err := idem.FindOrCreate[Key, *domain.ScheduledEmailJob](ctx, s.repo, key, func() (*domain.ScheduledEmailJob, error) {
		now := s.now()
		return &domain.ScheduledEmailJob{
			ID:             uuid.New().String(),
			JobType:        in.JobType,
			EntityType:     in.EntityType,
			EntityID:       in.EntityID,
			ScheduledFor:   in.ScheduledFor,
			Status:         domain.ScheduleActive,
			RecurrenceRule: in.RecurrenceRule,
			CreatedAt:      now,
			UpdatedAt:      now,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create scheduled job: %w", err)
	}
	if !created {
		return job, ErrDuplicateJob
	}
	return job, nil
}

// ScheduleEventReminders is the event-publish producer. It schedules a
// deadline reminder two days before the RSVP deadline and an attendee
// reminder one day before the start. A reminder whose lead time has already
// passed is scheduled for now; one whose anchor (deadline or start) has
// passed is skipped. Existing active jobs are kept, not duplicated.
func (s *Service) ScheduleEventReminders(ctx context.Context, ev *domain.Event) ([]*domain.ScheduledEmailJob, error) {
	now := s.now()
	var out []*domain.ScheduledEmailJob

	plan := func(kind domain.JobKind, anchor time.Time, lead time.Duration) error {
		if !anchor.After(now) {
			return nil
		}
		at := anchor.Add(-lead)
		if at.Before(now) {
			at = now
		}
		job, err := s.Create(ctx, CreateInput{
			JobType:      string(kind),
			EntityType:   domain.EntityEvent,
			EntityID:     ev.ID,
			ScheduledFor: at,
		})
		if errors.Is(err, ErrDuplicateJob) {
			log.Printf("[schedule] %s for event %s already active (%s)", kind, ev.ID, job.ID)
			return nil
		}
		if err != nil {
			return err
		}
		out = append(out, job)
		return nil
	}

	if ev.RSVPDeadline != nil {
		if err := plan(domain.JobRSVPDeadlineReminder, *ev.RSVPDeadline, DeadlineReminderLead); err != nil {
			return out, err
		}
	}
	if err := plan(domain.JobEventAttendeeReminder, ev.StartsAt, AttendeeReminderLead); err != nil {
		return out, err
	}
	return out, nil
}

// RunDue expands every due job in one batch. Per-job errors are recorded on
// the job and never abort the batch; only a failure to read the batch is
// returned.
func (s *Service) RunDue(ctx context.Context) (RunStats, error) {
	var stats RunStats
	jobs, err := s.repo.Due(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("load due jobs: %w", err)
	}
	stats.Due = len(jobs)

	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		n, err := s.Run(ctx, &jobs[i])
		stats.Queued += n
		if err != nil {
			stats.Failed++
			continue
		}
		stats.Succeeded++
	}
	return stats, nil
}

// Run expands one job and records the outcome. The returned error is the
// expansion error, already recorded on the job.
func (s *Service) Run(ctx context.Context, job *domain.ScheduledEmailJob) (int, error) {
	kind, known := domain.ParseJobKind(job.JobType)
	if !known {
		log.Printf("[schedule] unrecognised job type %q on job %s, using %s", job.JobType, job.ID, domain.JobRSVPDeadlineReminder)
		kind = domain.JobRSVPDeadlineReminder
	}

	queued, runErr := s.expanders[kind](ctx, job)
	result := "success"
	if errors.Is(runErr, errMissingEntity) {
		log.Printf("[schedule] job %s: %s %s no longer exists, nothing to send", job.ID, job.EntityType, job.EntityID)
		result = "skipped"
		runErr = nil
	}
	if runErr != nil {
		result = "failure"
	}
	metrics.ScheduledJobs.WithLabelValues(string(kind), result).Inc()

	if err := s.repo.RecordRun(ctx, job.ID, s.outcome(job, runErr)); err != nil {
		log.Printf("[schedule] job %s: record run: %v", job.ID, err)
	}
	if runErr != nil {
		log.Printf("[schedule] job %s (%s) failed: %v", job.ID, job.JobType, runErr)
	}
	return queued, runErr
}

// outcome computes the bookkeeping for a finished run.
func (s *Service) outcome(job *domain.ScheduledEmailJob, runErr error) RunResult {
	now := s.now()
	r := RunResult{At: now, Status: domain.ScheduleActive}

	if runErr != nil {
		r.Failed = true
		r.Error = runErr.Error()
		if s.cfg.MaxFailures > 0 && job.FailureCount+1 >= s.cfg.MaxFailures {
			r.Status = domain.ScheduleFailed
		}
		return r
	}

	next, recurring := job.RecurrenceRule.Next(now)
	if !recurring {
		r.Status = domain.ScheduleCompleted
		return r
	}
	r.NextRunDate = &next
	return r
}
