package domain

import (
	"time"
)

// ScheduleStatus enumerates the lifecycle of a scheduled email job.
type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleFailed    ScheduleStatus = "failed"
)

// JobKind discriminates how a scheduled job expands into queued email.
type JobKind string

const (
	JobRSVPDeadlineReminder  JobKind = "rsvp_deadline_reminder"
	JobEventAttendeeReminder JobKind = "event_attendee_reminder"
)

// EntityEvent is the only entity type scheduled jobs currently reference.
const EntityEvent = "event"

// ParseJobKind maps a stored job type onto a known kind.
func ParseJobKind(s string) (JobKind, bool) {
	switch JobKind(s) {
	case JobRSVPDeadlineReminder, JobEventAttendeeReminder:
		return JobKind(s), true
	}
	return "", false
}

// RecurrenceRule controls how a job is rescheduled after a run.
// The empty rule means the job runs once.
type RecurrenceRule string

const (
	RecurNone    RecurrenceRule = ""
	RecurDaily   RecurrenceRule = "DAILY"
	RecurWeekly  RecurrenceRule = "WEEKLY"
	RecurMonthly RecurrenceRule = "MONTHLY"
)

// Valid reports whether r is one of the supported rules.
func (r RecurrenceRule) Valid() bool {
	switch r {
	case RecurNone, RecurDaily, RecurWeekly, RecurMonthly:
		return true
	}
	return false
}

// Next returns the next run time after from. ok is false for RecurNone.
func (r RecurrenceRule) Next(from time.Time) (next time.Time, ok bool) {
	switch r {
	case RecurDaily:
		return from.AddDate(0, 0, 1), true
	case RecurWeekly:
		return from.AddDate(0, 0, 7), true
	case RecurMonthly:
		return from.AddDate(0, 1, 0), true
	}
	return time.Time{}, false
}

// ScheduledEmailJob is a durable intent to produce email at a future time.
type ScheduledEmailJob struct {
	ID             string         `json:"id" db:"id"`
	JobType        string         `json:"job_type" db:"job_type"`
	EntityType     string         `json:"entity_type" db:"entity_type"`
	EntityID       string         `json:"entity_id" db:"entity_id"`
	ScheduledFor   time.Time      `json:"scheduled_for" db:"scheduled_for"`
	Status         ScheduleStatus `json:"status" db:"status"`
	LastRunDate    *time.Time     `json:"last_run_date,omitempty" db:"last_run_date"`
	NextRunDate    *time.Time     `json:"next_run_date,omitempty" db:"next_run_date"`
	RecurrenceRule RecurrenceRule `json:"recurrence_rule,omitempty" db:"recurrence_rule"`
	RunCount       int            `json:"run_count" db:"run_count"`
	FailureCount   int            `json:"failure_count" db:"failure_count"`
	LastError      string         `json:"last_error,omitempty" db:"last_error"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// DueAt returns the time the job next becomes eligible to run.
func (j *ScheduledEmailJob) DueAt() time.Time {
	if j.NextRunDate != nil {
		return *j.NextRunDate
	}
	return j.ScheduledFor
}

// IsDue reports whether an active job should run at now.
func (j *ScheduledEmailJob) IsDue(now time.Time) bool {
	return j.Status == ScheduleActive && !j.DueAt().After(now)
}
