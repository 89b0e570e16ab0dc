package domain

import (
	"time"
)

// BulkJobStatus enumerates the lifecycle of an admin-composed bulk email job.
type BulkJobStatus string

const (
	BulkPending    BulkJobStatus = "pending"
	BulkProcessing BulkJobStatus = "processing"
	BulkPaused     BulkJobStatus = "paused"
	BulkCancelled  BulkJobStatus = "cancelled"
	BulkCompleted  BulkJobStatus = "completed"
	BulkFailed     BulkJobStatus = "failed"
)

// IsTerminal returns true if no further processing can happen.
func (s BulkJobStatus) IsTerminal() bool {
	return s == BulkCancelled || s == BulkCompleted || s == BulkFailed
}

// RecipientStatus enumerates per-recipient progress inside a bulk job.
type RecipientStatus string

const (
	RecipientPending    RecipientStatus = "pending"
	RecipientProcessing RecipientStatus = "processing"
	RecipientCompleted  RecipientStatus = "completed"
	RecipientFailed     RecipientStatus = "failed"
	RecipientCancelled  RecipientStatus = "cancelled"
)

// IsTerminal returns true once the recipient has been sent, failed or cancelled.
func (s RecipientStatus) IsTerminal() bool {
	return s == RecipientCompleted || s == RecipientFailed || s == RecipientCancelled
}

// MaxBulkRecipients caps the size of a single bulk job.
const MaxBulkRecipients = 10000

// EmailJob is a bulk broadcast with per-recipient tracking.
type EmailJob struct {
	ID              string        `json:"id" db:"id"`
	CreatedBy       string        `json:"created_by" db:"created_by"`
	Subject         string        `json:"subject" db:"subject"`
	Body            string        `json:"body" db:"body"`
	IsHTML          bool          `json:"is_html" db:"is_html"`
	Status          BulkJobStatus `json:"status" db:"status"`
	TotalRecipients int           `json:"total_recipients" db:"total_recipients"`
	ProcessedCount  int           `json:"processed_count" db:"processed_count"`
	SuccessCount    int           `json:"success_count" db:"success_count"`
	FailedCount     int           `json:"failed_count" db:"failed_count"`
	ScheduledFor    *time.Time    `json:"scheduled_for,omitempty" db:"scheduled_for"`
	StartedAt       *time.Time    `json:"started_at,omitempty" db:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// Pending returns the number of recipients not yet processed.
func (j *EmailJob) Pending() int {
	n := j.TotalRecipients - j.ProcessedCount
	if n < 0 {
		return 0
	}
	return n
}

// EmailJobRecipient is one address inside a bulk job.
type EmailJobRecipient struct {
	ID           string          `json:"id" db:"id"`
	JobID        string          `json:"job_id" db:"job_id"`
	Email        string          `json:"email" db:"email"`
	Position     int             `json:"position" db:"position"`
	Status       RecipientStatus `json:"status" db:"status"`
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
}
