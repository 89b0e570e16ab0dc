package bulk

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/pkg/validation"
)

// QuotaChecker is the slice of the quota tracker job creation needs.
type QuotaChecker interface {
	Remaining(ctx context.Context) (int, error)
}

// CreateInput holds the fields of a new bulk job.
type CreateInput struct {
	CreatedBy    string     `json:"created_by" validate:"required"`
	Subject      string     `json:"subject" validate:"required"`
	Body         string     `json:"body" validate:"required"`
	IsHTML       bool       `json:"is_html"`
	Recipients   []string   `json:"recipients" validate:"min=1,max=10000,dive,email"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

// Service implements bulk job business logic.
type Service struct {
	repo  Repository
	quota QuotaChecker
	now   func() time.Time
}

// NewService creates a bulk job service.
func NewService(repo Repository, quota QuotaChecker) *Service {
	return &Service{repo: repo, quota: quota, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreateJob validates the input, de-duplicates recipients (case-insensitive,
// first occurrence wins) and checks them against the remaining quota. The
// quota is read once and not reserved.
func (s *Service) CreateJob(ctx context.Context, in CreateInput) (*domain.EmailJob, error) {
	in.Recipients = dedupe(in.Recipients)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	remaining, err := s.quota.Remaining(ctx)
	if err != nil {
		return nil, fmt.Errorf("read quota: %w", err)
	}
	if len(in.Recipients) > remaining {
		return nil, fmt.Errorf("%w: %d recipients, %d remaining", ErrQuotaExceeded, len(in.Recipients), remaining)
	}

	now := s.now()
	job := &domain.EmailJob{
		ID:              uuid.New().String(),
		CreatedBy:       in.CreatedBy,
		Subject:         in.Subject,
		Body:            in.Body,
		IsHTML:          in.IsHTML,
		Status:          domain.BulkPending,
		TotalRecipients: len(in.Recipients),
		ScheduledFor:    in.ScheduledFor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, job, in.Recipients); err != nil {
		return nil, fmt.Errorf("create email job: %w", err)
	}
	log.Printf("[bulk.Service] job %s created by %s with %d recipients", job.ID, job.CreatedBy, job.TotalRecipients)
	return job, nil
}

// dedupe trims addresses and drops case-insensitive repeats, keeping order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, addr := range in {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// Get returns a single job.
func (s *Service) Get(ctx context.Context, id string) (*domain.EmailJob, error) {
	return s.repo.Get(ctx, id)
}

// List returns jobs matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.EmailJob, int, error) {
	if err := validation.Struct(f); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, f)
}

// Recipients returns a job's recipients, optionally filtered by status.
func (s *Service) Recipients(ctx context.Context, jobID string, f RecipientFilter) ([]domain.EmailJobRecipient, error) {
	if err := validation.Struct(f); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, jobID); err != nil {
		return nil, err
	}
	return s.repo.Recipients(ctx, jobID, f)
}

// Cancel stops a job for good. Pending recipients become cancelled;
// recipients already processed keep their status.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.repo.Cancel(ctx, id, s.now())
}

// Pause stops a pending or processing job after the current recipient.
func (s *Service) Pause(ctx context.Context, id string) error {
	return s.repo.Transition(ctx, id, []domain.BulkJobStatus{domain.BulkPending, domain.BulkProcessing}, domain.BulkPaused)
}

// Resume puts a paused job back in line for the bulk worker.
func (s *Service) Resume(ctx context.Context, id string) error {
	return s.repo.Transition(ctx, id, []domain.BulkJobStatus{domain.BulkPaused}, domain.BulkPending)
}

// NextPending returns the oldest due pending job, or nil.
func (s *Service) NextPending(ctx context.Context) (*domain.EmailJob, error) {
	return s.repo.NextPending(ctx, s.now())
}

// Status returns a job's current status.
func (s *Service) Status(ctx context.Context, id string) (domain.BulkJobStatus, error) {
	return s.repo.Status(ctx, id)
}

// Start moves a pending job to processing.
func (s *Service) Start(ctx context.Context, id string) (bool, error) {
	return s.repo.Start(ctx, id, s.now())
}

// PendingRecipients returns up to limit still-pending recipients in order.
func (s *Service) PendingRecipients(ctx context.Context, jobID string, limit int) ([]domain.EmailJobRecipient, error) {
	return s.repo.Recipients(ctx, jobID, RecipientFilter{Status: string(domain.RecipientPending), Limit: limit})
}

// RecordRecipient stores one recipient's outcome.
func (s *Service) RecordRecipient(ctx context.Context, jobID, recipientID string, ok bool, errMsg string) error {
	return s.repo.RecordRecipient(ctx, jobID, recipientID, ok, errMsg, s.now())
}

// Finish closes a job that processed every recipient: failed if every
// recipient failed, completed otherwise. Returns false if an admin action
// moved the job out of processing first.
func (s *Service) Finish(ctx context.Context, id string) (domain.BulkJobStatus, bool, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", false, err
	}
	status := domain.BulkCompleted
	if job.SuccessCount == 0 && job.FailedCount > 0 {
		status = domain.BulkFailed
	}
	ok, err := s.repo.Finish(ctx, id, status, s.now())
	return status, ok, err
}

// ResetStale returns jobs stuck in processing longer than age to pending.
func (s *Service) ResetStale(ctx context.Context, age time.Duration) (int64, error) {
	return s.repo.ResetStale(ctx, s.now().Add(-age))
}
