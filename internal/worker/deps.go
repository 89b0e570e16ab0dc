package worker

import (
	"context"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/service/schedule"
)

// Quota is the daily send budget shared by both loops.
type Quota interface {
	Remaining(ctx context.Context) (int, error)
	CanSend(ctx context.Context, count int) (bool, error)
	RecordSent(ctx context.Context, count int) error
}

// Expander runs due scheduled jobs ahead of each drain.
type Expander interface {
	RunDue(ctx context.Context) (schedule.RunStats, error)
}

// Queue is the email queue as the drain loop sees it.
type Queue interface {
	Due(ctx context.Context, limit int) ([]domain.EmailQueueItem, error)
	Claim(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, msg string) error
}

// BulkJobs is the bulk job store as the bulk loop sees it.
type BulkJobs interface {
	NextPending(ctx context.Context) (*domain.EmailJob, error)
	Status(ctx context.Context, id string) (domain.BulkJobStatus, error)
	Start(ctx context.Context, id string) (bool, error)
	PendingRecipients(ctx context.Context, jobID string, limit int) ([]domain.EmailJobRecipient, error)
	RecordRecipient(ctx context.Context, jobID, recipientID string, ok bool, errMsg string) error
	Finish(ctx context.Context, id string) (domain.BulkJobStatus, bool, error)
}
