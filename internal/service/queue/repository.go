package queue

import (
	"context"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
)

// Repository defines the data access contract for queue items.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Insert persists a new item.
	Insert(ctx context.Context, item *domain.EmailQueueItem) error

	// Get returns a single item. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.EmailQueueItem, error)

	// List returns items matching the filter, newest first, plus the total count.
	List(ctx context.Context, f ListFilter) ([]domain.EmailQueueItem, int, error)

	// Due returns up to limit claimable items whose scheduled_for and
	// next_retry_at are unset or not after now, ordered by priority DESC
	// then created_at ASC.
	Due(ctx context.Context, now time.Time, limit int) ([]domain.EmailQueueItem, error)

	// Claim moves an item from pending/scheduled to sending. Returns false
	// if the item was no longer claimable.
	Claim(ctx context.Context, id string, at time.Time) (bool, error)

	// MarkSent moves a sending item to sent.
	MarkSent(ctx context.Context, id string, at time.Time) error

	// MarkFailed moves a sending item to failed with the given message.
	MarkFailed(ctx context.Context, id, msg string, at time.Time) error

	// FailStale fails items stuck in sending since before olderThan and
	// returns how many it touched.
	FailStale(ctx context.Context, olderThan time.Time, msg string) (int64, error)
}

// CampaignRepository persists the reporting groups stamped onto queue items.
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, c *domain.EmailCampaign) error
	GetCampaign(ctx context.Context, id string) (*domain.EmailCampaign, error)
	// SetCampaignTotal records the number of items actually queued.
	SetCampaignTotal(ctx context.Context, id string, total int) error
}

// ListFilter controls pagination and filtering for queue listings.
type ListFilter struct {
	Status     string `json:"status" validate:"omitempty,oneof=pending scheduled sending sent failed"`
	CampaignID string `json:"campaign_id"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}
