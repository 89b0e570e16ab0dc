package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/pkg/validation"
)

// InterruptedMessage is recorded on items found stuck in sending.
const InterruptedMessage = "interrupted while sending"

// EnqueueInput holds the fields of one outbound message. A nil Priority means
// domain.DefaultPriority; any explicit value, zero or negative included, is
// stored as given.
type EnqueueInput struct {
	To           string     `json:"to" validate:"required,email"`
	ToName       string     `json:"to_name"`
	Subject      string     `json:"subject" validate:"required"`
	HTML         string     `json:"html" validate:"required"`
	Text         string     `json:"text"`
	Priority     *int       `json:"priority"`
	CampaignID   string     `json:"campaign_id"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

// PriorityOf returns a Priority value for EnqueueInput.
func PriorityOf(p int) *int { return &p }

// Service implements queue business logic.
type Service struct {
	repo      Repository
	campaigns CampaignRepository
	now       func() time.Time
}

// NewService creates a queue service backed by the given repositories.
func NewService(repo Repository, campaigns CampaignRepository) *Service {
	return &Service{repo: repo, campaigns: campaigns, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Enqueue validates and stores one message. No quota is consulted here;
// quota is enforced when the item is drained.
func (s *Service) Enqueue(ctx context.Context, in EnqueueInput) (string, error) {
	in.To = strings.TrimSpace(in.To)
	if err := validation.Struct(in); err != nil {
		return "", err
	}

	now := s.now()
	item := &domain.EmailQueueItem{
		ID:        uuid.New().String(),
		ToEmail:   in.To,
		ToName:    in.ToName,
		Subject:   in.Subject,
		HTMLBody:  in.HTML,
		TextBody:  in.Text,
		Status:    domain.EmailPending,
		Priority:  domain.DefaultPriority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Priority != nil {
		item.Priority = *in.Priority
	}
	if in.CampaignID != "" {
		item.CampaignID = &in.CampaignID
	}
	if in.ScheduledFor != nil {
		at := *in.ScheduledFor
		item.ScheduledFor = &at
		if at.After(now) {
			item.Status = domain.EmailScheduled
		}
	}

	if err := s.repo.Insert(ctx, item); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return item.ID, nil
}

// Get returns a single queue item.
func (s *Service) Get(ctx context.Context, id string) (*domain.EmailQueueItem, error) {
	return s.repo.Get(ctx, id)
}

// List returns queue items matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.EmailQueueItem, int, error) {
	if err := validation.Struct(f); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, f)
}

// CreateCampaign starts a new reporting group with a zero total.
func (s *Service) CreateCampaign(ctx context.Context, name string, typ domain.CampaignType) (*domain.EmailCampaign, error) {
	c := &domain.EmailCampaign{
		ID:        uuid.New().String(),
		Name:      name,
		Type:      typ,
		Status:    domain.CampaignQueued,
		CreatedAt: s.now(),
	}
	if err := s.campaigns.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

// GetCampaign returns a campaign by id.
func (s *Service) GetCampaign(ctx context.Context, id string) (*domain.EmailCampaign, error) {
	return s.campaigns.GetCampaign(ctx, id)
}

// SetCampaignTotal records how many items were queued under a campaign.
func (s *Service) SetCampaignTotal(ctx context.Context, id string, total int) error {
	return s.campaigns.SetCampaignTotal(ctx, id, total)
}

// Due returns the next drain batch.
func (s *Service) Due(ctx context.Context, limit int) ([]domain.EmailQueueItem, error) {
	return s.repo.Due(ctx, s.now(), limit)
}

// Claim moves an item to sending. false means another cycle got it first.
func (s *Service) Claim(ctx context.Context, id string) (bool, error) {
	return s.repo.Claim(ctx, id, s.now())
}

// MarkSent records a successful delivery.
func (s *Service) MarkSent(ctx context.Context, id string) error {
	return s.repo.MarkSent(ctx, id, s.now())
}

// MarkFailed records a failed delivery.
func (s *Service) MarkFailed(ctx context.Context, id, msg string) error {
	return s.repo.MarkFailed(ctx, id, msg, s.now())
}

// FailStale fails items that have been in sending for longer than age.
func (s *Service) FailStale(ctx context.Context, age time.Duration) (int64, error) {
	return s.repo.FailStale(ctx, s.now().Add(-age), InterruptedMessage)
}
