package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/service/queue"
)

// QueueRepo implements queue.Repository and queue.CampaignRepository.
type QueueRepo struct {
	mu        sync.Mutex
	items     map[string]*domain.EmailQueueItem
	seq       []string
	campaigns map[string]*domain.EmailCampaign
}

// NewQueueRepo returns an empty queue store.
func NewQueueRepo() *QueueRepo {
	return &QueueRepo{
		items:     make(map[string]*domain.EmailQueueItem),
		campaigns: make(map[string]*domain.EmailCampaign),
	}
}

func (r *QueueRepo) Insert(_ context.Context, item *domain.EmailQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.items[item.ID] = &cp
	r.seq = append(r.seq, item.ID)
	return nil
}

func (r *QueueRepo) Get(_ context.Context, id string) (*domain.EmailQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, queue.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (r *QueueRepo) List(_ context.Context, f queue.ListFilter) ([]domain.EmailQueueItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EmailQueueItem
	for i := len(r.seq) - 1; i >= 0; i-- {
		it := r.items[r.seq[i]]
		if f.Status != "" && string(it.Status) != f.Status {
			continue
		}
		if f.CampaignID != "" && (it.CampaignID == nil || *it.CampaignID != f.CampaignID) {
			continue
		}
		out = append(out, *it)
	}
	total := len(out)
	return page(out, f.Limit, f.Offset), total, nil
}

func (r *QueueRepo) Due(_ context.Context, now time.Time, limit int) ([]domain.EmailQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EmailQueueItem
	for _, id := range r.seq {
		it := r.items[id]
		if !it.Status.Claimable() {
			continue
		}
		if it.ScheduledFor != nil && it.ScheduledFor.After(now) {
			continue
		}
		if it.NextRetryAt != nil && it.NextRetryAt.After(now) {
			continue
		}
		out = append(out, *it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *QueueRepo) Claim(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || !it.Status.Claimable() {
		return false, nil
	}
	it.Status = domain.EmailSending
	it.UpdatedAt = at
	return true, nil
}

func (r *QueueRepo) MarkSent(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || it.Status != domain.EmailSending {
		return queue.ErrNotFound
	}
	it.Status = domain.EmailSent
	it.SentAt = &at
	it.UpdatedAt = at
	return nil
}

func (r *QueueRepo) MarkFailed(_ context.Context, id, msg string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || it.Status != domain.EmailSending {
		return queue.ErrNotFound
	}
	it.Status = domain.EmailFailed
	it.ErrorMessage = msg
	it.FailedAt = &at
	it.UpdatedAt = at
	return nil
}

func (r *QueueRepo) FailStale(_ context.Context, olderThan time.Time, msg string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, it := range r.items {
		if it.Status == domain.EmailSending && it.UpdatedAt.Before(olderThan) {
			at := time.Now()
			it.Status = domain.EmailFailed
			it.ErrorMessage = msg
			it.FailedAt = &at
			it.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (r *QueueRepo) CreateCampaign(_ context.Context, c *domain.EmailCampaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *QueueRepo) GetCampaign(_ context.Context, id string) (*domain.EmailCampaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, queue.ErrCampaignNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *QueueRepo) SetCampaignTotal(_ context.Context, id string, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return queue.ErrCampaignNotFound
	}
	c.TotalRecipients = total
	return nil
}

// Items returns a snapshot of every item in insertion order.
func (r *QueueRepo) Items() []domain.EmailQueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EmailQueueItem, 0, len(r.seq))
	for _, id := range r.seq {
		out = append(out, *r.items[id])
	}
	return out
}

// Campaigns returns a snapshot of every campaign.
func (r *QueueRepo) Campaigns() []domain.EmailCampaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EmailCampaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		out = append(out, *c)
	}
	return out
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(in) {
		end = len(in)
	}
	return in[offset:end]
}
