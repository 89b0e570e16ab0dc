package quota

import (
	"context"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/metrics"
)

// Service is the quota tracker.
type Service struct {
	repo  Repository
	limit int
	now   func() time.Time
}

// NewService creates a tracker with the configured daily limit.
func NewService(repo Repository, dailyLimit int) *Service {
	return &Service{repo: repo, limit: dailyLimit, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Limit returns the configured daily limit used for new rows.
func (s *Service) Limit() int { return s.limit }

// Today returns today's row, creating it if needed.
func (s *Service) Today(ctx context.Context) (*domain.EmailQuota, error) {
	return s.repo.GetOrCreate(ctx, domain.QuotaDay(s.now()), s.limit)
}

// Remaining returns max(0, limit - sent) for today.
func (s *Service) Remaining(ctx context.Context) (int, error) {
	q, err := s.Today(ctx)
	if err != nil {
		return 0, err
	}
	n := q.Remaining()
	metrics.QuotaRemaining.Set(float64(n))
	return n, nil
}

// CanSend reports whether count more emails fit in today's remaining quota.
func (s *Service) CanSend(ctx context.Context, count int) (bool, error) {
	n, err := s.Remaining(ctx)
	if err != nil {
		return false, err
	}
	return count <= n, nil
}

// RecordSent adds count to today's counter. Non-positive counts are ignored.
func (s *Service) RecordSent(ctx context.Context, count int) error {
	if count <= 0 {
		return nil
	}
	return s.repo.Increment(ctx, domain.QuotaDay(s.now()), s.limit, count)
}
