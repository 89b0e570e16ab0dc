package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
)

// QuotaRepo implements quota.Repository.
type QuotaRepo struct {
	mu   sync.Mutex
	rows map[time.Time]*domain.EmailQuota
}

// NewQuotaRepo returns an empty quota store.
func NewQuotaRepo() *QuotaRepo {
	return &QuotaRepo{rows: make(map[time.Time]*domain.EmailQuota)}
}

func (r *QuotaRepo) row(day time.Time, limit int) *domain.EmailQuota {
	q, ok := r.rows[day]
	if !ok {
		q = &domain.EmailQuota{Date: day, QuotaLimit: limit}
		r.rows[day] = q
	}
	return q
}

func (r *QuotaRepo) GetOrCreate(_ context.Context, day time.Time, limit int) (*domain.EmailQuota, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.row(day, limit)
	return &cp, nil
}

func (r *QuotaRepo) Increment(_ context.Context, day time.Time, limit, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.row(day, limit).EmailsSent += n
	return nil
}
