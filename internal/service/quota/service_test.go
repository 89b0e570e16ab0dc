package quota_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/service/quota"
)

// memRepo is an in-memory quota repository for unit testing.
type memRepo struct {
	mu   sync.Mutex
	rows map[time.Time]*domain.EmailQuota
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[time.Time]*domain.EmailQuota)}
}

func (m *memRepo) GetOrCreate(_ context.Context, day time.Time, limit int) (*domain.EmailQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.rows[day]
	if !ok {
		q = &domain.EmailQuota{Date: day, QuotaLimit: limit}
		m.rows[day] = q
	}
	cp := *q
	return &cp, nil
}

func (m *memRepo) Increment(_ context.Context, day time.Time, limit, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.rows[day]
	if !ok {
		q = &domain.EmailQuota{Date: day, QuotaLimit: limit}
		m.rows[day] = q
	}
	q.EmailsSent += n
	return nil
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestRemainingFreshDay(t *testing.T) {
	svc := quota.NewService(newMemRepo(), 300)

	n, err := svc.Remaining(context.Background())
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if n != 300 {
		t.Fatalf("expected full limit on a fresh day, got %d", n)
	}
}

func TestRecordSentDecreasesRemaining(t *testing.T) {
	ctx := context.Background()
	svc := quota.NewService(newMemRepo(), 300)

	before, _ := svc.Remaining(ctx)
	if err := svc.RecordSent(ctx, 3); err != nil {
		t.Fatalf("record: %v", err)
	}
	after, _ := svc.Remaining(ctx)
	if before-after != 3 {
		t.Fatalf("expected remaining to drop by 3, went %d -> %d", before, after)
	}
}

func TestRecordSentIgnoresNonPositive(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := quota.NewService(repo, 10)

	svc.RecordSent(ctx, 0)
	svc.RecordSent(ctx, -4)

	if len(repo.rows) != 0 {
		t.Fatalf("expected no rows touched, got %d", len(repo.rows))
	}
}

func TestCanSend(t *testing.T) {
	ctx := context.Background()
	svc := quota.NewService(newMemRepo(), 5)
	svc.RecordSent(ctx, 3)

	tests := []struct {
		count int
		want  bool
	}{
		{1, true},
		{2, true},
		{3, false},
	}
	for _, tt := range tests {
		ok, err := svc.CanSend(ctx, tt.count)
		if err != nil {
			t.Fatalf("can send: %v", err)
		}
		if ok != tt.want {
			t.Fatalf("CanSend(%d) = %v, want %v", tt.count, ok, tt.want)
		}
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	ctx := context.Background()
	svc := quota.NewService(newMemRepo(), 2)
	svc.RecordSent(ctx, 5)

	n, _ := svc.Remaining(ctx)
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}

func TestNewUTCDayResets(t *testing.T) {
	ctx := context.Background()
	svc := quota.NewService(newMemRepo(), 100)
	day1 := time.Date(2026, 4, 1, 23, 59, 0, 0, time.UTC)
	svc.SetClock(fixedClock(day1))
	svc.RecordSent(ctx, 100)

	if ok, _ := svc.CanSend(ctx, 1); ok {
		t.Fatal("quota should be exhausted on day 1")
	}

	svc.SetClock(fixedClock(day1.Add(2 * time.Minute)))
	n, _ := svc.Remaining(ctx)
	if n != 100 {
		t.Fatalf("expected fresh quota after UTC midnight, got %d", n)
	}
}
