package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/pkg/idem"
	"github.com/ignite/member-mailer/internal/service/schedule"
)

// ScheduleRepo implements schedule.Repository. Insert enforces the one
// active job per key rule the way the partial unique index does.
type ScheduleRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.ScheduledEmailJob
	seq  []string
}

// NewScheduleRepo returns an empty scheduled job store.
func NewScheduleRepo() *ScheduleRepo {
	return &ScheduleRepo{jobs: make(map[string]*domain.ScheduledEmailJob)}
}

func keyOf(j *domain.ScheduledEmailJob) schedule.Key {
	return schedule.Key{JobType: j.JobType, EntityType: j.EntityType, EntityID: j.EntityID}
}

func (r *ScheduleRepo) FindActive(_ context.Context, key schedule.Key) (*domain.ScheduledEmailJob, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.seq {
		j := r.jobs[id]
		if j.Status == domain.ScheduleActive && keyOf(j) == key {
			cp := *j
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (r *ScheduleRepo) Insert(_ context.Context, j *domain.ScheduledEmailJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.seq {
		other := r.jobs[id]
		if other.Status == domain.ScheduleActive && keyOf(other) == keyOf(j) {
			return idem.ErrConflict
		}
	}
	cp := *j
	r.jobs[j.ID] = &cp
	r.seq = append(r.seq, j.ID)
	return nil
}

func (r *ScheduleRepo) Get(_ context.Context, id string) (*domain.ScheduledEmailJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *ScheduleRepo) List(_ context.Context, f schedule.ListFilter) ([]domain.ScheduledEmailJob, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ScheduledEmailJob
	for _, id := range r.seq {
		j := r.jobs[id]
		if f.Status != "" && string(j.Status) != f.Status {
			continue
		}
		if f.EntityID != "" && j.EntityID != f.EntityID {
			continue
		}
		out = append(out, *j)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].ScheduledFor.Before(out[b].ScheduledFor) })
	total := len(out)
	return page(out, f.Limit, f.Offset), total, nil
}

func (r *ScheduleRepo) Due(_ context.Context, now time.Time, limit int) ([]domain.ScheduledEmailJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ScheduledEmailJob
	for _, id := range r.seq {
		if j := r.jobs[id]; j.IsDue(now) {
			out = append(out, *j)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].ScheduledFor.Before(out[b].ScheduledFor) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ScheduleRepo) RecordRun(_ context.Context, id string, res schedule.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return schedule.ErrNotFound
	}
	at := res.At
	j.LastRunDate = &at
	j.Status = res.Status
	j.UpdatedAt = at
	j.RunCount++
	if res.Failed {
		j.FailureCount++
		j.LastError = res.Error
		return nil
	}
	j.LastError = ""
	if res.NextRunDate != nil {
		next := *res.NextRunDate
		j.NextRunDate = &next
	}
	return nil
}

// Put stores a job as given, bypassing the active-key check. Tests use it
// to seed legacy rows.
func (r *ScheduleRepo) Put(j domain.ScheduledEmailJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.ID]; !ok {
		r.seq = append(r.seq, j.ID)
	}
	r.jobs[j.ID] = &j
}
