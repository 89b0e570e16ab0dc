package memory

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/service/bulk"
)

// BulkRepo implements bulk.Repository.
type BulkRepo struct {
	mu         sync.Mutex
	jobs       map[string]*domain.EmailJob
	seq        []string
	recipients map[string][]*domain.EmailJobRecipient
}

// NewBulkRepo returns an empty bulk job store.
func NewBulkRepo() *BulkRepo {
	return &BulkRepo{
		jobs:       make(map[string]*domain.EmailJob),
		recipients: make(map[string][]*domain.EmailJobRecipient),
	}
}

func (r *BulkRepo) Create(_ context.Context, job *domain.EmailJob, recipients []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	r.seq = append(r.seq, job.ID)
	rows := make([]*domain.EmailJobRecipient, 0, len(recipients))
	for i, addr := range recipients {
		rows = append(rows, &domain.EmailJobRecipient{
			ID:       job.ID + "-" + strconv.Itoa(i+1),
			JobID:    job.ID,
			Email:    addr,
			Position: i + 1,
			Status:   domain.RecipientPending,
		})
	}
	r.recipients[job.ID] = rows
	return nil
}

func (r *BulkRepo) Get(_ context.Context, id string) (*domain.EmailJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, bulk.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *BulkRepo) List(_ context.Context, f bulk.ListFilter) ([]domain.EmailJob, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EmailJob
	for i := len(r.seq) - 1; i >= 0; i-- {
		j := r.jobs[r.seq[i]]
		if f.Status != "" && string(j.Status) != f.Status {
			continue
		}
		out = append(out, *j)
	}
	total := len(out)
	return page(out, f.Limit, f.Offset), total, nil
}

func (r *BulkRepo) Recipients(_ context.Context, jobID string, f bulk.RecipientFilter) ([]domain.EmailJobRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EmailJobRecipient
	for _, rc := range r.recipients[jobID] {
		if f.Status != "" && string(rc.Status) != f.Status {
			continue
		}
		out = append(out, *rc)
	}
	return page(out, f.Limit, f.Offset), nil
}

func (r *BulkRepo) Status(_ context.Context, id string) (domain.BulkJobStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return "", bulk.ErrNotFound
	}
	return j.Status, nil
}

func (r *BulkRepo) NextPending(_ context.Context, now time.Time) (*domain.EmailJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*domain.EmailJob
	for _, id := range r.seq {
		j := r.jobs[id]
		if j.Status != domain.BulkPending {
			continue
		}
		if j.ScheduledFor != nil && j.ScheduledFor.After(now) {
			continue
		}
		due = append(due, j)
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.SliceStable(due, func(a, b int) bool { return due[a].CreatedAt.Before(due[b].CreatedAt) })
	cp := *due[0]
	return &cp, nil
}

func (r *BulkRepo) Start(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != domain.BulkPending {
		return false, nil
	}
	j.Status = domain.BulkProcessing
	if j.StartedAt == nil {
		j.StartedAt = &at
	}
	j.UpdatedAt = at
	return true, nil
}

func (r *BulkRepo) RecordRecipient(_ context.Context, jobID, recipientID string, ok bool, errMsg string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, found := r.jobs[jobID]
	if !found {
		return bulk.ErrNotFound
	}
	for _, rc := range r.recipients[jobID] {
		if rc.ID != recipientID {
			continue
		}
		if rc.Status == domain.RecipientCompleted || rc.Status == domain.RecipientFailed {
			return nil
		}
		rc.ProcessedAt = &at
		j.ProcessedCount++
		if ok {
			rc.Status = domain.RecipientCompleted
			j.SuccessCount++
		} else {
			rc.Status = domain.RecipientFailed
			rc.ErrorMessage = errMsg
			j.FailedCount++
		}
		j.UpdatedAt = at
		return nil
	}
	return bulk.ErrNotFound
}

func (r *BulkRepo) Finish(_ context.Context, id string, status domain.BulkJobStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != domain.BulkProcessing {
		return false, nil
	}
	j.Status = status
	j.CompletedAt = &at
	j.UpdatedAt = at
	return true, nil
}

func (r *BulkRepo) Cancel(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return bulk.ErrNotFound
	}
	if j.Status == domain.BulkCompleted || j.Status == domain.BulkCancelled {
		return bulk.ErrInvalidTransition
	}
	j.Status = domain.BulkCancelled
	j.CompletedAt = &at
	j.UpdatedAt = at
	for _, rc := range r.recipients[id] {
		if rc.Status == domain.RecipientPending {
			rc.Status = domain.RecipientCancelled
		}
	}
	return nil
}

func (r *BulkRepo) Transition(_ context.Context, id string, from []domain.BulkJobStatus, to domain.BulkJobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return bulk.ErrNotFound
	}
	if !slices.Contains(from, j.Status) {
		return bulk.ErrInvalidTransition
	}
	j.Status = to
	j.UpdatedAt = time.Now()
	return nil
}

func (r *BulkRepo) ResetStale(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, j := range r.jobs {
		if j.Status == domain.BulkProcessing && j.UpdatedAt.Before(olderThan) {
			j.Status = domain.BulkPending
			j.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

// Touch sets a job's updated_at. Tests use it to age jobs.
func (r *BulkRepo) Touch(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.UpdatedAt = at
	}
}
