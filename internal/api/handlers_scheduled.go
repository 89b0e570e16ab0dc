package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/pkg/httputil"
	"github.com/ignite/member-mailer/internal/service/schedule"
)

// CreateScheduledJob schedules future email. A second active job for the
// same (job_type, entity) answers 409 with the existing job.
// POST /api/email/scheduled
func (h *Handlers) CreateScheduledJob(w http.ResponseWriter, r *http.Request) {
	var in schedule.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	job, err := h.svc.Schedule.Create(r.Context(), in)
	if errors.Is(err, schedule.ErrDuplicateJob) {
		httputil.Fail(w, http.StatusConflict, "duplicate_job", err.Error(), job)
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, job)
}

// ListScheduledJobs GET /api/email/scheduled?status=&entity_id=
func (h *Handlers) ListScheduledJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	jobs, total, err := h.svc.Schedule.List(r.Context(), schedule.ListFilter{
		Status:   r.URL.Query().Get("status"),
		EntityID: r.URL.Query().Get("entity_id"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	if jobs == nil {
		jobs = []domain.ScheduledEmailJob{}
	}
	httputil.OK(w, listResponse{Items: jobs, Total: total, Limit: limit, Offset: offset})
}

// ScheduleEventReminders is called when an event is published.
// POST /api/events/{id}/reminders
func (h *Handlers) ScheduleEventReminders(w http.ResponseWriter, r *http.Request) {
	ev, err := h.event(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	jobs, err := h.svc.Schedule.ScheduleEventReminders(r.Context(), ev)
	if err != nil {
		respondError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*domain.ScheduledEmailJob{}
	}
	httputil.Created(w, map[string]interface{}{"event_id": ev.ID, "jobs": jobs})
}
