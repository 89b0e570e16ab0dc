package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/pkg/httputil"
	"github.com/ignite/member-mailer/internal/service/bulk"
)

// CreateJob creates a bulk job. POST /api/email/jobs
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var in bulk.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	job, err := h.svc.Bulk.CreateJob(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, job)
}

// ListJobs lists bulk jobs newest first. GET /api/email/jobs?status=
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	jobs, total, err := h.svc.Bulk.List(r.Context(), bulk.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	if jobs == nil {
		jobs = []domain.EmailJob{}
	}
	httputil.OK(w, listResponse{Items: jobs, Total: total, Limit: limit, Offset: offset})
}

// GetJob returns a job with its counters. GET /api/email/jobs/{id}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Bulk.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, job)
}

// ListJobRecipients lists a job's recipients in order.
// GET /api/email/jobs/{id}/recipients?status=
func (h *Handlers) ListJobRecipients(w http.ResponseWriter, r *http.Request) {
	limit := httputil.QueryInt(r, "limit", 0)
	offset := httputil.QueryInt(r, "offset", 0)
	rs, err := h.svc.Bulk.Recipients(r.Context(), chi.URLParam(r, "id"), bulk.RecipientFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	if rs == nil {
		rs = []domain.EmailJobRecipient{}
	}
	httputil.OK(w, map[string]interface{}{"recipients": rs, "count": len(rs)})
}

// CancelJob POST /api/email/jobs/{id}/cancel
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, h.svc.Bulk.Cancel)
}

// PauseJob POST /api/email/jobs/{id}/pause
func (h *Handlers) PauseJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, h.svc.Bulk.Pause)
}

// ResumeJob POST /api/email/jobs/{id}/resume
func (h *Handlers) ResumeJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, h.svc.Bulk.Resume)
}

func (h *Handlers) jobAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string) error) {
	id := chi.URLParam(r, "id")
	if err := action(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	job, err := h.svc.Bulk.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, job)
}
