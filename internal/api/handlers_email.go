package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/metrics"
	"github.com/ignite/member-mailer/internal/pkg/httputil"
	"github.com/ignite/member-mailer/internal/service/queue"
)

// EnqueueEmail queues one message. POST /api/email/queue
func (h *Handlers) EnqueueEmail(w http.ResponseWriter, r *http.Request) {
	var in queue.EnqueueInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	id, err := h.svc.Queue.Enqueue(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, map[string]string{"id": id})
}

// ListQueue lists queue items. GET /api/email/queue?status=&campaign_id=
func (h *Handlers) ListQueue(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	items, total, err := h.svc.Queue.List(r.Context(), queue.ListFilter{
		Status:     r.URL.Query().Get("status"),
		CampaignID: r.URL.Query().Get("campaign_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	if items == nil {
		items = []domain.EmailQueueItem{}
	}
	httputil.OK(w, listResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

// GetQueueItem returns one queue item. GET /api/email/queue/{id}
func (h *Handlers) GetQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, item)
}

type quotaResponse struct {
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
	Sent      int    `json:"sent"`
	Date      string `json:"date"`
}

// GetQuota reports today's send budget. GET /api/email/quota
func (h *Handlers) GetQuota(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Quota.Today(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	metrics.QuotaRemaining.Set(float64(q.Remaining()))
	httputil.OK(w, quotaResponse{
		Remaining: q.Remaining(),
		Limit:     q.QuotaLimit,
		Sent:      q.EmailsSent,
		Date:      q.Date.Format("2006-01-02"),
	})
}
