package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/pkg/httputil"
	"github.com/ignite/member-mailer/internal/service/bulk"
	"github.com/ignite/member-mailer/internal/service/queue"
	"github.com/ignite/member-mailer/internal/service/quota"
	"github.com/ignite/member-mailer/internal/service/rsvp"
	"github.com/ignite/member-mailer/internal/service/schedule"
	"github.com/ignite/member-mailer/internal/service/token"
)

var errEventNotFound = errors.New("event not found")

// Events looks up events for the reminder and token endpoints.
type Events interface {
	GetEvent(ctx context.Context, id string) (*domain.Event, bool, error)
}

// Services bundles everything the handlers call.
type Services struct {
	Queue    *queue.Service
	Quota    *quota.Service
	Bulk     *bulk.Service
	Schedule *schedule.Service
	Tokens   *token.Service
	RSVP     *rsvp.Service
	Events   Events
}

// Handlers contains all HTTP handlers
type Handlers struct {
	svc     Services
	started time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(svc Services) *Handlers {
	return &Handlers{svc: svc, started: time.Now()}
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	})
}

// event loads an event or returns errEventNotFound.
func (h *Handlers) event(ctx context.Context, id string) (*domain.Event, error) {
	ev, found, err := h.svc.Events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errEventNotFound
	}
	return ev, nil
}

// listResponse is the envelope for paginated listings.
type listResponse struct {
	Items  interface{} `json:"items"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

const defaultPageSize = 50

func pagination(r *http.Request) (limit, offset int) {
	limit = httputil.QueryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > 500 {
		limit = defaultPageSize
	}
	offset = httputil.QueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
