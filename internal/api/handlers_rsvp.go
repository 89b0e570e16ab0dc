package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/member-mailer/internal/pkg/httputil"
	"github.com/ignite/member-mailer/internal/pkg/validation"
)

type generateTokenRequest struct {
	UserID    string     `json:"user_id" validate:"required"`
	EventID   string     `json:"event_id" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// GenerateToken issues (or re-issues) an RSVP token. Without expires_at the
// event's RSVP deadline, or else its start, is used.
// POST /api/rsvp/tokens
func (h *Handlers) GenerateToken(w http.ResponseWriter, r *http.Request) {
	var in generateTokenRequest
	if !httputil.Decode(w, r, &in) {
		return
	}
	if err := validation.Struct(in); err != nil {
		respondError(w, err)
		return
	}

	var expiresAt time.Time
	if in.ExpiresAt != nil {
		expiresAt = *in.ExpiresAt
	} else {
		ev, err := h.event(r.Context(), in.EventID)
		if err != nil {
			respondError(w, err)
			return
		}
		expiresAt = ev.TokenExpiry()
	}

	tok, err := h.svc.Tokens.Generate(r.Context(), in.UserID, in.EventID, expiresAt)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, tok)
}

// ValidateToken GET /api/rsvp/tokens/{token}
func (h *Handlers) ValidateToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.svc.Tokens.Validate(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"valid": true, "token": tok})
}

// RespondRSVP applies an RSVP from an email link and always answers with a
// page. GET /rsvp/respond?token=&response=&plusOne=
func (h *Handlers) RespondRSVP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	plusOne, _ := strconv.ParseBool(q.Get("plusOne"))
	status, page := h.svc.RSVP.Respond(r.Context(), q.Get("token"), q.Get("response"), plusOne)
	httputil.HTML(w, status, page)
}
