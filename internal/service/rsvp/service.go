package rsvp

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/metrics"
	"github.com/ignite/member-mailer/internal/pkg/logger"
	"github.com/ignite/member-mailer/internal/render"
	"github.com/ignite/member-mailer/internal/service/queue"
	"github.com/ignite/member-mailer/internal/service/token"
)

// Directory reads and writes the membership RSVP data.
type Directory interface {
	GetEvent(ctx context.Context, id string) (*domain.Event, bool, error)
	GetMember(ctx context.Context, id string) (*domain.Member, bool, error)
	// ApplyRSVP upserts the member's answer for the event.
	ApplyRSVP(ctx context.Context, userID, eventID string, response domain.RSVPResponse, plusOne bool) error
}

// Tokens validates and consumes RSVP tokens.
type Tokens interface {
	Validate(ctx context.Context, value string) (*domain.RsvpToken, error)
	MarkUsed(ctx context.Context, value string, response domain.RSVPResponse, plusOne bool) (bool, error)
}

// Enqueuer queues the confirmation email.
type Enqueuer interface {
	Enqueue(ctx context.Context, in queue.EnqueueInput) (string, error)
}

// Renderer renders the confirmation email and the result page.
type Renderer interface {
	Confirmation(d render.Confirmation) (subject, body string, err error)
	RSVPPage(p render.Page) (string, error)
}

// Service implements the email-link RSVP flow.
type Service struct {
	dir                  Directory
	tokens               Tokens
	queue                Enqueuer
	render               Renderer
	confirmationPriority int
}

// NewService wires the RSVP flow.
func NewService(dir Directory, tokens Tokens, q Enqueuer, r Renderer, confirmationPriority int) *Service {
	return &Service{dir: dir, tokens: tokens, queue: q, render: r, confirmationPriority: confirmationPriority}
}

// Respond applies an RSVP from a clicked link and returns the page to show
// with its HTTP status. plusOne is ignored for "no". The token is consumed
// only after the RSVP row is written.
func (s *Service) Respond(ctx context.Context, tokenValue, response string, plusOne bool) (int, string) {
	resp, ok := domain.ParseRSVPResponse(response)
	if !ok {
		return s.page(http.StatusBadRequest, render.Page{Outcome: render.PageInvalidResponse})
	}
	if resp == domain.RSVPNo {
		plusOne = false
	}

	tok, err := s.tokens.Validate(ctx, tokenValue)
	switch {
	case errors.Is(err, token.ErrTokenNotFound):
		return s.page(http.StatusNotFound, render.Page{Outcome: render.PageNotFound})
	case errors.Is(err, token.ErrTokenAlreadyUsed):
		return s.page(http.StatusConflict, render.Page{Outcome: render.PageAlreadyUsed, Event: s.event(ctx, tok)})
	case errors.Is(err, token.ErrTokenExpired):
		return s.page(http.StatusGone, render.Page{Outcome: render.PageExpired, Event: s.event(ctx, tok)})
	case err != nil:
		logger.Error("validate rsvp token", "token", tokenValue, "error", err)
		return s.page(http.StatusInternalServerError, render.Page{Outcome: render.PageError})
	}

	if err := s.dir.ApplyRSVP(ctx, tok.UserID, tok.EventID, resp, plusOne); err != nil {
		log.Printf("[rsvp] apply rsvp user=%s event=%s: %v", tok.UserID, tok.EventID, err)
		return s.page(http.StatusInternalServerError, render.Page{Outcome: render.PageError})
	}
	if _, err := s.tokens.MarkUsed(ctx, tokenValue, resp, plusOne); err != nil {
		log.Printf("[rsvp] mark token used user=%s event=%s: %v", tok.UserID, tok.EventID, err)
	}

	ev := s.event(ctx, tok)
	s.sendConfirmation(ctx, tok, ev, resp, plusOne)
	return s.page(http.StatusOK, render.Page{Outcome: render.PageRecorded, Event: ev, Response: resp, PlusOne: plusOne})
}

// event looks up the token's event for display. Lookup failures only cost
// the page its event details.
func (s *Service) event(ctx context.Context, tok *domain.RsvpToken) *domain.Event {
	if tok == nil {
		return nil
	}
	ev, found, err := s.dir.GetEvent(ctx, tok.EventID)
	if err != nil {
		log.Printf("[rsvp] load event %s: %v", tok.EventID, err)
		return nil
	}
	if !found {
		return nil
	}
	return ev
}

// sendConfirmation queues the confirmation email. Failures are logged and
// never shown to the member.
func (s *Service) sendConfirmation(ctx context.Context, tok *domain.RsvpToken, ev *domain.Event, resp domain.RSVPResponse, plusOne bool) {
	if ev == nil {
		logger.Warn("rsvp confirmation skipped, event missing", "event_id", tok.EventID, "user_id", tok.UserID)
		return
	}
	m, found, err := s.dir.GetMember(ctx, tok.UserID)
	if err != nil || !found {
		logger.Warn("rsvp confirmation skipped, member unavailable", "user_id", tok.UserID, "error", err)
		return
	}

	subject, body, err := s.render.Confirmation(render.Confirmation{MemberName: m.Name, Event: *ev, Response: resp, PlusOne: plusOne})
	if err != nil {
		logger.Error("render rsvp confirmation", "user_id", m.ID, "error", err)
		return
	}
	if _, err := s.queue.Enqueue(ctx, queue.EnqueueInput{
		To:       m.Email,
		ToName:   m.Name,
		Subject:  subject,
		HTML:     body,
		Priority: queue.PriorityOf(s.confirmationPriority),
	}); err != nil {
		logger.Error("enqueue rsvp confirmation", "user_id", m.ID, "email", m.Email, "error", err)
	}
}

func (s *Service) page(status int, p render.Page) (int, string) {
	metrics.RSVPClicks.WithLabelValues(string(p.Outcome)).Inc()
	out, err := s.render.RSVPPage(p)
	if err != nil {
		log.Printf("[rsvp] render page: %v", err)
		return http.StatusInternalServerError, fallbackPage
	}
	return status, out
}

const fallbackPage = `<!DOCTYPE html><html><body><h1>Sorry</h1><p>We couldn't process your RSVP right now. Please try again later.</p></body></html>`
