package schedule

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/pkg/logger"
	"github.com/ignite/member-mailer/internal/pkg/validation"
	"github.com/ignite/member-mailer/internal/render"
	"github.com/ignite/member-mailer/internal/service/queue"
)

func (s *Service) loadEvent(ctx context.Context, job *domain.ScheduledEmailJob) (*domain.Event, error) {
	ev, found, err := s.deps.Directory.GetEvent(ctx, job.EntityID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", job.EntityID, err)
	}
	if !found {
		return nil, errMissingEntity
	}
	return ev, nil
}

// rsvpLink builds {base}/rsvp/respond?token=T&response=R[&plusOne=true].
func (s *Service) rsvpLink(token string, response domain.RSVPResponse, plusOne bool) string {
	q := "token=" + url.QueryEscape(token) + "&response=" + string(response)
	if plusOne {
		q += "&plusOne=true"
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/rsvp/respond?" + q
}

// fanOut queues one message per member under a fresh campaign and then
// records the campaign total. build renders one member's message. Members
// whose address fails validation are logged and skipped; any other error
// stops the expansion.
func (s *Service) fanOut(ctx context.Context, campaignName string, typ domain.CampaignType, members []domain.Member,
	build func(m domain.Member) (subject, body string, err error)) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}

	camp, err := s.deps.Queue.CreateCampaign(ctx, campaignName, typ)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, m := range members {
		subject, body, err := build(m)
		if err != nil {
			s.recordPartialTotal(ctx, camp.ID, queued)
			return queued, err
		}
		_, err = s.deps.Queue.Enqueue(ctx, queue.EnqueueInput{
			To:         m.Email,
			ToName:     m.Name,
			Subject:    subject,
			HTML:       body,
			CampaignID: camp.ID,
		})
		if validation.IsValidation(err) {
			logger.Warn("skipping member with unusable address", "member_id", m.ID, "email", m.Email, "campaign_id", camp.ID)
			continue
		}
		if err != nil {
			s.recordPartialTotal(ctx, camp.ID, queued)
			return queued, err
		}
		queued++
	}

	if err := s.deps.Queue.SetCampaignTotal(ctx, camp.ID, queued); err != nil {
		return queued, fmt.Errorf("set campaign total: %w", err)
	}
	log.Printf("[schedule] campaign %s (%s): queued %d of %d", camp.ID, typ, queued, len(members))
	return queued, nil
}

// recordPartialTotal stores how many messages an interrupted expansion had
// already queued, so the campaign row matches its queue items.
func (s *Service) recordPartialTotal(ctx context.Context, campaignID string, queued int) {
	if err := s.deps.Queue.SetCampaignTotal(ctx, campaignID, queued); err != nil {
		log.Printf("[schedule] campaign %s: record partial total %d: %v", campaignID, queued, err)
	}
}

// expandDeadlineReminder mails every active member who has not answered,
// with yes / no / yes-plus-guest links carrying their RSVP token.
func (s *Service) expandDeadlineReminder(ctx context.Context, job *domain.ScheduledEmailJob) (int, error) {
	ev, err := s.loadEvent(ctx, job)
	if err != nil {
		return 0, err
	}
	members, err := s.deps.Directory.NonResponders(ctx, ev.ID)
	if err != nil {
		return 0, fmt.Errorf("load non-responders: %w", err)
	}

	expires := ev.TokenExpiry()
	return s.fanOut(ctx, "RSVP Reminder: "+ev.Title, domain.CampaignRSVPDeadlineReminder, members,
		func(m domain.Member) (string, string, error) {
			tok, err := s.deps.Tokens.Generate(ctx, m.ID, ev.ID, expires)
			if err != nil {
				return "", "", err
			}
			return s.deps.Renderer.DeadlineReminder(render.DeadlineReminder{
				MemberName:    m.Name,
				Event:         *ev,
				YesURL:        s.rsvpLink(tok.Token, domain.RSVPYes, false),
				NoURL:         s.rsvpLink(tok.Token, domain.RSVPNo, false),
				YesPlusOneURL: s.rsvpLink(tok.Token, domain.RSVPYes, true),
			})
		})
}

// expandAttendeeReminder mails members who answered yes, with a calendar
// link and no RSVP actions.
func (s *Service) expandAttendeeReminder(ctx context.Context, job *domain.ScheduledEmailJob) (int, error) {
	ev, err := s.loadEvent(ctx, job)
	if err != nil {
		return 0, err
	}
	members, err := s.deps.Directory.Attendees(ctx, ev.ID)
	if err != nil {
		return 0, fmt.Errorf("load attendees: %w", err)
	}

	calendarURL := ""
	if s.cfg.CalendarURL != nil {
		calendarURL = s.cfg.CalendarURL(ev.ID)
	}
	return s.fanOut(ctx, "Event Reminder: "+ev.Title, domain.CampaignEventAttendeeReminder, members,
		func(m domain.Member) (string, string, error) {
			return s.deps.Renderer.AttendeeReminder(render.AttendeeReminder{
				MemberName:  m.Name,
				Event:       *ev,
				CalendarURL: calendarURL,
			})
		})
}
