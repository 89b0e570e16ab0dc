package schedule

import (
	"context"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/render"
	"github.com/ignite/member-mailer/internal/service/queue"
)

// Directory reads the membership data reminders are addressed from.
type Directory interface {
	GetEvent(ctx context.Context, id string) (*domain.Event, bool, error)
	// NonResponders returns active members with no RSVP row for the event.
	NonResponders(ctx context.Context, eventID string) ([]domain.Member, error)
	// Attendees returns members whose RSVP for the event is yes.
	Attendees(ctx context.Context, eventID string) ([]domain.Member, error)
}

// TokenIssuer issues (or re-issues) RSVP tokens.
type TokenIssuer interface {
	Generate(ctx context.Context, userID, eventID string, expiresAt time.Time) (*domain.RsvpToken, error)
}

// Enqueuer is the slice of the queue service expansion writes through.
type Enqueuer interface {
	Enqueue(ctx context.Context, in queue.EnqueueInput) (string, error)
	CreateCampaign(ctx context.Context, name string, typ domain.CampaignType) (*domain.EmailCampaign, error)
	SetCampaignTotal(ctx context.Context, id string, total int) error
}

// Renderer produces reminder subjects and bodies.
type Renderer interface {
	DeadlineReminder(d render.DeadlineReminder) (subject, body string, err error)
	AttendeeReminder(d render.AttendeeReminder) (subject, body string, err error)
}

// Deps bundles the collaborators used during expansion.
type Deps struct {
	Directory Directory
	Tokens    TokenIssuer
	Queue     Enqueuer
	Renderer  Renderer
}

// Config holds expansion settings.
type Config struct {
	// BatchSize caps due jobs per poll.
	BatchSize int
	// MaxFailures moves a job to failed after this many failed runs; 0 never does.
	MaxFailures int
	// PublicBaseURL prefixes RSVP action links.
	PublicBaseURL string
	// CalendarURL builds the calendar link for an event.
	CalendarURL func(eventID string) string
}
