// Package render turns mailer data into email subjects, HTML bodies and the
// public RSVP result page using Liquid templates.
package render

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/osteele/liquid"

	"github.com/ignite/member-mailer/internal/domain"
)

const dateLayout = "Monday, January 2, 2006 at 3:04 PM"

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	engine  *liquid.Engine
	tpls    map[string]*liquid.Template
	orgName string
}

// New parses every template once. orgName is shown in footers and page titles.
func New(orgName string) (*Renderer, error) {
	engine := liquid.NewEngine()
	engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})
	engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	r := &Renderer{engine: engine, tpls: make(map[string]*liquid.Template, len(templates)), orgName: orgName}
	for name, src := range templates {
		tpl, err := engine.ParseString(src)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.tpls[name] = tpl
	}
	return r, nil
}

func (r *Renderer) render(name string, bindings map[string]interface{}) (string, error) {
	tpl, ok := r.tpls[name]
	if !ok {
		return "", fmt.Errorf("unknown template %s", name)
	}
	bindings["org_name"] = r.orgName
	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return out, nil
}

func (r *Renderer) message(name string, bindings map[string]interface{}) (subject, body string, err error) {
	subject, err = r.render(name+".subject", bindings)
	if err != nil {
		return "", "", err
	}
	body, err = r.render(name+".html", bindings)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(subject), body, nil
}

// DeadlineReminder is the data for an RSVP-deadline reminder.
type DeadlineReminder struct {
	MemberName    string
	Event         domain.Event
	YesURL        string
	NoURL         string
	YesPlusOneURL string
}

// DeadlineReminder renders the reminder sent to members who have not answered.
func (r *Renderer) DeadlineReminder(d DeadlineReminder) (subject, body string, err error) {
	b := eventBindings(d.Event)
	b["member_name"] = d.MemberName
	b["yes_url"] = d.YesURL
	b["no_url"] = d.NoURL
	b["yes_plus_one_url"] = d.YesPlusOneURL
	return r.message("deadline_reminder", b)
}

// AttendeeReminder is the data for the day-before reminder to members who said yes.
type AttendeeReminder struct {
	MemberName  string
	Event       domain.Event
	CalendarURL string
}

// AttendeeReminder renders the reminder sent to confirmed attendees.
func (r *Renderer) AttendeeReminder(d AttendeeReminder) (subject, body string, err error) {
	b := eventBindings(d.Event)
	b["member_name"] = d.MemberName
	b["calendar_url"] = d.CalendarURL
	return r.message("attendee_reminder", b)
}

// Confirmation is the data for the email acknowledging an RSVP click.
type Confirmation struct {
	MemberName string
	Event      domain.Event
	Response   domain.RSVPResponse
	PlusOne    bool
}

// Confirmation renders the RSVP confirmation email.
func (r *Renderer) Confirmation(d Confirmation) (subject, body string, err error) {
	b := eventBindings(d.Event)
	b["member_name"] = d.MemberName
	b["attending"] = d.Response == domain.RSVPYes
	b["plus_one"] = d.PlusOne && d.Response == domain.RSVPYes
	return r.message("rsvp_confirmation", b)
}

// PageOutcome selects the message shown on the public RSVP page.
type PageOutcome string

const (
	PageRecorded        PageOutcome = "recorded"
	PageInvalidResponse PageOutcome = "invalid_response"
	PageNotFound        PageOutcome = "not_found"
	PageAlreadyUsed     PageOutcome = "already_used"
	PageExpired         PageOutcome = "expired"
	PageError           PageOutcome = "error"
)

// Page is the data for the RSVP result page. Event is nil when the token
// could not be resolved.
type Page struct {
	Outcome  PageOutcome
	Event    *domain.Event
	Response domain.RSVPResponse
	PlusOne  bool
}

// RSVPPage renders the HTML page returned from an email-link click.
func (r *Renderer) RSVPPage(p Page) (string, error) {
	b := map[string]interface{}{
		"outcome":   string(p.Outcome),
		"attending": p.Response == domain.RSVPYes,
		"plus_one":  p.PlusOne && p.Response == domain.RSVPYes,
		"has_event": p.Event != nil,
	}
	if p.Event != nil {
		for k, v := range eventBindings(*p.Event) {
			b[k] = v
		}
	}
	return r.render("rsvp_page.html", b)
}

func eventBindings(e domain.Event) map[string]interface{} {
	b := map[string]interface{}{
		"event_title":    e.Title,
		"event_location": e.Location,
		"event_starts":   e.StartsAt.Format(dateLayout),
		"event_deadline": "",
	}
	if e.RSVPDeadline != nil {
		b["event_deadline"] = e.RSVPDeadline.Format(dateLayout)
	}
	return b
}

var (
	reBreak    = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>|</h[1-6]>|</tr>`)
	reTags     = regexp.MustCompile(`<[^>]*>`)
	reSpaces   = regexp.MustCompile(`[ \t\r\f\v]+`)
	reBlankRun = regexp.MustCompile(`\n{3,}`)
)

// PlainText derives a text body from HTML: block ends become line breaks,
// tags are stripped, entities are decoded and whitespace is trimmed.
func PlainText(htmlBody string) string {
	text := reBreak.ReplaceAllString(htmlBody, "\n")
	text = reTags.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(reSpaces.ReplaceAllString(l, " "))
	}
	text = strings.Join(lines, "\n")
	text = reBlankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// FormatTime renders t the way templates do. Used by callers that build
// campaign names.
func FormatTime(t time.Time) string { return t.Format(dateLayout) }
