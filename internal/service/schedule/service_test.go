package schedule_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/render"
	"github.com/ignite/member-mailer/internal/repository/memory"
	"github.com/ignite/member-mailer/internal/service/queue"
	"github.com/ignite/member-mailer/internal/service/schedule"
	"github.com/ignite/member-mailer/internal/service/token"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type harness struct {
	svc    *schedule.Service
	jobs   *memory.ScheduleRepo
	items  *memory.QueueRepo
	tokens *memory.TokenRepo
	dir    *memory.Directory
	clock  *time.Time
}

// brokenDirectory fails every recipient lookup.
type brokenDirectory struct{ *memory.Directory }

func (brokenDirectory) NonResponders(context.Context, string) ([]domain.Member, error) {
	return nil, errors.New("connection refused")
}

func newHarness(t *testing.T, maxFailures int, wrap func(*memory.Directory) schedule.Directory) *harness {
	t.Helper()
	h := &harness{
		jobs:   memory.NewScheduleRepo(),
		items:  memory.NewQueueRepo(),
		tokens: memory.NewTokenRepo(),
		dir:    memory.NewDirectory(),
	}
	now := t0
	h.clock = &now
	clock := func() time.Time { return *h.clock }

	qsvc := queue.NewService(h.items, h.items)
	qsvc.SetClock(clock)
	tsvc := token.NewService(h.tokens)
	tsvc.SetClock(clock)
	r, err := render.New("Ignite Club")
	require.NoError(t, err)

	var dir schedule.Directory = h.dir
	if wrap != nil {
		dir = wrap(h.dir)
	}
	h.svc = schedule.NewService(h.jobs, schedule.Deps{
		Directory: dir,
		Tokens:    tsvc,
		Queue:     qsvc,
		Renderer:  r,
	}, schedule.Config{
		BatchSize:     20,
		MaxFailures:   maxFailures,
		PublicBaseURL: "https://club.example.org/",
		CalendarURL:   func(id string) string { return "https://club.example.org/events/" + id + "/calendar.ics" },
	})
	h.svc.SetClock(clock)
	return h
}

func (h *harness) advance(d time.Duration) { *h.clock = h.clock.Add(d) }

func (h *harness) seedEvent(members int) domain.Event {
	deadline := t0.Add(72 * time.Hour)
	ev := domain.Event{ID: "ev-1", Title: "Spring Gala", Location: "Main Hall", StartsAt: t0.Add(96 * time.Hour), RSVPDeadline: &deadline}
	h.dir.AddEvent(ev)
	for i := 1; i <= members; i++ {
		h.dir.AddMember(domain.Member{ID: fmt.Sprintf("m-%02d", i), Email: fmt.Sprintf("member%02d@example.org", i), Name: fmt.Sprintf("Member %d", i)})
	}
	return ev
}

func TestDeadlineReminderFansOutToNonResponders(t *testing.T) {
	h := newHarness(t, 0, nil)
	ev := h.seedEvent(10)
	ctx := context.Background()

	job, err := h.svc.Create(ctx, schedule.CreateInput{JobType: string(domain.JobRSVPDeadlineReminder), EntityID: ev.ID, ScheduledFor: t0})
	require.NoError(t, err)
	assert.Equal(t, domain.EntityEvent, job.EntityType)

	stats, err := h.svc.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, schedule.RunStats{Due: 1, Succeeded: 1, Queued: 10}, stats)

	items := h.items.Items()
	require.Len(t, items, 10)
	tokens := h.tokens.Tokens()
	require.Len(t, tokens, 10)

	seen := map[string]bool{}
	for _, tok := range tokens {
		assert.False(t, seen[tok.Token], "token reused across members")
		seen[tok.Token] = true
		assert.Equal(t, *ev.RSVPDeadline, tok.ExpiresAt)
	}
	for _, it := range items {
		assert.Equal(t, "Please RSVP: Spring Gala", it.Subject)
		assert.Contains(t, it.HTMLBody, "https://club.example.org/rsvp/respond?token=")
		assert.Contains(t, it.HTMLBody, "plusOne=true")
		require.NotNil(t, it.CampaignID)
	}

	camps := h.items.Campaigns()
	require.Len(t, camps, 1)
	assert.Equal(t, 10, camps[0].TotalRecipients)
	assert.Equal(t, "RSVP Reminder: Spring Gala", camps[0].Name)
	assert.Equal(t, domain.CampaignRSVPDeadlineReminder, camps[0].Type)

	got, _ := h.svc.Get(ctx, job.ID)
	assert.Equal(t, domain.ScheduleCompleted, got.Status)
	assert.Equal(t, 1, got.RunCount)
	require.NotNil(t, got.LastRunDate)
}

func TestDeadlineReminderSkipsResponders(t *testing.T) {
	h := newHarness(t, 0, nil)
	ev := h.seedEvent(3)
	ctx := context.Background()
	require.NoError(t, h.dir.ApplyRSVP(ctx, "m-02", ev.ID, domain.RSVPNo, false))

	_, err := h.svc.Create(ctx, schedule.CreateInput{JobType: string(domain.JobRSVPDeadlineReminder), EntityID: ev.ID, ScheduledFor: t0})
	require.NoError(t, err)
	stats, err := h.svc.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Queued)
	for _, it := range h.items.Items() {
		assert.NotEqual(t, "member02@example.org", it.ToEmail)
	}
}

func TestAttendeeReminderHasCalendarLink(t *testing.T) {
	h := newHarness(t, 0, nil)
	ev := h.seedEvent(4)
	ctx := context.Background()
	require.NoError(t, h.dir.ApplyRSVP(ctx, "m-01", ev.ID, domain.RSVPYes, true))
	require.NoError(t, h.dir.ApplyRSVP(ctx, "m-03", ev.ID, domain.RSVPYes, false))
	require.NoError(t, h.dir.ApplyRSVP(ctx, "m-04", ev.ID, domain.RSVPNo, false))

	_, err := h.svc.Create(ctx, schedule.CreateInput{JobType: string(domain.JobEventAttendeeReminder), EntityID: ev.ID, ScheduledFor: t0})
	require.NoError(t, err)
	stats, err := h.svc.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Queued)

	items := h.items.Items()
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Contains(t, it.HTMLBody, "https://club.example.org/events/ev-1/calendar.ics")
		assert.NotContains(t, it.HTMLBody, "rsvp/respond")
	}
	assert.Empty(t, h.tokens.Tokens())
	assert.Equal(t, "Event Reminder: Spring Gala", h.items.Campaigns()[0].Name)
}

func TestWeeklyRecurrence(t *testing.T) {
	h := newHarness(t, 0, nil)
	ev := h.seedEvent(2)
	ctx := context.Background()

	job, err := h.svc.Create(ctx, schedule.CreateInput{
		JobType:        string(domain.JobRSVPDeadlineReminder),
		EntityID:       ev.ID,
		ScheduledFor:   t0,
		RecurrenceRule: domain.RecurWeekly,
	})
	require.NoError(t, err)

	_, err = h.svc.RunDue(ctx)
	require.NoError(t, err)
	got, _ := h.svc.Get(ctx, job.ID)
	assert.Equal(t, domain.ScheduleActive, got.Status)
	require.NotNil(t, got.NextRunDate)
	assert.Equal(t, t0.AddDate(0, 0, 7), *got.NextRunDate)

	h.advance(24 * time.Hour)
	stats, _ := h.svc.RunDue(ctx)
	assert.Equal(t, 0, stats.Due)

	h.advance(6 * 24 * time.Hour)
	stats, _ = h.svc.RunDue(ctx)
	assert.Equal(t, 1, stats.Due)
	got, _ = h.svc.Get(ctx, job.ID)
	assert.Equal(t, 2, got.RunCount)
	assert.Equal(t, t0.AddDate(0, 0, 14), *got.NextRunDate)
	assert.Len(t, h.items.Items(), 4)
}

func TestDailyRunReusesUnexpiredTokens(t *testing.T) {
	h := newHarness(t, 0, nil)
	ev := h.seedEvent(2)
	ctx := context.Background()
	_, err := h.svc.Create(ctx, schedule.CreateInput{
		JobType:        string(domain.JobRSVPDeadlineReminder),
		EntityID:       ev.ID,
		ScheduledFor:   t0,
		RecurrenceRule: domain.RecurDaily,
	})
	require.NoError(t, err)

	_, _ = h.svc.RunDue(ctx)
	h.advance(24 * time.Hour)
	stats, _ := h.svc.RunDue(ctx)
	assert.Equal(t, 2, stats.Queued)

	assert.Len(t, h.tokens.Tokens(), 2)
	assert.Len(t, h.items.Items(), 4)
	assert.Len(t, h.items.Campaigns(), 2)
}

func TestCreateDuplicateReturnsExisting(t *testing.T) {
	h := newHarness(t, 0, nil)
	ctx := context.Background()
	in := schedule.CreateInput{JobType: string(domain.JobEventAttendeeReminder), EntityID: "ev-9", ScheduledFor: t0}

	first, err := h.svc.Create(ctx, in)
	require.NoError(t, err)
	second, err := h.svc.Create(ctx, in)
	assert.ErrorIs(t, err, schedule.ErrDuplicateJob)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	_, total, _ := h.svc.List(ctx, schedule.ListFilter{})
	assert.Equal(t, 1, total)
}

func TestCreateAfterCompletionIsAllowed(t *testing.T) {
	h := newHarness(t, 0, nil)
	h.seedEvent(1)
	ctx := context.Background()
	in := schedule.CreateInput{JobType: string(domain.JobRSVPDeadlineReminder), EntityID: "ev-1", ScheduledFor: t0}

	_, err := h.svc.Create(ctx, in)
	require.NoError(t, err)
	_, _ = h.svc.RunDue(ctx)

	_, err = h.svc.Create(ctx, in)
	assert.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, 0, nil)
	_, err := h.svc.Create(context.Background(), schedule.CreateInput{JobType: "birthday_card", EntityID: "ev-1", ScheduledFor: t0})
	assert.Error(t, err)
	_, err = h.svc.Create(context.Background(), schedule.CreateInput{
		JobType: string(domain.JobRSVPDeadlineReminder), EntityID: "ev-1", ScheduledFor: t0, RecurrenceRule: "HOURLY",
	})
	assert.Error(t, err)
}

func TestUnknownJobTypeFallsBackToDeadlineReminder(t *testing.T) {
	h := newHarness(t, 0, nil)
	ev := h.seedEvent(3)
	h.jobs.Put(domain.ScheduledEmailJob{
		ID: "legacy-1", JobType: "rsvp_nudge", EntityType: domain.EntityEvent, EntityID: ev.ID,
		ScheduledFor: t0.Add(-time.Hour), Status: domain.ScheduleActive,
	})

	stats, err := h.svc.RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Queued)
	for _, it := range h.items.Items() {
		assert.True(t, strings.HasPrefix(it.Subject, "Please RSVP"))
	}
}

func TestMissingEventCompletesJob(t *testing.T) {
	h := newHarness(t, 0, nil)
	ctx := context.Background()
	job, err := h.svc.Create(ctx, schedule.CreateInput{JobType: string(domain.JobRSVPDeadlineReminder), EntityID: "deleted", ScheduledFor: t0})
	require.NoError(t, err)

	stats, err := h.svc.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 0, stats.Queued)

	got, _ := h.svc.Get(ctx, job.ID)
	assert.Equal(t, domain.ScheduleCompleted, got.Status)
	assert.Empty(t, h.items.Items())
	assert.Empty(t, h.items.Campaigns())
}

func TestFailureKeepsJobActive(t *testing.T) {
	h := newHarness(t, 0, func(d *memory.Directory) schedule.Directory { return brokenDirectory{d} })
	h.seedEvent(2)
	ctx := context.Background()
	job, _ := h.svc.Create(ctx, schedule.CreateInput{JobType: string(domain.JobRSVPDeadlineReminder), EntityID: "ev-1", ScheduledFor: t0})

	for i := 0; i < 3; i++ {
		stats, err := h.svc.RunDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Failed)
	}
	got, _ := h.svc.Get(ctx, job.ID)
	assert.Equal(t, domain.ScheduleActive, got.Status)
	assert.Equal(t, 3, got.FailureCount)
	assert.Equal(t, 3, got.RunCount)
	require.NotNil(t, got.LastRunDate)
	assert.Contains(t, got.LastError, "connection refused")
	assert.Nil(t, got.NextRunDate)
}

// flakyTokens fails every issue after the first okCalls.
type flakyTokens struct {
	schedule.TokenIssuer
	okCalls int
	calls   int
}

func (f *flakyTokens) Generate(ctx context.Context, userID, eventID string, expiresAt time.Time) (*domain.RsvpToken, error) {
	f.calls++
	if f.calls > f.okCalls {
		return nil, errors.New("token store unavailable")
	}
	return f.TokenIssuer.Generate(ctx, userID, eventID, expiresAt)
}

func TestInterruptedExpansionRecordsPartialCampaignTotal(t *testing.T) {
	h := newHarness(t, 0, nil)
	ev := h.seedEvent(5)
	ctx := context.Background()

	r, err := render.New("Ignite Club")
	require.NoError(t, err)
	qsvc := queue.NewService(h.items, h.items)
	svc := schedule.NewService(h.jobs, schedule.Deps{
		Directory: h.dir,
		Tokens:    &flakyTokens{TokenIssuer: token.NewService(h.tokens), okCalls: 2},
		Queue:     qsvc,
		Renderer:  r,
	}, schedule.Config{PublicBaseURL: "https://club.example.org"})
	svc.SetClock(func() time.Time { return *h.clock })

	_, err = svc.Create(ctx, schedule.CreateInput{JobType: string(domain.JobRSVPDeadlineReminder), EntityID: ev.ID, ScheduledFor: t0})
	require.NoError(t, err)

	stats, err := svc.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	assert.Len(t, h.items.Items(), 2)
	campaigns := h.items.Campaigns()
	require.Len(t, campaigns, 1)
	assert.Equal(t, 2, campaigns[0].TotalRecipients)
}

func TestMaxFailuresMarksJobFailed(t *testing.T) {
	h := newHarness(t, 2, func(d *memory.Directory) schedule.Directory { return brokenDirectory{d} })
	h.seedEvent(2)
	ctx := context.Background()
	job, _ := h.svc.Create(ctx, schedule.CreateInput{JobType: string(domain.JobRSVPDeadlineReminder), EntityID: "ev-1", ScheduledFor: t0})

	_, _ = h.svc.RunDue(ctx)
	got, _ := h.svc.Get(ctx, job.ID)
	assert.Equal(t, domain.ScheduleActive, got.Status)

	_, _ = h.svc.RunDue(ctx)
	got, _ = h.svc.Get(ctx, job.ID)
	assert.Equal(t, domain.ScheduleFailed, got.Status)

	stats, _ := h.svc.RunDue(ctx)
	assert.Equal(t, 0, stats.Due)
}

func TestScheduleEventReminders(t *testing.T) {
	h := newHarness(t, 0, nil)
	ev := h.seedEvent(0)
	ctx := context.Background()

	jobs, err := h.svc.ScheduleEventReminders(ctx, &ev)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, string(domain.JobRSVPDeadlineReminder), jobs[0].JobType)
	assert.Equal(t, t0.Add(24*time.Hour), jobs[0].ScheduledFor)
	assert.Equal(t, string(domain.JobEventAttendeeReminder), jobs[1].JobType)
	assert.Equal(t, t0.Add(72*time.Hour), jobs[1].ScheduledFor)

	again, err := h.svc.ScheduleEventReminders(ctx, &ev)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestScheduleEventRemindersClampsAndSkips(t *testing.T) {
	h := newHarness(t, 0, nil)
	passed := t0.Add(-time.Hour)
	ev := domain.Event{ID: "ev-2", Title: "Quiz Night", StartsAt: t0.Add(12 * time.Hour), RSVPDeadline: &passed}

	jobs, err := h.svc.ScheduleEventReminders(context.Background(), &ev)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, string(domain.JobEventAttendeeReminder), jobs[0].JobType)
	assert.Equal(t, t0, jobs[0].ScheduledFor)
}
