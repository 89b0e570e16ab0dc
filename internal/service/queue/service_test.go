package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/pkg/validation"
	"github.com/ignite/member-mailer/internal/repository/memory"
	"github.com/ignite/member-mailer/internal/service/queue"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newService() (*queue.Service, *memory.QueueRepo) {
	repo := memory.NewQueueRepo()
	svc := queue.NewService(repo, repo)
	svc.SetClock(func() time.Time { return t0 })
	return svc, repo
}

func TestEnqueueDefaults(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	id, err := svc.Enqueue(ctx, queue.EnqueueInput{To: " ana@example.org ", Subject: "Hi", HTML: "<p>Hi</p>"})
	require.NoError(t, err)

	item, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.org", item.ToEmail)
	assert.Equal(t, domain.EmailPending, item.Status)
	assert.Equal(t, domain.DefaultPriority, item.Priority)
	assert.Nil(t, item.CampaignID)
}

func TestEnqueueKeepsExplicitPriority(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	cases := []struct {
		name     string
		priority *int
		want     int
	}{
		{"omitted", nil, domain.DefaultPriority},
		{"zero", queue.PriorityOf(0), 0},
		{"negative", queue.PriorityOf(-5), -5},
		{"large", queue.PriorityOf(1000), 1000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := svc.Enqueue(ctx, queue.EnqueueInput{To: "a@example.org", Subject: "s", HTML: "h", Priority: tc.priority})
			require.NoError(t, err)
			item, err := svc.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tc.want, item.Priority)
		})
	}
}

func TestDueRanksNegativePriorityLast(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	bulk, _ := svc.Enqueue(ctx, queue.EnqueueInput{To: "a@example.org", Subject: "s", HTML: "h", Priority: queue.PriorityOf(-1)})
	svc.SetClock(func() time.Time { return t0.Add(time.Second) })
	zero, _ := svc.Enqueue(ctx, queue.EnqueueInput{To: "b@example.org", Subject: "s", HTML: "h", Priority: queue.PriorityOf(0)})
	normal, _ := svc.Enqueue(ctx, queue.EnqueueInput{To: "c@example.org", Subject: "s", HTML: "h"})

	due, err := svc.Due(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, []string{normal, zero, bulk}, []string{due[0].ID, due[1].ID, due[2].ID})
}

func TestEnqueueFutureIsScheduled(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	later := t0.Add(time.Hour)

	id, err := svc.Enqueue(ctx, queue.EnqueueInput{To: "a@example.org", Subject: "s", HTML: "h", ScheduledFor: &later})
	require.NoError(t, err)
	item, _ := svc.Get(ctx, id)
	assert.Equal(t, domain.EmailScheduled, item.Status)

	due, err := svc.Due(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	svc.SetClock(func() time.Time { return later })
	due, err = svc.Due(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestEnqueueValidation(t *testing.T) {
	svc, repo := newService()
	_, err := svc.Enqueue(context.Background(), queue.EnqueueInput{To: "not-an-address", Subject: "", HTML: "h"})

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "to")
	assert.Contains(t, verr.Fields, "subject")
	assert.Empty(t, repo.Items())
}

func TestDueOrdersByPriorityThenAge(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	low, _ := svc.Enqueue(ctx, queue.EnqueueInput{To: "a@example.org", Subject: "s", HTML: "h"})
	svc.SetClock(func() time.Time { return t0.Add(time.Second) })
	high, _ := svc.Enqueue(ctx, queue.EnqueueInput{To: "b@example.org", Subject: "s", HTML: "h", Priority: queue.PriorityOf(5)})
	low2, _ := svc.Enqueue(ctx, queue.EnqueueInput{To: "c@example.org", Subject: "s", HTML: "h"})

	due, err := svc.Due(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, []string{high, low, low2}, []string{due[0].ID, due[1].ID, due[2].ID})

	due, _ = svc.Due(ctx, 2)
	assert.Len(t, due, 2)
}

func TestClaimIsExclusive(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	id, _ := svc.Enqueue(ctx, queue.EnqueueInput{To: "a@example.org", Subject: "s", HTML: "h"})

	ok, err := svc.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "second claim should lose")

	require.NoError(t, svc.MarkSent(ctx, id))
	item, _ := svc.Get(ctx, id)
	assert.Equal(t, domain.EmailSent, item.Status)
	require.NotNil(t, item.SentAt)
}

func TestMarkFailedKeepsMessage(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	id, _ := svc.Enqueue(ctx, queue.EnqueueInput{To: "a@example.org", Subject: "s", HTML: "h"})
	_, _ = svc.Claim(ctx, id)

	require.NoError(t, svc.MarkFailed(ctx, id, "mailbox unavailable"))
	item, _ := svc.Get(ctx, id)
	assert.Equal(t, domain.EmailFailed, item.Status)
	assert.Equal(t, "mailbox unavailable", item.ErrorMessage)

	due, _ := svc.Due(ctx, 10)
	assert.Empty(t, due, "failed items are not retried")
}

func TestCampaignTotal(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	c, err := svc.CreateCampaign(ctx, "RSVP Reminder: Gala", domain.CampaignRSVPDeadlineReminder)
	require.NoError(t, err)
	assert.Equal(t, 0, c.TotalRecipients)
	assert.Equal(t, domain.CampaignQueued, c.Status)

	require.NoError(t, svc.SetCampaignTotal(ctx, c.ID, 7))
	got, err := svc.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.TotalRecipients)

	_, err = svc.GetCampaign(ctx, "missing")
	assert.ErrorIs(t, err, queue.ErrCampaignNotFound)
}

func TestListFilters(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	c, _ := svc.CreateCampaign(ctx, "c", domain.CampaignManual)

	_, _ = svc.Enqueue(ctx, queue.EnqueueInput{To: "a@example.org", Subject: "s", HTML: "h", CampaignID: c.ID})
	_, _ = svc.Enqueue(ctx, queue.EnqueueInput{To: "b@example.org", Subject: "s", HTML: "h"})

	items, total, err := svc.List(ctx, queue.ListFilter{CampaignID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "a@example.org", items[0].ToEmail)

	_, total, _ = svc.List(ctx, queue.ListFilter{Status: string(domain.EmailPending), Limit: 1})
	assert.Equal(t, 2, total)
}

func TestGetMissing(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestFailStale(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	stuck, _ := svc.Enqueue(ctx, queue.EnqueueInput{To: "a@example.org", Subject: "s", HTML: "h"})
	waiting, _ := svc.Enqueue(ctx, queue.EnqueueInput{To: "b@example.org", Subject: "s", HTML: "h"})
	_, _ = svc.Claim(ctx, stuck)

	svc.SetClock(func() time.Time { return t0.Add(time.Hour) })
	n, err := svc.FailStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	item, _ := svc.Get(ctx, stuck)
	assert.Equal(t, domain.EmailFailed, item.Status)
	assert.Equal(t, queue.InterruptedMessage, item.ErrorMessage)

	item, _ = svc.Get(ctx, waiting)
	assert.Equal(t, domain.EmailPending, item.Status)
}
