package rsvp_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/render"
	"github.com/ignite/member-mailer/internal/repository/memory"
	"github.com/ignite/member-mailer/internal/service/queue"
	"github.com/ignite/member-mailer/internal/service/rsvp"
	"github.com/ignite/member-mailer/internal/service/token"
)

var t0 = time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC)

type harness struct {
	svc    *rsvp.Service
	tokens *token.Service
	items  *memory.QueueRepo
	dir    *memory.Directory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{items: memory.NewQueueRepo(), dir: memory.NewDirectory()}
	clock := func() time.Time { return t0 }

	h.tokens = token.NewService(memory.NewTokenRepo())
	h.tokens.SetClock(clock)
	q := queue.NewService(h.items, h.items)
	q.SetClock(clock)
	r, err := render.New("Ignite Club")
	require.NoError(t, err)
	h.svc = rsvp.NewService(h.dir, h.tokens, q, r, 5)

	h.dir.AddEvent(domain.Event{ID: "ev-1", Title: "Harvest Supper", Location: "Barn", StartsAt: t0.Add(72 * time.Hour)})
	h.dir.AddMember(domain.Member{ID: "m-1", Email: "rosa@example.org", Name: "Rosa"})
	return h
}

func (h *harness) issue(t *testing.T, expires time.Time) string {
	t.Helper()
	tok, err := h.tokens.Generate(context.Background(), "m-1", "ev-1", expires)
	require.NoError(t, err)
	return tok.Token
}

func TestRespondYesWithGuest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tok := h.issue(t, t0.Add(time.Hour))

	status, page := h.svc.Respond(ctx, tok, "yes", true)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "Harvest Supper")

	got, ok := h.dir.RSVPFor("m-1", "ev-1")
	require.True(t, ok)
	assert.Equal(t, domain.RSVPYes, got.Response)
	assert.True(t, got.PlusOne)

	items := h.items.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "rosa@example.org", items[0].ToEmail)
	assert.Equal(t, 5, items[0].Priority)
	assert.Equal(t, "You're going to Harvest Supper", items[0].Subject)
}

func TestRespondNoDropsGuest(t *testing.T) {
	h := newHarness(t)
	tok := h.issue(t, t0.Add(time.Hour))

	status, _ := h.svc.Respond(context.Background(), tok, "no", true)
	assert.Equal(t, http.StatusOK, status)
	got, _ := h.dir.RSVPFor("m-1", "ev-1")
	assert.Equal(t, domain.RSVPNo, got.Response)
	assert.False(t, got.PlusOne)
}

func TestRespondTokenIsSingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tok := h.issue(t, t0.Add(time.Hour))

	status, _ := h.svc.Respond(ctx, tok, "yes", false)
	require.Equal(t, http.StatusOK, status)

	status, page := h.svc.Respond(ctx, tok, "no", false)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, page, "Harvest Supper")

	got, _ := h.dir.RSVPFor("m-1", "ev-1")
	assert.Equal(t, domain.RSVPYes, got.Response, "second click must not overwrite")
	assert.Len(t, h.items.Items(), 1)
}

func TestRespondErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	expired := h.issue(t, t0.Add(-time.Minute))

	cases := []struct {
		name   string
		token  string
		resp   string
		status int
	}{
		{"bad response", "whatever", "maybe", http.StatusBadRequest},
		{"empty token", "", "yes", http.StatusNotFound},
		{"unknown token", "not-a-token", "yes", http.StatusNotFound},
		{"expired", expired, "yes", http.StatusGone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, page := h.svc.Respond(ctx, tc.token, tc.resp, false)
			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, page)
		})
	}

	_, ok := h.dir.RSVPFor("m-1", "ev-1")
	assert.False(t, ok)
	assert.Empty(t, h.items.Items())
}

func TestRespondWithoutMemberStillRecords(t *testing.T) {
	h := newHarness(t)
	tok, err := h.tokens.Generate(context.Background(), "gone", "ev-1", t0.Add(time.Hour))
	require.NoError(t, err)

	status, _ := h.svc.Respond(context.Background(), tok.Token, "yes", false)
	assert.Equal(t, http.StatusOK, status)
	_, ok := h.dir.RSVPFor("gone", "ev-1")
	assert.True(t, ok)
	assert.Empty(t, h.items.Items(), "no confirmation without a member")
}
