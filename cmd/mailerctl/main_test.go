package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/member-mailer/internal/domain"
)

func TestCommandTree(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{
		{"quota"},
		{"jobs", "list"},
		{"jobs", "show"},
		{"jobs", "cancel"},
		{"jobs", "pause"},
		{"jobs", "resume"},
		{"scheduled", "list"},
		{"migrate"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestJobActionRequiresID(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"jobs", "cancel"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestPrintQuota(t *testing.T) {
	var buf bytes.Buffer
	printQuota(&buf, &domain.EmailQuota{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), EmailsSent: 120, QuotaLimit: 300})
	out := buf.String()
	assert.Contains(t, out, "2026-03-02")
	assert.Contains(t, out, "remaining: 180")
}

func TestPrintJobs(t *testing.T) {
	var buf bytes.Buffer
	printJobs(&buf, []domain.EmailJob{
		{ID: "job-1", Status: domain.BulkProcessing, Subject: "Spring newsletter", SuccessCount: 3, FailedCount: 1, TotalRecipients: 10, CreatedAt: time.Now()},
	}, 4)
	out := buf.String()
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "processing")
	assert.Contains(t, out, "1 of 4 jobs")
}

func TestPrintJobListsFailures(t *testing.T) {
	var buf bytes.Buffer
	printJob(&buf, &domain.EmailJob{ID: "job-2", Status: domain.BulkCompleted, TotalRecipients: 2, ProcessedCount: 2, SuccessCount: 1, FailedCount: 1},
		[]domain.EmailJobRecipient{{Email: "x@example.org", ErrorMessage: "mailbox full"}})
	out := buf.String()
	assert.Contains(t, out, "progress:   2/2 (1 sent, 1 failed)")
	assert.Contains(t, out, "x@example.org: mailbox full")
	assert.Contains(t, out, "started:    -")
}

func TestPrintScheduled(t *testing.T) {
	var buf bytes.Buffer
	printScheduled(&buf, []domain.ScheduledEmailJob{{
		ID: "s-1", JobType: "rsvp_deadline_reminder", EntityType: "event", EntityID: "ev-1",
		Status: domain.ScheduleActive, ScheduledFor: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), FailureCount: 2, LastError: "connection refused",
	}}, 1)
	out := buf.String()
	assert.Contains(t, out, "event/ev-1")
	assert.Contains(t, out, "2026-03-02 09:00 UTC")
	assert.Contains(t, out, "connection refused")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
