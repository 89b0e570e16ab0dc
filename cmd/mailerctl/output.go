package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
)

const timeLayout = "2006-01-02 15:04 MST"

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func printQuota(w io.Writer, q *domain.EmailQuota) {
	fmt.Fprintf(w, "date:      %s\n", q.Date.Format("2006-01-02"))
	fmt.Fprintf(w, "sent:      %d\n", q.EmailsSent)
	fmt.Fprintf(w, "limit:     %d\n", q.QuotaLimit)
	fmt.Fprintf(w, "remaining: %d\n", q.Remaining())
}

func printJobs(w io.Writer, jobs []domain.EmailJob, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSUBJECT\tSENT\tFAILED\tTOTAL\tCREATED")
	for _, j := range jobs {
		created := j.CreatedAt
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			j.ID, j.Status, truncate(j.Subject, 40), j.SuccessCount, j.FailedCount, j.TotalRecipients, formatTime(&created))
	}
	tw.Flush()
	fmt.Fprintf(w, "%d of %d jobs\n", len(jobs), total)
}

func printJob(w io.Writer, j *domain.EmailJob, failed []domain.EmailJobRecipient) {
	fmt.Fprintf(w, "id:         %s\n", j.ID)
	fmt.Fprintf(w, "status:     %s\n", j.Status)
	fmt.Fprintf(w, "subject:    %s\n", j.Subject)
	fmt.Fprintf(w, "created by: %s\n", j.CreatedBy)
	fmt.Fprintf(w, "progress:   %d/%d (%d sent, %d failed)\n", j.ProcessedCount, j.TotalRecipients, j.SuccessCount, j.FailedCount)
	fmt.Fprintf(w, "scheduled:  %s\n", formatTime(j.ScheduledFor))
	fmt.Fprintf(w, "started:    %s\n", formatTime(j.StartedAt))
	fmt.Fprintf(w, "completed:  %s\n", formatTime(j.CompletedAt))
	if len(failed) == 0 {
		return
	}
	fmt.Fprintln(w, "failed recipients:")
	for _, r := range failed {
		fmt.Fprintf(w, "  %s: %s\n", r.Email, r.ErrorMessage)
	}
}

func printScheduled(w io.Writer, jobs []domain.ScheduledEmailJob, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tENTITY\tSTATUS\tDUE\tRUNS\tFAILURES\tLAST ERROR")
	for _, j := range jobs {
		due := j.DueAt()
		fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%s\t%s\t%d\t%d\t%s\n",
			j.ID, j.JobType, j.EntityType, j.EntityID, j.Status, formatTime(&due), j.RunCount, j.FailureCount, truncate(j.LastError, 40))
	}
	tw.Flush()
	fmt.Fprintf(w, "%d of %d scheduled jobs\n", len(jobs), total)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
