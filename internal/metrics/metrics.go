// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_emails_sent_total",
			Help: "Emails accepted by the provider, by loop",
		},
		[]string{"source"},
	)

	EmailFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_email_failures_total",
			Help: "Emails the provider rejected or errored on, by loop",
		},
		[]string{"source"},
	)

	QuotaRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailer_quota_remaining",
			Help: "Emails left in today's quota as of the last check",
		},
	)

	QuotaDeferrals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_quota_deferrals_total",
			Help: "Cycles that stopped early because the daily quota was exhausted",
		},
		[]string{"source"},
	)

	ScheduledJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_scheduled_jobs_total",
			Help: "Scheduled job runs by kind and result",
		},
		[]string{"kind", "result"},
	)

	BulkJobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_bulk_jobs_finished_total",
			Help: "Bulk jobs that reached a final status",
		},
		[]string{"status"},
	)

	Recovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_recovered_total",
			Help: "Stuck rows reset by the recovery worker",
		},
		[]string{"kind"},
	)

	RSVPClicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_rsvp_clicks_total",
			Help: "Email-link RSVP requests by outcome",
		},
		[]string{"outcome"},
	)

	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailer_cycle_duration_seconds",
			Help:    "Wall time of one worker cycle",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"loop"},
	)
)

var once sync.Once

// Init registers all collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			EmailsSent,
			EmailFailures,
			QuotaRemaining,
			QuotaDeferrals,
			ScheduledJobs,
			BulkJobsFinished,
			Recovered,
			RSVPClicks,
			CycleDuration,
		)
	})
}
