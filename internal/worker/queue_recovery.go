package worker

import (
	"context"
	"log"
	"time"

	"github.com/ignite/member-mailer/internal/metrics"
)

// =============================================================================
// RECOVERY WORKER
// =============================================================================
// A crash between claim and outcome leaves queue items in 'sending' and bulk
// jobs in 'processing'. Queue items past the stale age are marked failed,
// since the provider may already have accepted them. Bulk jobs go back to
// pending; their finished recipients are never sent again.

const (
	DefaultRecoveryInterval = 2 * time.Minute
	DefaultStaleAge         = 15 * time.Minute
)

// StaleQueue fails queue items stuck in sending.
type StaleQueue interface {
	FailStale(ctx context.Context, age time.Duration) (int64, error)
}

// StaleBulkJobs returns stuck processing jobs to pending.
type StaleBulkJobs interface {
	ResetStale(ctx context.Context, age time.Duration) (int64, error)
}

// RecoveryWorker periodically reclaims stuck work.
type RecoveryWorker struct {
	queue    StaleQueue
	bulk     StaleBulkJobs
	interval time.Duration
	staleAge time.Duration
}

// NewRecoveryWorker creates a recovery worker. Zero durations take the defaults.
func NewRecoveryWorker(queue StaleQueue, bulk StaleBulkJobs, interval, staleAge time.Duration) *RecoveryWorker {
	if interval <= 0 {
		interval = DefaultRecoveryInterval
	}
	if staleAge <= 0 {
		staleAge = DefaultStaleAge
	}
	return &RecoveryWorker{
		queue:    queue,
		bulk:     bulk,
		interval: interval,
		staleAge: staleAge,
	}
}

// Start runs recovery once, then every interval. It blocks until ctx is cancelled.
func (rw *RecoveryWorker) Start(ctx context.Context) {
	log.Printf("[Recovery] Starting (interval=%s, stale_age=%s)", rw.interval, rw.staleAge)

	rw.RunOnce(ctx)

	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Recovery] Stopping")
			return
		case <-ticker.C:
			rw.RunOnce(ctx)
		}
	}
}

// RunOnce performs one recovery pass and returns the rows touched.
func (rw *RecoveryWorker) RunOnce(ctx context.Context) (queueItems, bulkJobs int64) {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if rw.queue != nil {
		n, err := rw.queue.FailStale(queryCtx, rw.staleAge)
		if err != nil {
			log.Printf("[Recovery] queue error: %v", err)
		} else if n > 0 {
			queueItems = n
			metrics.Recovered.WithLabelValues("queue").Add(float64(n))
			log.Printf("[Recovery] failed %d queue items stuck in sending", n)
		}
	}

	if rw.bulk != nil {
		n, err := rw.bulk.ResetStale(queryCtx, rw.staleAge)
		if err != nil {
			log.Printf("[Recovery] bulk error: %v", err)
		} else if n > 0 {
			bulkJobs = n
			metrics.Recovered.WithLabelValues("bulk").Add(float64(n))
			log.Printf("[Recovery] returned %d stalled bulk jobs to pending", n)
		}
	}
	return queueItems, bulkJobs
}
