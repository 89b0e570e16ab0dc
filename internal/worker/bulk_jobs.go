package worker

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
	"github.com/ignite/member-mailer/internal/metrics"
	"github.com/ignite/member-mailer/internal/pkg/distlock"
	"github.com/ignite/member-mailer/internal/pkg/logger"
	"github.com/ignite/member-mailer/internal/provider"
	"github.com/ignite/member-mailer/internal/render"
)

// =============================================================================
// BULK JOB WORKER
// =============================================================================
// Processes one pending bulk job per cycle, oldest first. The job's status
// is re-read before every recipient so pause and cancel take effect at the
// next recipient boundary.

const (
	DefaultBulkPollInterval = 30 * time.Second

	bulkLockKey = "mailer:bulk-jobs"
)

// BulkJobConfig tunes the bulk loop.
type BulkJobConfig struct {
	PollInterval time.Duration
	MessageDelay time.Duration
	// LockTTL is the lease a renewable cycle lock is pushed out to once half
	// of it has elapsed. Zero disables renewal.
	LockTTL time.Duration
}

// extender is implemented by locks whose lease can be renewed mid-cycle.
type extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// BulkResult summarises one cycle.
type BulkResult struct {
	JobID    string
	Sent     int
	Failed   int
	Deferred bool
	Stopped  bool
	Final    domain.BulkJobStatus
}

// BulkJobWorker drives bulk jobs through their recipients.
type BulkJobWorker struct {
	jobs   BulkJobs
	quota  Quota
	sender provider.Sender
	cfg    BulkJobConfig
	lock   distlock.DistLock
	log    *logger.Logger

	jobsDone int64
	sent     int64
	failed   int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewBulkJobWorker creates a bulk worker. Zero config values take the
// package defaults.
func NewBulkJobWorker(jobs BulkJobs, quota Quota, sender provider.Sender, cfg BulkJobConfig) *BulkJobWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultBulkPollInterval
	}
	if cfg.MessageDelay < 0 {
		cfg.MessageDelay = 0
	}
	return &BulkJobWorker{
		jobs:   jobs,
		quota:  quota,
		sender: sender,
		cfg:    cfg,
		lock:   distlock.Noop{},
		log:    logger.Named("bulk"),
	}
}

// SetLock guards every cycle with l.
func (w *BulkJobWorker) SetLock(l distlock.DistLock) {
	if l == nil {
		l = distlock.Noop{}
	}
	w.lock = l
}

// LockKey is the key cycles lock on when a lock is configured.
func (w *BulkJobWorker) LockKey() string { return bulkLockKey }

// Start begins the polling loop.
func (w *BulkJobWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("bulk job worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())

	log.Printf("[BulkJobs] Starting (interval=%s, delay=%s)", w.cfg.PollInterval, w.cfg.MessageDelay)
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop cancels the loop. A job interrupted mid-way stays processing until
// recovery returns it to pending.
func (w *BulkJobWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	log.Printf("[BulkJobs] Stopped. Jobs finished: %d, Sent: %d, Failed: %d",
		atomic.LoadInt64(&w.jobsDone), atomic.LoadInt64(&w.sent), atomic.LoadInt64(&w.failed))
}

func (w *BulkJobWorker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunCycle(w.ctx); err != nil {
				log.Printf("[BulkJobs] cycle error: %v", err)
			}
		}
	}
}

// RunCycle processes at most one job under the cycle lock.
func (w *BulkJobWorker) RunCycle(ctx context.Context) (BulkResult, error) {
	var res BulkResult
	started := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("bulk").Observe(time.Since(started).Seconds())
	}()

	_, err := distlock.Guard(ctx, w.lock, func(ctx context.Context) error {
		var err error
		res, err = w.cycle(ctx)
		return err
	})
	return res, err
}

func (w *BulkJobWorker) cycle(ctx context.Context) (BulkResult, error) {
	var res BulkResult

	job, err := w.jobs.NextPending(ctx)
	if err != nil {
		return res, fmt.Errorf("next pending job: %w", err)
	}
	if job == nil {
		return res, nil
	}
	res.JobID = job.ID

	remaining, err := w.quota.Remaining(ctx)
	if err != nil {
		return res, fmt.Errorf("check quota: %w", err)
	}
	metrics.QuotaRemaining.Set(float64(remaining))
	if remaining < job.Pending() {
		res.Deferred = true
		metrics.QuotaDeferrals.WithLabelValues("bulk").Inc()
		w.log.Info("bulk job deferred, quota too low", "job_id", job.ID, "pending", job.Pending(), "remaining", remaining)
		return res, nil
	}

	started, err := w.jobs.Start(ctx, job.ID)
	if err != nil {
		return res, fmt.Errorf("start job %s: %w", job.ID, err)
	}
	if !started {
		// Paused or cancelled between the read and the start.
		return res, nil
	}
	w.log.Info("bulk job started", "job_id", job.ID, "recipients", job.TotalRecipients)

	recipients, err := w.jobs.PendingRecipients(ctx, job.ID, domain.MaxBulkRecipients)
	if err != nil {
		return res, fmt.Errorf("load recipients: %w", err)
	}

	htmlBody, textBody := bulkBodies(job)
	limiter := newPacer(w.cfg.MessageDelay)
	renewed := time.Now()

	for _, r := range recipients {
		if ctx.Err() != nil {
			res.Stopped = true
			return res, nil
		}
		status, err := w.jobs.Status(ctx, job.ID)
		if err != nil {
			return res, fmt.Errorf("reload job status: %w", err)
		}
		if status != domain.BulkProcessing {
			w.log.Info("bulk job interrupted", "job_id", job.ID, "status", string(status))
			res.Stopped = true
			return res, nil
		}
		if err := limiter.Wait(ctx); err != nil {
			res.Stopped = true
			return res, nil
		}

		sent, err := w.deliver(ctx, job, r, htmlBody, textBody)
		if err != nil {
			return res, err
		}
		if sent {
			res.Sent++
		} else {
			res.Failed++
		}
		renewed = w.renewLock(ctx, job.ID, renewed)
	}

	final, finished, err := w.jobs.Finish(ctx, job.ID)
	if err != nil {
		return res, fmt.Errorf("finish job %s: %w", job.ID, err)
	}
	if finished {
		res.Final = final
		atomic.AddInt64(&w.jobsDone, 1)
		metrics.BulkJobsFinished.WithLabelValues(string(final)).Inc()
		w.log.Info("bulk job finished", "job_id", job.ID, "status", string(final), "sent", res.Sent, "failed", res.Failed)
	}
	return res, nil
}

// deliver sends to one recipient and records the outcome. The send and the
// record run on a detached context so a shutdown mid-send still stores what
// the provider answered.
func (w *BulkJobWorker) deliver(parent context.Context, job *domain.EmailJob, r domain.EmailJobRecipient, htmlBody, textBody string) (bool, error) {
	ctx, cancel := inFlight(parent)
	defer cancel()

	ok, sendErr := w.sender.Send(ctx, provider.Message{
		To:      r.Email,
		Subject: job.Subject,
		HTML:    htmlBody,
		Text:    textBody,
	})
	errMsg := ""
	if sendErr != nil || !ok {
		errMsg = DeliveryFailedMessage
		if sendErr != nil {
			errMsg = sendErr.Error()
		}
		atomic.AddInt64(&w.failed, 1)
		metrics.EmailFailures.WithLabelValues("bulk").Inc()
	} else {
		atomic.AddInt64(&w.sent, 1)
		metrics.EmailsSent.WithLabelValues("bulk").Inc()
		if err := w.quota.RecordSent(ctx, 1); err != nil {
			log.Printf("[BulkJobs] record quota: %v", err)
		}
	}
	if err := w.jobs.RecordRecipient(ctx, job.ID, r.ID, errMsg == "", errMsg); err != nil {
		return false, fmt.Errorf("record recipient %s: %w", r.ID, err)
	}
	return errMsg == "", nil
}

// renewLock extends the cycle lock once half its lease has passed and
// returns the time of the last renewal. A lost lease is only logged: the job
// is already processing, so no other worker will pick it up.
func (w *BulkJobWorker) renewLock(ctx context.Context, jobID string, last time.Time) time.Time {
	ext, ok := w.lock.(extender)
	if !ok || w.cfg.LockTTL <= 0 || time.Since(last) < w.cfg.LockTTL/2 {
		return last
	}
	if err := ext.Extend(ctx, w.cfg.LockTTL); err != nil {
		w.log.Warn("bulk lock renewal failed", "job_id", jobID, "error", err)
		return last
	}
	return time.Now()
}

// bulkBodies returns the HTML and text parts for a job. Plain text bodies
// are escaped into a pre-wrapped block.
func bulkBodies(job *domain.EmailJob) (htmlBody, textBody string) {
	if job.IsHTML {
		return job.Body, render.PlainText(job.Body)
	}
	escaped := strings.ReplaceAll(html.EscapeString(job.Body), "\n", "<br>\n")
	return "<div style=\"white-space:pre-wrap\">" + escaped + "</div>", job.Body
}
