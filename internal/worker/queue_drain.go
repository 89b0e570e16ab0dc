package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ignite/member-mailer/internal/metrics"
	"github.com/ignite/member-mailer/internal/pkg/distlock"
	"github.com/ignite/member-mailer/internal/pkg/logger"
	"github.com/ignite/member-mailer/internal/provider"
	"github.com/ignite/member-mailer/internal/render"
	"github.com/ignite/member-mailer/internal/service/schedule"
)

// =============================================================================
// QUEUE DRAIN WORKER
// =============================================================================
// Each cycle first expands due scheduled jobs into the queue, then drains up
// to BatchSize due items in priority order. Items are claimed one at a time
// with a conditional update, so a second process draining the same table
// skips whatever the first one took.

const (
	DefaultDrainPollInterval = 10 * time.Second
	DefaultDrainBatchSize    = 50

	// DeliveryFailedMessage is recorded when the provider refuses a message
	// without an error of its own.
	DeliveryFailedMessage = "email provider reported a delivery failure"

	drainLockKey = "mailer:queue-drain"
)

// QueueDrainConfig tunes the drain loop.
type QueueDrainConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MessageDelay time.Duration
}

// DrainResult summarises one cycle.
type DrainResult struct {
	Expanded schedule.RunStats
	Sent     int
	Failed   int
	Skipped  int
	Deferred bool
}

// QueueDrainWorker runs the expansion-then-drain cycle on a ticker.
type QueueDrainWorker struct {
	expander Expander
	queue    Queue
	quota    Quota
	sender   provider.Sender
	cfg      QueueDrainConfig
	lock     distlock.DistLock

	// Stats
	cycles int64
	sent   int64
	failed int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewQueueDrainWorker creates a drain worker. Zero config values take the
// package defaults.
func NewQueueDrainWorker(expander Expander, q Queue, quota Quota, sender provider.Sender, cfg QueueDrainConfig) *QueueDrainWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultDrainPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultDrainBatchSize
	}
	if cfg.MessageDelay < 0 {
		cfg.MessageDelay = 0
	}
	return &QueueDrainWorker{
		expander: expander,
		queue:    q,
		quota:    quota,
		sender:   sender,
		cfg:      cfg,
		lock:     distlock.Noop{},
	}
}

// SetLock guards every cycle with l. Without it cycles run unguarded.
func (w *QueueDrainWorker) SetLock(l distlock.DistLock) {
	if l == nil {
		l = distlock.Noop{}
	}
	w.lock = l
}

// LockKey is the key cycles lock on when a lock is configured.
func (w *QueueDrainWorker) LockKey() string { return drainLockKey }

// Start begins the polling loop.
func (w *QueueDrainWorker) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("queue drain worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	log.Printf("[QueueDrain] Starting (interval=%s, batch=%d, delay=%s, provider=%s)",
		w.cfg.PollInterval, w.cfg.BatchSize, w.cfg.MessageDelay, w.sender.Name())

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop cancels the loop and waits for the current cycle to return.
func (w *QueueDrainWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	log.Printf("[QueueDrain] Stopping...")
	w.cancel()
	w.wg.Wait()
	log.Printf("[QueueDrain] Stopped. Cycles: %d, Sent: %d, Failed: %d",
		atomic.LoadInt64(&w.cycles), atomic.LoadInt64(&w.sent), atomic.LoadInt64(&w.failed))
}

func (w *QueueDrainWorker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunCycle(w.ctx); err != nil {
				log.Printf("[QueueDrain] cycle error: %v", err)
			}
		}
	}
}

// RunCycle runs one guarded cycle. It returns a zero result when another
// process holds the cycle lock.
func (w *QueueDrainWorker) RunCycle(ctx context.Context) (DrainResult, error) {
	var res DrainResult
	started := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("queue").Observe(time.Since(started).Seconds())
	}()

	ran, err := distlock.Guard(ctx, w.lock, func(ctx context.Context) error {
		var err error
		res, err = w.cycle(ctx)
		return err
	})
	if err != nil {
		return res, err
	}
	if !ran {
		logger.Debug("queue drain skipped, lock held elsewhere", "lock", drainLockKey)
	}
	atomic.AddInt64(&w.cycles, 1)
	return res, nil
}

func (w *QueueDrainWorker) cycle(ctx context.Context) (DrainResult, error) {
	var res DrainResult

	stats, err := w.expander.RunDue(ctx)
	if err != nil {
		log.Printf("[QueueDrain] scheduled job expansion failed: %v", err)
	}
	res.Expanded = stats
	if stats.Due > 0 {
		log.Printf("[QueueDrain] expanded %d scheduled jobs (%d ok, %d failed, %d queued)",
			stats.Due, stats.Succeeded, stats.Failed, stats.Queued)
	}

	items, err := w.queue.Due(ctx, w.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("load due items: %w", err)
	}
	if len(items) == 0 {
		return res, nil
	}

	limiter := newPacer(w.cfg.MessageDelay)
	for i := range items {
		item := &items[i]
		if ctx.Err() != nil {
			break
		}

		ok, err := w.quota.CanSend(ctx, 1)
		if err != nil {
			return res, fmt.Errorf("check quota: %w", err)
		}
		if !ok {
			res.Deferred = true
			metrics.QuotaDeferrals.WithLabelValues("queue").Inc()
			log.Printf("[QueueDrain] daily quota reached, %d items left for tomorrow", len(items)-i)
			break
		}

		// Pace before claiming so a shutdown during the wait leaves the item
		// pending for the next process.
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		claimed, err := w.queue.Claim(ctx, item.ID)
		if err != nil {
			log.Printf("[QueueDrain] claim %s: %v", item.ID, err)
			res.Skipped++
			continue
		}
		if !claimed {
			res.Skipped++
			continue
		}

		if w.deliver(ctx, item.ID, provider.Message{
			To:      item.ToEmail,
			ToName:  item.ToName,
			Subject: item.Subject,
			HTML:    item.HTMLBody,
			Text:    textBody(item.TextBody, item.HTMLBody),
		}) {
			res.Sent++
		} else {
			res.Failed++
		}
	}

	if res.Sent+res.Failed > 0 {
		log.Printf("[QueueDrain] batch done: %d sent, %d failed, %d skipped", res.Sent, res.Failed, res.Skipped)
	}
	return res, nil
}

// deliver sends one claimed item and records the outcome. Once claimed, the
// send and its bookkeeping run to completion even if ctx is cancelled, so a
// shutdown never strands an item in sending. Persistence errors after the
// send are logged only.
func (w *QueueDrainWorker) deliver(parent context.Context, id string, msg provider.Message) bool {
	ctx, cancel := inFlight(parent)
	defer cancel()

	ok, err := w.sender.Send(ctx, msg)
	if err != nil || !ok {
		reason := DeliveryFailedMessage
		if err != nil {
			reason = err.Error()
		}
		atomic.AddInt64(&w.failed, 1)
		metrics.EmailFailures.WithLabelValues("queue").Inc()
		logger.Warn("queue item failed", "item_id", id, "to", msg.To, "error", reason)
		if merr := w.queue.MarkFailed(ctx, id, reason); merr != nil {
			log.Printf("[QueueDrain] mark %s failed: %v", id, merr)
		}
		return false
	}

	atomic.AddInt64(&w.sent, 1)
	metrics.EmailsSent.WithLabelValues("queue").Inc()
	if err := w.queue.MarkSent(ctx, id); err != nil {
		log.Printf("[QueueDrain] mark %s sent: %v", id, err)
	}
	if err := w.quota.RecordSent(ctx, 1); err != nil {
		log.Printf("[QueueDrain] record quota: %v", err)
	}
	return true
}

// inFlightTimeout bounds a send that outlives its cycle's cancellation.
const inFlightTimeout = 2 * time.Minute

// inFlight detaches a started send from shutdown while keeping it bounded.
func inFlight(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), inFlightTimeout)
}

func textBody(text, html string) string {
	if text != "" {
		return text
	}
	return render.PlainText(html)
}

// newPacer allows one message per delay. The first Wait returns at once.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
