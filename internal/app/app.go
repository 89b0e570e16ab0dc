// Package app wires configuration, storage, services and workers into the
// process-level object graph shared by the mailer binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/member-mailer/internal/api"
	"github.com/ignite/member-mailer/internal/config"
	"github.com/ignite/member-mailer/internal/metrics"
	"github.com/ignite/member-mailer/internal/pkg/distlock"
	"github.com/ignite/member-mailer/internal/pkg/logger"
	"github.com/ignite/member-mailer/internal/provider"
	"github.com/ignite/member-mailer/internal/render"
	"github.com/ignite/member-mailer/internal/repository/postgres"
	"github.com/ignite/member-mailer/internal/service/bulk"
	"github.com/ignite/member-mailer/internal/service/queue"
	"github.com/ignite/member-mailer/internal/service/quota"
	"github.com/ignite/member-mailer/internal/service/rsvp"
	"github.com/ignite/member-mailer/internal/service/schedule"
	"github.com/ignite/member-mailer/internal/service/token"
	"github.com/ignite/member-mailer/internal/worker"
)

const defaultOrgName = "Member Services"

// App holds the shared dependencies of one mailer process.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Redis    *redis.Client
	Services api.Services
}

// Setup applies the logging settings and registers metrics.
func Setup(cfg *config.Config) {
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(!cfg.Logging.DisableRedaction)
	metrics.Init()
}

// New opens the database (and Redis when configured) and builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	a := &App{Config: cfg, DB: db}
	a.Redis = connectRedis(ctx, cfg.Redis.URL)

	orgName := cfg.Provider.FromName
	if orgName == "" {
		orgName = defaultOrgName
	}
	renderer, err := render.New(orgName)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load templates: %w", err)
	}

	queueRepo := postgres.NewQueueRepo(db)
	directory := postgres.NewDirectoryRepo(db)

	queueSvc := queue.NewService(queueRepo, queueRepo)
	quotaSvc := quota.NewService(postgres.NewQuotaRepo(db), cfg.Quota.DailyLimit)
	tokenSvc := token.NewService(postgres.NewTokenRepo(db))

	a.Services = api.Services{
		Queue:  queueSvc,
		Quota:  quotaSvc,
		Bulk:   bulk.NewService(postgres.NewBulkRepo(db), quotaSvc),
		Tokens: tokenSvc,
		Schedule: schedule.NewService(postgres.NewScheduleRepo(db), schedule.Deps{
			Directory: directory,
			Tokens:    tokenSvc,
			Queue:     queueSvc,
			Renderer:  renderer,
		}, schedule.Config{
			BatchSize:     cfg.Scheduler.BatchSize,
			MaxFailures:   cfg.Scheduler.MaxFailures,
			PublicBaseURL: cfg.RSVP.PublicBaseURL,
			CalendarURL:   cfg.RSVP.CalendarURL,
		}),
		RSVP:   rsvp.NewService(directory, tokenSvc, queueSvc, renderer, cfg.RSVP.ConfirmationPriority),
		Events: directory,
	}
	return a, nil
}

// connectRedis returns nil when Redis is unset or unreachable; cycle locks
// then fall back to PostgreSQL advisory locks.
func connectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Println("Redis not configured (REDIS_URL not set), using PG advisory locks")
		return nil
	}
	opts, err := redis.ParseURL(url)
	var client *redis.Client
	if err != nil {
		client = redis.NewClient(&redis.Options{Addr: url})
	} else {
		client = redis.NewClient(opts)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed (%s): %v, falling back to PG advisory locks", url, err)
		client.Close()
		return nil
	}
	log.Printf("Redis connected: %s (distributed locking enabled)", url)
	return client
}

// Workers are the background loops of one process.
type Workers struct {
	Drain    *worker.QueueDrainWorker
	Bulk     *worker.BulkJobWorker
	Recovery *worker.RecoveryWorker
}

// NewWorkers builds the loops around the configured provider.
func (a *App) NewWorkers(ctx context.Context) (*Workers, error) {
	sender, err := provider.New(ctx, a.Config.Provider)
	if err != nil {
		return nil, fmt.Errorf("email provider: %w", err)
	}
	log.Printf("Email provider: %s", sender.Name())

	cfg := a.Config
	s := a.Services
	w := &Workers{
		Drain: worker.NewQueueDrainWorker(s.Schedule, s.Queue, s.Quota, sender, worker.QueueDrainConfig{
			PollInterval: cfg.Queue.PollInterval(),
			BatchSize:    cfg.Queue.BatchSize,
			MessageDelay: cfg.Queue.MessageDelay(),
		}),
		Bulk: worker.NewBulkJobWorker(s.Bulk, s.Quota, sender, worker.BulkJobConfig{
			PollInterval: cfg.Bulk.PollInterval(),
			MessageDelay: cfg.Bulk.MessageDelay(),
			LockTTL:      cfg.Recovery.StaleAge(),
		}),
		Recovery: worker.NewRecoveryWorker(s.Queue, s.Bulk, cfg.Recovery.Interval(), cfg.Recovery.StaleAge()),
	}
	if cfg.Queue.UseLock {
		// The bulk lease matches the stale age and is renewed while a job sends.
		w.Drain.SetLock(distlock.NewLock(a.Redis, a.DB, w.Drain.LockKey(), 10*time.Minute))
		w.Bulk.SetLock(distlock.NewLock(a.Redis, a.DB, w.Bulk.LockKey(), cfg.Recovery.StaleAge()))
	}
	return w, nil
}

// Start launches every loop. Recovery runs until ctx is cancelled.
func (w *Workers) Start(ctx context.Context) error {
	if err := w.Drain.Start(); err != nil {
		return err
	}
	if err := w.Bulk.Start(); err != nil {
		w.Drain.Stop()
		return err
	}
	go w.Recovery.Start(ctx)
	return nil
}

// Stop waits for the polling loops to finish their current cycle.
func (w *Workers) Stop() {
	w.Drain.Stop()
	w.Bulk.Stop()
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
