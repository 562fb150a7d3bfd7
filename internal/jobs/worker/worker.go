package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/services"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	// StaleAfter is how long a running job may go without a heartbeat before
	// another loop reclaims it.
	StaleAfter time.Duration
	// MaxAttempts bounds redelivery; a job claimed more often is abandoned.
	MaxAttempts       int
	HeartbeatInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 15 * time.Minute
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = c.StaleAfter / 3
	}
	return c
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	cfg      Config
	wake     chan struct{}
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, cfg Config) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg,
		wake:     make(chan struct{}, cfg.Concurrency),
	}
}

// Wake nudges idle loops to poll now. Never blocks.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is canceled and every loop has returned.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool",
		"concurrency", w.cfg.Concurrency,
		"poll_interval", w.cfg.PollInterval.String(),
		"stale_after", w.cfg.StaleAfter.String(),
		"job_types", w.registry.Types(),
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			w.runLoop(gctx, workerID)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
		case <-w.wake:
		}
		// Drain the queue before going back to sleep.
		for ctx.Err() == nil {
			ran, err := w.RunOnce(ctx)
			if err != nil {
				w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
				break
			}
			if !ran {
				break
			}
		}
	}
}

// RunOnce claims at most one job and runs it to completion. It reports
// whether a job was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.StaleAfter)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.execute(ctx, job)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, job *types.JobRun) {
	log := w.log.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		log.Warn("No handler registered for job_type")
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		return
	}

	if job.Attempts > w.cfg.MaxAttempts {
		reason := fmt.Errorf("gave up after %d attempts", job.Attempts-1)
		log.Warn("Abandoning job", "max_attempts", w.cfg.MaxAttempts)
		if a, ok := h.(runtime.Abandoner); ok {
			w.safely(log, jc, func() error {
				a.Abandon(jc, reason)
				return nil
			})
		}
		jc.Fail("abandoned", reason)
		return
	}

	stop := w.startHeartbeat(ctx, jc)
	defer stop()

	start := time.Now()
	runErr := w.safely(log, jc, func() error { return h.Run(jc) })
	switch {
	case runErr == nil:
		log.Debug("Job finished", "status", jc.Job.Status, "elapsed", time.Since(start).String())
	case ctx.Err() != nil && errors.Is(runErr, ctx.Err()):
		// Shutdown: leave the row running so it is reclaimed once stale.
		log.Info("Job interrupted by shutdown", "elapsed", time.Since(start).String())
	default:
		// Handlers fail their own jobs; this catches anything they did not.
		if !types.IsTerminalJobStatus(jc.Job.Status) {
			jc.Fail("run", runErr)
		}
		log.Warn("Job failed", "error", runErr, "elapsed", time.Since(start).String())
	}
}

// safely runs fn, converting a panic into a failed job.
func (w *Worker) safely(log *logger.Logger, jc *runtime.Context, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job handler panic", "panic", r)
			perr := errFromRecover(r)
			jc.Fail("panic", perr)
			err = perr
		}
	}()
	return fn()
}

func (w *Worker) startHeartbeat(ctx context.Context, jc *runtime.Context) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(w.cfg.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				jc.Heartbeat()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
