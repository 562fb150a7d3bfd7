package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	repojobs "github.com/yungbote/studyforge-backend/internal/data/repos/jobs"
	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

type funcHandler struct {
	jobType   string
	run       func(*runtime.Context) error
	abandoned atomic.Int32
}

func (h *funcHandler) Type() string                  { return h.jobType }
func (h *funcHandler) Run(jc *runtime.Context) error { return h.run(jc) }
func (h *funcHandler) Abandon(*runtime.Context, error) {
	h.abandoned.Add(1)
}

func setup(t *testing.T, handlers ...runtime.Handler) (*Worker, repojobs.JobRunRepo, func(jobType string, attempts int) *types.JobRun) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repojobs.NewJobRunRepo(db, log)
	reg := runtime.NewRegistry()
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	w := NewWorker(db, log, repo, reg, nil, Config{Concurrency: 1, PollInterval: 10 * time.Millisecond, MaxAttempts: 2})
	seed := func(jobType string, attempts int) *types.JobRun {
		job := testutil.SeedJobRun(t, context.Background(), db, uuid.New(), jobType, uuid.New(), types.JobStatusQueued)
		if attempts > 0 {
			if err := repo.UpdateFields(dbctx.Context{}, job.ID, map[string]interface{}{"attempts": attempts}); err != nil {
				t.Fatalf("UpdateFields: %v", err)
			}
		}
		return job
	}
	return w, repo, seed
}

func load(t *testing.T, repo repojobs.JobRunRepo, id uuid.UUID) *types.JobRun {
	t.Helper()
	job, err := repo.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return job
}

func TestRunOnceSucceeds(t *testing.T) {
	h := &funcHandler{jobType: "course_build", run: func(jc *runtime.Context) error {
		jc.Succeed("done", map[string]any{"ok": true})
		return nil
	}}
	w, repo, seed := setup(t, h)
	job := seed("course_build", 0)

	ran, err := w.RunOnce(context.Background())
	if err != nil || !ran {
		t.Fatalf("RunOnce: ran=%v err=%v", ran, err)
	}
	got := load(t, repo, job.ID)
	if got.Status != types.JobStatusSucceeded || got.Attempts != 1 {
		t.Fatalf("job: want=succeeded/1 got=%s/%d", got.Status, got.Attempts)
	}

	ran, err = w.RunOnce(context.Background())
	if err != nil || ran {
		t.Fatalf("empty queue: ran=%v err=%v", ran, err)
	}
}

func TestRunOnceFailsUnhandledError(t *testing.T) {
	h := &funcHandler{jobType: "course_build", run: func(*runtime.Context) error {
		return errors.New("store down")
	}}
	w, repo, seed := setup(t, h)
	job := seed("course_build", 0)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	got := load(t, repo, job.ID)
	if got.Status != types.JobStatusFailed || got.Stage != "run" || got.Error != "store down" {
		t.Fatalf("job: got status=%s stage=%s error=%q", got.Status, got.Stage, got.Error)
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	h := &funcHandler{jobType: "course_build", run: func(*runtime.Context) error {
		panic("nil outline")
	}}
	w, repo, seed := setup(t, h)
	job := seed("course_build", 0)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	got := load(t, repo, job.ID)
	if got.Status != types.JobStatusFailed || got.Stage != "panic" {
		t.Fatalf("job: want=failed/panic got=%s/%s", got.Status, got.Stage)
	}
}

func TestRunOnceMissingHandler(t *testing.T) {
	w, repo, seed := setup(t)
	job := seed("unknown", 0)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	got := load(t, repo, job.ID)
	if got.Status != types.JobStatusFailed || got.Stage != "dispatch" {
		t.Fatalf("job: want=failed/dispatch got=%s/%s", got.Status, got.Stage)
	}
}

func TestRunOnceAbandonsExhaustedJob(t *testing.T) {
	var runs atomic.Int32
	h := &funcHandler{jobType: "course_build", run: func(*runtime.Context) error {
		runs.Add(1)
		return nil
	}}
	w, repo, seed := setup(t, h)
	job := seed("course_build", 2)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	got := load(t, repo, job.ID)
	if got.Status != types.JobStatusFailed || got.Stage != "abandoned" {
		t.Fatalf("job: want=failed/abandoned got=%s/%s", got.Status, got.Stage)
	}
	if runs.Load() != 0 || h.abandoned.Load() != 1 {
		t.Fatalf("want=0 runs 1 abandon got=%d runs %d abandons", runs.Load(), h.abandoned.Load())
	}
}

func TestRunDrainsQueueUntilCanceled(t *testing.T) {
	done := make(chan struct{}, 2)
	h := &funcHandler{jobType: "course_build", run: func(jc *runtime.Context) error {
		jc.Succeed("done", nil)
		done <- struct{}{}
		return nil
	}}
	w, _, seed := setup(t, h)
	seed("course_build", 0)
	seed("course_build", 0)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	w.Wake()
	w.Wake()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("job %d was not processed", i+1)
		}
	}
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop")
	}
}
