package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	repojobs "github.com/yungbote/studyforge-backend/internal/data/repos/jobs"
	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(e string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) JobCreated(uuid.UUID, *types.JobRun) { n.add("created") }
func (n *recordingNotifier) JobProgress(uuid.UUID, *types.JobRun, string, int, string) {
	n.add("progress")
}
func (n *recordingNotifier) JobFailed(uuid.UUID, *types.JobRun, string, string) { n.add("failed") }
func (n *recordingNotifier) JobDone(uuid.UUID, *types.JobRun)                   { n.add("done") }

func TestContextLifecycle(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := repojobs.NewJobRunRepo(db, testutil.Logger(t))
	courseID := uuid.New()
	job := testutil.SeedJobRun(t, ctx, db, uuid.New(), "course_build", courseID, types.JobStatusRunning)
	notify := &recordingNotifier{}

	rc := NewContext(ctx, db, job, repo, notify)
	if got, ok := rc.PayloadUUID("course_id"); !ok || got != courseID {
		t.Fatalf("course_id: want=%v got=%v", courseID, got)
	}

	rc.Progress("content", 40, "Writing Graph Basics")
	stored, err := repo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Stage != "content" || stored.Progress != 40 || stored.HeartbeatAt == nil {
		t.Fatalf("progress not persisted: stage=%q progress=%d", stored.Stage, stored.Progress)
	}

	rc.Succeed("completed", map[string]any{"entries": 4})
	stored, _ = repo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if stored.Status != types.JobStatusSucceeded || stored.Progress != 100 {
		t.Fatalf("status: want=%s got=%s", types.JobStatusSucceeded, stored.Status)
	}
	if len(notify.events) != 2 || notify.events[0] != "progress" || notify.events[1] != "done" {
		t.Fatalf("events: want=[progress done] got=%v", notify.events)
	}
}

func TestContextDoesNotOverwriteCanceled(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := repojobs.NewJobRunRepo(db, testutil.Logger(t))
	job := testutil.SeedJobRun(t, ctx, db, uuid.New(), "course_build", uuid.New(), types.JobStatusCanceled)
	notify := &recordingNotifier{}

	rc := NewContext(ctx, db, job, repo, notify)
	if !rc.Canceled() {
		t.Fatalf("want canceled")
	}
	rc.Progress("content", 10, "")
	rc.Fail("content", errors.New("boom"))

	stored, err := repo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != types.JobStatusCanceled || stored.Error != "" {
		t.Fatalf("canceled job overwritten: status=%s error=%q", stored.Status, stored.Error)
	}
	if len(notify.events) != 0 {
		t.Fatalf("events: want none got=%v", notify.events)
	}
}

func TestContextTraceFromPayload(t *testing.T) {
	job := &types.JobRun{Payload: []byte(`{"trace_id":"abc","request_id":"req-1"}`)}
	rc := NewContext(context.Background(), nil, job, nil, nil)
	td := ctxutil.GetTraceData(rc.Ctx)
	if td == nil || td.TraceID != "abc" || td.RequestID != "req-1" {
		t.Fatalf("trace data: got=%+v", td)
	}
	if _, ok := rc.PayloadUUID("course_id"); ok {
		t.Fatalf("missing key should not parse")
	}
}

func TestContextMalformedPayload(t *testing.T) {
	job := &types.JobRun{Payload: []byte(`not json`)}
	rc := NewContext(context.Background(), nil, job, nil, nil)
	if rc.Payload() == nil || len(rc.Payload()) != 0 {
		t.Fatalf("want empty payload got=%v", rc.Payload())
	}
}

type namedHandler string

func (h namedHandler) Type() string        { return string(h) }
func (h namedHandler) Run(*Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(namedHandler("course_build")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(namedHandler("course_build")); err == nil {
		t.Fatalf("want duplicate error")
	}
	if err := r.Register(namedHandler("")); err == nil {
		t.Fatalf("want empty type error")
	}
	if _, ok := r.Get("course_build"); !ok {
		t.Fatalf("handler not found")
	}
	if _, ok := r.Get("other"); ok {
		t.Fatalf("unexpected handler")
	}
}
