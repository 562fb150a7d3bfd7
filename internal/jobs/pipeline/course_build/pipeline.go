package course_build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/observability"
	pkgerrors "github.com/yungbote/studyforge-backend/internal/pkg/errors"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// errStopped means a guarded write matched no row: the course was deleted,
// or another run owns it now. The run ends without touching the course.
var errStopped = errors.New("course no longer owned by this run")

const maxFailureReasonLen = 500

type buildContext struct {
	jobCtx   *runtime.Context
	ctx      context.Context
	log      *logger.Logger
	userID   uuid.UUID
	jobID    uuid.UUID
	courseID uuid.UUID
	course   *types.Course
	settings types.CourseSettings
	outline  types.Outline
	entries  int

	lastProgress int
}

func (p *CourseBuildPipeline) Type() string { return JobType }

func (p *CourseBuildPipeline) Run(jobContext *runtime.Context) error {
	if jobContext == nil || jobContext.Job == nil {
		return nil
	}
	ctx, span := p.tracer.Start(jobContext.Ctx, "course_build.run",
		trace.WithAttributes(
			attribute.String("job.id", jobContext.Job.ID.String()),
			attribute.Int("job.attempt", jobContext.Job.Attempts),
		),
	)
	defer span.End()

	buildCtx := &buildContext{
		jobCtx: jobContext,
		ctx:    ctx,
		log:    p.log.With("job_id", jobContext.Job.ID),
		userID: jobContext.Job.OwnerUserID,
		jobID:  jobContext.Job.ID,
	}

	// 0) Load + decide whether this run still owns the course
	skip, err := p.load(buildCtx)
	if err != nil {
		p.failStore(buildCtx, "load", err)
		return nil
	}
	if skip != "" {
		buildCtx.log.Info("Skipping course build", "reason", skip)
		jobContext.Succeed("skipped", map[string]any{"course_id": buildCtx.courseID.String(), "reason": skip})
		observability.Current().IncCourseBuildRun("skipped")
		return nil
	}
	span.SetAttributes(attribute.String("course.id", buildCtx.courseID.String()))

	// 1) Outline
	if err := p.timedStage(buildCtx, "outline", p.stageOutline); err != nil {
		return p.handleStageError(buildCtx, span, "outline", err)
	}

	// 2) Content, strictly in outline order
	if err := p.timedStage(buildCtx, "content", p.stageContent); err != nil {
		return p.handleStageError(buildCtx, span, "content", err)
	}

	// 3) Finalize
	if err := p.timedStage(buildCtx, "finalize", p.stageFinalize); err != nil {
		return p.handleStageError(buildCtx, span, "finalize", err)
	}

	jobContext.Succeed("completed", map[string]any{
		"course_id": buildCtx.courseID.String(),
		"sections":  len(buildCtx.outline),
		"entries":   buildCtx.entries,
	})
	observability.Current().IncCourseBuildRun("completed")
	if p.courseNotify != nil {
		p.courseNotify.CourseGenerationDone(buildCtx.userID, buildCtx.course, jobContext.Job)
	}
	buildCtx.log.Info("Course generated", "sections", len(buildCtx.outline), "entries", buildCtx.entries)
	return nil
}

// load resolves the course. A non-empty skip reason means there is nothing
// for this run to do.
func (p *CourseBuildPipeline) load(buildCtx *buildContext) (skip string, err error) {
	courseID, ok := buildCtx.jobCtx.PayloadUUID("course_id")
	if !ok {
		return "missing course_id", nil
	}
	buildCtx.courseID = courseID
	buildCtx.log = buildCtx.log.With("course_id", courseID)

	course, err := p.courseRepo.GetByID(dbctx.Context{Ctx: buildCtx.ctx}, courseID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return "course deleted", nil
	}
	if err != nil {
		return "", fmt.Errorf("load course: %w", err)
	}
	if course.ActiveJobID == nil || *course.ActiveJobID != buildCtx.jobID {
		return "superseded by another run", nil
	}
	if types.IsTerminalCourseStatus(course.Status) {
		return "course already " + course.Status, nil
	}
	buildCtx.course = course
	buildCtx.settings = course.CourseSettings()

	// A redelivered run starts over: whatever a previous attempt wrote is discarded.
	if buildCtx.jobCtx.Job.Attempts > 1 && (len(course.Outline) > 0 || len(course.Content) > 0 || course.Status != types.CourseStatusGeneratingOutline) {
		buildCtx.log.Warn("Redelivered run; resetting course", "attempt", buildCtx.jobCtx.Job.Attempts, "status", course.Status)
		ok, err := p.courseRepo.UpdateFieldsForJob(dbctx.Context{Ctx: buildCtx.ctx}, courseID, buildCtx.jobID, map[string]interface{}{
			"outline": datatypes.JSONSlice[types.OutlineSection]{},
			"content": datatypes.JSONSlice[types.ContentEntry]{},
			"status":  types.CourseStatusGeneratingOutline,
		})
		if err != nil {
			return "", fmt.Errorf("reset course: %w", err)
		}
		if !ok {
			return "superseded by another run", nil
		}
		course.Outline = datatypes.JSONSlice[types.OutlineSection]{}
		course.Content = datatypes.JSONSlice[types.ContentEntry]{}
		course.Status = types.CourseStatusGeneratingOutline
	}
	return "", nil
}

func (p *CourseBuildPipeline) timedStage(buildCtx *buildContext, stage string, fn func(*buildContext) error) error {
	start := time.Now()
	err := fn(buildCtx)
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	observability.Current().ObserveCourseBuildStage(stage, status, time.Since(start))
	return err
}

// writeCourse applies a write guarded by this run's ownership of the course.
func (p *CourseBuildPipeline) writeCourse(buildCtx *buildContext, updates map[string]interface{}) error {
	ok, err := p.courseRepo.UpdateFieldsForJob(dbctx.Context{Ctx: buildCtx.ctx}, buildCtx.courseID, buildCtx.jobID, updates)
	if err != nil {
		return &storeError{err: err}
	}
	if !ok {
		return errStopped
	}
	return nil
}

func (p *CourseBuildPipeline) handleStageError(buildCtx *buildContext, span trace.Span, stage string, err error) error {
	var se *storeError
	metrics := observability.Current()
	switch {
	case errors.Is(err, errStopped):
		buildCtx.log.Info("Course build stopped", "stage", stage)
		buildCtx.jobCtx.Succeed("stopped", map[string]any{"course_id": buildCtx.courseID.String(), "stage": stage})
		metrics.IncCourseBuildRun("stopped")
		return nil
	case buildCtx.ctx.Err() != nil:
		// Shutdown mid-run. The job stays running and is redelivered.
		metrics.IncCourseBuildRun("interrupted")
		return buildCtx.ctx.Err()
	case errors.As(err, &se):
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		p.failStore(buildCtx, stage, se.err)
		metrics.IncCourseBuildRun("failed")
		return nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, stage+" failed")
		p.fail(buildCtx, stage, err)
		metrics.IncCourseBuildRun("failed")
		return nil
	}
}

func (p *CourseBuildPipeline) progress(buildCtx *buildContext, stage string, pct int, msg string) {
	if buildCtx == nil || buildCtx.jobCtx == nil {
		return
	}
	// monotonic so the client's bar never jumps backward
	if pct < buildCtx.lastProgress {
		pct = buildCtx.lastProgress
	} else {
		buildCtx.lastProgress = pct
	}
	buildCtx.jobCtx.Progress(stage, pct, msg)
	if p.courseNotify != nil {
		p.courseNotify.CourseGenerationProgress(buildCtx.userID, buildCtx.course, buildCtx.jobCtx.Job, stage, pct, msg)
	}
}

// fail records a generation failure on the course and the job.
func (p *CourseBuildPipeline) fail(buildCtx *buildContext, stage string, err error) {
	reason := failureReason(stage, err)
	buildCtx.log.Warn("Course generation failed", "stage", stage, "error", err)
	if werr := p.markFailed(buildCtx, reason); werr != nil && !errors.Is(werr, errStopped) {
		buildCtx.log.Error("Could not mark course failed", "stage", stage, "error", werr)
	}
	p.failJob(buildCtx, stage, err)
}

// failStore handles persistence errors: best effort to leave the course in
// failed rather than stuck in a generating state.
func (p *CourseBuildPipeline) failStore(buildCtx *buildContext, stage string, err error) {
	buildCtx.log.Error("Store failure during course build", "stage", stage, "error", err)
	if buildCtx.courseID != uuid.Nil {
		if werr := p.markFailed(buildCtx, "store failure"); werr != nil && !errors.Is(werr, errStopped) {
			buildCtx.log.Error("Could not mark course failed", "stage", stage, "error", werr)
		}
	}
	p.failJob(buildCtx, stage, err)
}

func (p *CourseBuildPipeline) markFailed(buildCtx *buildContext, reason string) error {
	// The run context may be the reason we are here; give the write its own deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(buildCtx.ctx), 10*time.Second)
	defer cancel()
	ok, err := p.courseRepo.UpdateFieldsForJob(dbctx.Context{Ctx: ctx}, buildCtx.courseID, buildCtx.jobID, map[string]interface{}{
		"status":         types.CourseStatusFailed,
		"failure_reason": reason,
	})
	if err != nil {
		return err
	}
	if !ok {
		return errStopped
	}
	if buildCtx.course != nil {
		buildCtx.course.Status = types.CourseStatusFailed
		buildCtx.course.FailureReason = reason
	}
	return nil
}

func (p *CourseBuildPipeline) failJob(buildCtx *buildContext, stage string, err error) {
	buildCtx.jobCtx.Fail(stage, err)
	if p.courseNotify != nil && buildCtx.course != nil {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		p.courseNotify.CourseGenerationFailed(buildCtx.userID, buildCtx.course, buildCtx.jobCtx.Job, stage, msg)
	}
}

// Abandon is called by the worker when the job exhausted its attempts
// without finishing (every attempt crashed or was interrupted).
func (p *CourseBuildPipeline) Abandon(jobContext *runtime.Context, reason error) {
	if jobContext == nil || jobContext.Job == nil {
		return
	}
	buildCtx := &buildContext{
		jobCtx: jobContext,
		ctx:    jobContext.Ctx,
		log:    p.log.With("job_id", jobContext.Job.ID),
		userID: jobContext.Job.OwnerUserID,
		jobID:  jobContext.Job.ID,
	}
	courseID, ok := jobContext.PayloadUUID("course_id")
	if !ok {
		return
	}
	buildCtx.courseID = courseID
	if course, err := p.courseRepo.GetByID(dbctx.Context{Ctx: buildCtx.ctx}, courseID); err == nil {
		buildCtx.course = course
	}
	if err := p.markFailed(buildCtx, failureReason("abandoned", reason)); err != nil && !errors.Is(err, errStopped) {
		buildCtx.log.Error("Could not mark abandoned course failed", "course_id", courseID, "error", err)
		return
	}
	if p.courseNotify != nil && buildCtx.course != nil {
		p.courseNotify.CourseGenerationFailed(buildCtx.userID, buildCtx.course, jobContext.Job, "abandoned", reason.Error())
	}
}

type storeError struct{ err error }

func (e *storeError) Error() string { return "store failure: " + e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

func failureReason(stage string, err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	reason := stage + " generation failed: " + msg
	if stage == "abandoned" {
		reason = "generation abandoned: " + msg
	}
	if r := []rune(reason); len(r) > maxFailureReasonLen {
		reason = string(r[:maxFailureReasonLen])
	}
	return reason
}
