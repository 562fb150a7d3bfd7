package course_build

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

const (
	progressOutline      = 5
	progressContentStart = 10
	progressContentEnd   = 95
)

func (p *CourseBuildPipeline) stageOutline(buildCtx *buildContext) error {
	ctx, span := p.tracer.Start(buildCtx.ctx, "course_build.outline")
	defer span.End()

	p.progress(buildCtx, "outline", progressOutline, "Generating outline")
	course := buildCtx.course
	outline, err := p.gen.SynthesizeOutline(ctx, course.Title, course.Description, buildCtx.settings)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("outline.sections", len(outline)), attribute.Int("outline.entries", outline.EntryCount()))

	if err := p.writeCourse(buildCtx, map[string]interface{}{
		"outline": datatypes.JSONSlice[types.OutlineSection](outline),
		"status":  types.CourseStatusGeneratingContent,
	}); err != nil {
		return err
	}
	buildCtx.outline = outline
	course.Outline = datatypes.JSONSlice[types.OutlineSection](outline)
	course.Status = types.CourseStatusGeneratingContent
	return nil
}

// stageContent writes one entry per section then one per subsection, in
// outline order, persisting each as soon as it exists.
func (p *CourseBuildPipeline) stageContent(buildCtx *buildContext) error {
	plan := buildCtx.outline.ContentPlan()
	course := buildCtx.course
	for i, entry := range plan {
		// Delete cancels the job; stop before spending another provider call.
		if buildCtx.jobCtx.Canceled() {
			return errStopped
		}
		label := entry.Section
		if entry.Subsection != nil {
			label = entry.Section + " / " + *entry.Subsection
		}
		pct := progressContentStart + (progressContentEnd-progressContentStart)*i/len(plan)
		p.progress(buildCtx, "content", pct, fmt.Sprintf("Writing %s (%d/%d)", label, i+1, len(plan)))

		ctx, span := p.tracer.Start(buildCtx.ctx, "course_build.content_entry",
			trace.WithAttributes(attribute.Int("entry.index", i)),
		)
		text, err := p.gen.SynthesizeSectionContent(ctx, course.Title, entry.Section, entry.Subsection, buildCtx.settings)
		span.End()
		if err != nil {
			return err
		}
		entry.Explanation = text

		ok, err := p.courseRepo.AppendContentForJob(dbctx.Context{Ctx: buildCtx.ctx}, buildCtx.courseID, buildCtx.jobID, entry)
		if err != nil {
			return &storeError{err: err}
		}
		if !ok {
			return errStopped
		}
		course.Content = append(course.Content, entry)
		buildCtx.entries++
	}
	return nil
}

func (p *CourseBuildPipeline) stageFinalize(buildCtx *buildContext) error {
	if err := p.writeCourse(buildCtx, map[string]interface{}{
		"status":         types.CourseStatusCompleted,
		"failure_reason": "",
	}); err != nil {
		return err
	}
	buildCtx.course.Status = types.CourseStatusCompleted
	return nil
}
