package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/learning/generator"
	pkgerrors "github.com/yungbote/studyforge-backend/internal/pkg/errors"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

const (
	defaultStructuredCount = 10
	maxStructuredCount     = 50
)

type CreateCourseInput struct {
	Title       string                  `json:"title" validate:"notblank,max=200"`
	Description string                  `json:"description" validate:"max=4000"`
	Settings    *types.SettingsOverride `json:"settings"`
}

type CourseService interface {
	// RequestGeneration creates the course and queues its generation run. It
	// returns as soon as both are committed.
	RequestGeneration(ctx context.Context, ownerUserID uuid.UUID, in CreateCourseInput) (*types.Course, error)
	// Regenerate resets a course whose last run finished and queues a new run.
	Regenerate(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID, override *types.SettingsOverride) (*types.Course, error)
	Get(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID) (*types.Course, error)
	List(ctx context.Context, ownerUserID uuid.UUID) ([]*types.Course, error)
	// LatestJob returns the most recent generation run of the course.
	LatestJob(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID) (*types.JobRun, error)
	Delete(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID) error
	RenderPDF(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID) (filename string, data []byte, err error)
	GenerateQuiz(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID, count int) (map[string]any, error)
	GenerateFlashcards(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID, count int) (map[string]any, error)
}

type courseService struct {
	db           *gorm.DB
	log          *logger.Logger
	courseRepo   repos.CourseRepo
	jobs         JobService
	gen          generator.Generator
	courseNotify CourseNotifier
}

func NewCourseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	jobs JobService,
	gen generator.Generator,
	courseNotify CourseNotifier,
) CourseService {
	return &courseService{
		db:           db,
		log:          baseLog.With("service", "CourseService"),
		courseRepo:   courseRepo,
		jobs:         jobs,
		gen:          gen,
		courseNotify: courseNotify,
	}
}

var (
	errCourseNotFound      = apierr.New(http.StatusNotFound, "course_not_found", pkgerrors.ErrNotFound)
	errGenerationInFlight  = apierr.New(http.StatusConflict, "generation_in_progress", fmt.Errorf("%w: course generation is still running", pkgerrors.ErrInvalidState))
	errCourseNotCompleted  = apierr.New(http.StatusBadRequest, "course_not_completed", fmt.Errorf("%w: course generation has not completed", pkgerrors.ErrInvalidState))
	errMissingCourseOwner  = apierr.New(http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
	errJobNotFound         = apierr.New(http.StatusNotFound, "job_not_found", pkgerrors.ErrNotFound)
	errRegenerationSkipped = errors.New("course changed state before regeneration")
)

func storeFailure(err error) error {
	return apierr.New(http.StatusInternalServerError, "store_failure", err)
}

func (s *courseService) RequestGeneration(ctx context.Context, ownerUserID uuid.UUID, in CreateCourseInput) (*types.Course, error) {
	if ownerUserID == uuid.Nil {
		return nil, errMissingCourseOwner
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	settings := types.DefaultCourseSettings().Merge(in.Settings)
	if err := validate.Struct(settings); err != nil {
		return nil, validationError(err)
	}

	course := &types.Course{
		OwnerUserID: ownerUserID,
		Title:       in.Title,
		Description: in.Description,
		Settings:    datatypes.NewJSONType(settings),
	}
	var job *types.JobRun
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.courseRepo.Create(dbc, course); err != nil {
			return fmt.Errorf("create course: %w", err)
		}
		var err error
		job, err = s.jobs.Enqueue(dbc, ownerUserID, types.JobTypeCourseBuild, types.EntityTypeCourse, &course.ID, map[string]any{
			"course_id": course.ID.String(),
		})
		if err != nil {
			return err
		}
		if err := s.courseRepo.UpdateFields(dbc, course.ID, map[string]interface{}{"active_job_id": job.ID}); err != nil {
			return fmt.Errorf("link job: %w", err)
		}
		course.ActiveJobID = &job.ID
		return nil
	})
	if err != nil {
		s.log.Error("Course generation request failed", "owner_user_id", ownerUserID, "error", err)
		return nil, storeFailure(err)
	}

	s.jobs.Dispatch(job)
	if s.courseNotify != nil {
		s.courseNotify.CourseGenerationQueued(ownerUserID, course, job)
	}
	s.log.Info("Course generation queued", "course_id", course.ID, "job_id", job.ID, "owner_user_id", ownerUserID)
	return course, nil
}

func (s *courseService) Regenerate(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID, override *types.SettingsOverride) (*types.Course, error) {
	course, err := s.Get(ctx, ownerUserID, courseID)
	if err != nil {
		return nil, err
	}
	if !types.IsTerminalCourseStatus(course.Status) {
		return nil, errGenerationInFlight
	}
	settings := course.CourseSettings().Merge(override)
	if err := validate.Struct(settings); err != nil {
		return nil, validationError(err)
	}

	var job *types.JobRun
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		job, err = s.jobs.Enqueue(dbc, ownerUserID, types.JobTypeCourseBuild, types.EntityTypeCourse, &course.ID, map[string]any{
			"course_id": course.ID.String(),
		})
		if err != nil {
			return err
		}
		// The status check and the reset are one conditional write, so two
		// concurrent regenerate calls cannot both start a run.
		ok, err := s.courseRepo.ResetForRegeneration(dbc, course.ID, ownerUserID, settings, job.ID)
		if err != nil {
			return fmt.Errorf("reset course: %w", err)
		}
		if !ok {
			return errRegenerationSkipped
		}
		return nil
	})
	if errors.Is(err, errRegenerationSkipped) {
		// Deleted or restarted by a concurrent request.
		if _, gerr := s.Get(ctx, ownerUserID, courseID); gerr != nil {
			return nil, gerr
		}
		return nil, errGenerationInFlight
	}
	if err != nil {
		s.log.Error("Course regeneration failed", "course_id", courseID, "error", err)
		return nil, storeFailure(err)
	}

	s.jobs.Dispatch(job)
	updated, err := s.Get(ctx, ownerUserID, courseID)
	if err != nil {
		return nil, err
	}
	if s.courseNotify != nil {
		s.courseNotify.CourseGenerationQueued(ownerUserID, updated, job)
	}
	s.log.Info("Course regeneration queued", "course_id", courseID, "job_id", job.ID)
	return updated, nil
}

func (s *courseService) Get(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID) (*types.Course, error) {
	if ownerUserID == uuid.Nil {
		return nil, errMissingCourseOwner
	}
	course, err := s.courseRepo.GetByIDForOwner(dbctx.Context{Ctx: ctx}, courseID, ownerUserID)
	if err != nil {
		if isNotFound(err) {
			return nil, errCourseNotFound
		}
		return nil, storeFailure(err)
	}
	return course, nil
}

func (s *courseService) List(ctx context.Context, ownerUserID uuid.UUID) ([]*types.Course, error) {
	if ownerUserID == uuid.Nil {
		return nil, errMissingCourseOwner
	}
	courses, err := s.courseRepo.ListByOwner(dbctx.Context{Ctx: ctx}, ownerUserID)
	if err != nil {
		return nil, storeFailure(err)
	}
	return courses, nil
}

func (s *courseService) LatestJob(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID) (*types.JobRun, error) {
	if _, err := s.Get(ctx, ownerUserID, courseID); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetLatestForEntity(dbctx.Context{Ctx: ctx}, ownerUserID, types.EntityTypeCourse, courseID, types.JobTypeCourseBuild)
	if err != nil {
		return nil, storeFailure(err)
	}
	if job == nil {
		return nil, errJobNotFound
	}
	return job, nil
}

func (s *courseService) Delete(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID) error {
	if ownerUserID == uuid.Nil {
		return errMissingCourseOwner
	}
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		deleted, err = s.courseRepo.DeleteForOwner(dbc, courseID, ownerUserID)
		if err != nil || !deleted {
			return err
		}
		_, err = s.jobs.CancelForEntity(dbc, types.EntityTypeCourse, courseID)
		return err
	})
	if err != nil {
		return storeFailure(err)
	}
	if !deleted {
		return errCourseNotFound
	}
	if s.courseNotify != nil {
		s.courseNotify.CourseDeleted(ownerUserID, courseID)
	}
	s.log.Info("Course deleted", "course_id", courseID, "owner_user_id", ownerUserID)
	return nil
}

func (s *courseService) RenderPDF(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID) (string, []byte, error) {
	course, err := s.completedCourse(ctx, ownerUserID, courseID)
	if err != nil {
		return "", nil, err
	}
	data, err := renderCoursePDF(course)
	if err != nil {
		s.log.Error("PDF rendering failed", "course_id", courseID, "error", err)
		return "", nil, apierr.New(http.StatusInternalServerError, "pdf_render_failed", err)
	}
	return coursePDFFilename(course.Title), data, nil
}

func (s *courseService) GenerateQuiz(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID, count int) (map[string]any, error) {
	return s.generateStructured(ctx, ownerUserID, courseID, "quiz", count)
}

func (s *courseService) GenerateFlashcards(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID, count int) (map[string]any, error) {
	return s.generateStructured(ctx, ownerUserID, courseID, "flashcards", count)
}

func (s *courseService) generateStructured(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID, kind string, count int) (map[string]any, error) {
	if count == 0 {
		count = defaultStructuredCount
	}
	if count < 1 || count > maxStructuredCount {
		return nil, apierr.New(http.StatusBadRequest, "validation_failed",
			fmt.Errorf("%w: count must be between 1 and %d", pkgerrors.ErrInvalidArgument, maxStructuredCount))
	}
	course, err := s.completedCourse(ctx, ownerUserID, courseID)
	if err != nil {
		return nil, err
	}
	out, err := s.gen.SynthesizeStructured(ctx, courseText(course), generator.StructuredHint{Kind: kind, Count: count}, course.CourseSettings())
	if err != nil {
		s.log.Warn("Structured generation failed", "course_id", courseID, "kind", kind, "error", err)
		return nil, apierr.New(http.StatusBadGateway, "generation_failed", err)
	}
	return out, nil
}

func (s *courseService) completedCourse(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID) (*types.Course, error) {
	course, err := s.Get(ctx, ownerUserID, courseID)
	if err != nil {
		return nil, err
	}
	if course.Status != types.CourseStatusCompleted {
		return nil, errCourseNotCompleted
	}
	return course, nil
}

// courseText flattens the generated content in course order.
func courseText(course *types.Course) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(course.Title)
	b.WriteString("\n\n")
	for _, e := range course.Content {
		if e.Subsection == nil {
			b.WriteString("## ")
			b.WriteString(e.Section)
		} else {
			b.WriteString("### ")
			b.WriteString(*e.Subsection)
		}
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(e.Explanation))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}
