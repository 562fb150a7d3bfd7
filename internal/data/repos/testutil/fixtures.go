package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/studyforge-backend/internal/domain"
)

type CourseOpt func(c *types.Course)

func WithStatus(status string) CourseOpt {
	return func(c *types.Course) { c.Status = status }
}

func WithActiveJob(jobID uuid.UUID) CourseOpt {
	return func(c *types.Course) { c.ActiveJobID = &jobID }
}

func WithOutline(outline types.Outline) CourseOpt {
	return func(c *types.Course) { c.Outline = datatypes.JSONSlice[types.OutlineSection](outline) }
}

func WithContent(entries ...types.ContentEntry) CourseOpt {
	return func(c *types.Course) { c.Content = datatypes.JSONSlice[types.ContentEntry](entries) }
}

func WithCreatedAt(at time.Time) CourseOpt {
	return func(c *types.Course) {
		c.CreatedAt = at.UTC()
		c.UpdatedAt = at.UTC()
	}
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, title string, opts ...CourseOpt) *types.Course {
	tb.Helper()
	now := time.Now().UTC()
	c := &types.Course{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		Title:       title,
		Description: "seeded",
		Settings:    datatypes.NewJSONType(types.DefaultCourseSettings()),
		Outline:     datatypes.JSONSlice[types.OutlineSection]{},
		Content:     datatypes.JSONSlice[types.ContentEntry]{},
		Status:      types.CourseStatusGeneratingOutline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedJobRun(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, jobType string, entityID uuid.UUID, status string) *types.JobRun {
	tb.Helper()
	now := time.Now().UTC()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  "course",
		EntityID:    &entityID,
		Status:      status,
		Stage:       status,
		Payload:     datatypes.JSON([]byte(`{"course_id":"` + entityID.String() + `"}`)),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(job).Error; err != nil {
		tb.Fatalf("seed job run: %v", err)
	}
	return job
}
