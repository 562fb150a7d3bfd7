package learning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	pkgerrors "github.com/yungbote/studyforge-backend/internal/pkg/errors"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

func strPtr(s string) *string { return &s }

func TestCourseRepoCreateAndOwnerScopedGet(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewCourseRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	owner := uuid.New()
	created, err := repo.Create(dbc, &types.Course{
		OwnerUserID: owner,
		Title:       "Intro to Graphs",
		Settings:    datatypes.NewJSONType(types.DefaultCourseSettings()),
		Status:      types.CourseStatusCompleted, // ignored
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != types.CourseStatusGeneratingOutline {
		t.Fatalf("status: want=%s got=%s", types.CourseStatusGeneratingOutline, created.Status)
	}

	got, err := repo.GetByIDForOwner(dbc, created.ID, owner)
	if err != nil {
		t.Fatalf("GetByIDForOwner: %v", err)
	}
	if got.Title != "Intro to Graphs" {
		t.Fatalf("title: want=Intro to Graphs got=%s", got.Title)
	}
	if got.Outline == nil || len(got.Outline) != 0 || got.Content == nil || len(got.Content) != 0 {
		t.Fatalf("outline/content: want empty arrays got=%v/%v", got.Outline, got.Content)
	}
	if got.CourseSettings().Level != types.DefaultCourseSettings().Level {
		t.Fatalf("settings: want defaults got=%+v", got.CourseSettings())
	}

	if _, err := repo.GetByIDForOwner(dbc, created.ID, uuid.New()); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("other owner: want=ErrNotFound got=%v", err)
	}
	if _, err := repo.GetByIDForOwner(dbc, uuid.New(), owner); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("missing: want=ErrNotFound got=%v", err)
	}
}

func TestCourseRepoListNewestFirst(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewCourseRepo(db, testutil.Logger(t))

	owner := uuid.New()
	now := time.Now().UTC()
	older := testutil.SeedCourse(t, ctx, db, owner, "older", testutil.WithCreatedAt(now.Add(-time.Hour)))
	newer := testutil.SeedCourse(t, ctx, db, owner, "newer", testutil.WithCreatedAt(now))
	testutil.SeedCourse(t, ctx, db, uuid.New(), "someone else")

	list, err := repo.ListByOwner(dbctx.Context{Ctx: ctx}, owner)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len: want=2 got=%d", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("order: want=[%s %s] got=[%s %s]", newer.ID, older.ID, list[0].ID, list[1].ID)
	}

	empty, err := repo.ListByOwner(dbctx.Context{Ctx: ctx}, uuid.New())
	if err != nil {
		t.Fatalf("ListByOwner empty: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("empty list: want [] got=%v", empty)
	}
}

func TestCourseRepoJobGuardedWrites(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewCourseRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	owner := uuid.New()
	jobID := uuid.New()
	course := testutil.SeedCourse(t, ctx, db, owner, "Graphs", testutil.WithActiveJob(jobID))

	ok, err := repo.UpdateFieldsForJob(dbc, course.ID, uuid.New(), map[string]interface{}{"status": types.CourseStatusGeneratingContent})
	if err != nil || ok {
		t.Fatalf("stale job write: want=false,nil got=%v,%v", ok, err)
	}

	outline := datatypes.JSONSlice[types.OutlineSection]{{Section: "Basics", Subsections: []string{"Vertices"}}}
	ok, err = repo.UpdateFieldsForJob(dbc, course.ID, jobID, map[string]interface{}{
		"outline": outline,
		"status":  types.CourseStatusGeneratingContent,
	})
	if err != nil || !ok {
		t.Fatalf("active job write: want=true,nil got=%v,%v", ok, err)
	}

	ok, err = repo.AppendContentForJob(dbc, course.ID, jobID, types.ContentEntry{Section: "Basics", Explanation: "e1"})
	if err != nil || !ok {
		t.Fatalf("append 1: want=true,nil got=%v,%v", ok, err)
	}
	ok, err = repo.AppendContentForJob(dbc, course.ID, jobID, types.ContentEntry{Section: "Basics", Subsection: strPtr("Vertices"), Explanation: "e2"})
	if err != nil || !ok {
		t.Fatalf("append 2: want=true,nil got=%v,%v", ok, err)
	}

	got, err := repo.GetByID(dbc, course.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Content) != 2 || got.Content[0].Explanation != "e1" || got.Content[1].Explanation != "e2" {
		t.Fatalf("content: want [e1 e2] got=%+v", got.Content)
	}
	if got.Content[0].Subsection != nil || got.Content[1].Subsection == nil || *got.Content[1].Subsection != "Vertices" {
		t.Fatalf("subsections: want [nil Vertices] got=%v,%v", got.Content[0].Subsection, got.Content[1].Subsection)
	}

	ok, err = repo.UpdateFieldsForJob(dbc, course.ID, jobID, map[string]interface{}{
		"status":         types.CourseStatusFailed,
		"failure_reason": "provider down",
	})
	if err != nil || !ok {
		t.Fatalf("fail write: want=true,nil got=%v,%v", ok, err)
	}

	// Terminal status blocks any further pipeline write.
	ok, err = repo.UpdateFieldsForJob(dbc, course.ID, jobID, map[string]interface{}{"status": types.CourseStatusCompleted})
	if err != nil || ok {
		t.Fatalf("write after failed: want=false,nil got=%v,%v", ok, err)
	}
	ok, err = repo.AppendContentForJob(dbc, course.ID, jobID, types.ContentEntry{Section: "Basics", Explanation: "late"})
	if err != nil || ok {
		t.Fatalf("append after failed: want=false,nil got=%v,%v", ok, err)
	}
	got, _ = repo.GetByID(dbc, course.ID)
	if got.Status != types.CourseStatusFailed || len(got.Content) != 2 {
		t.Fatalf("final: want failed with 2 entries got=%s with %d", got.Status, len(got.Content))
	}
}

func TestCourseRepoResetForRegeneration(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewCourseRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	owner := uuid.New()
	inFlight := testutil.SeedCourse(t, ctx, db, owner, "running", testutil.WithStatus(types.CourseStatusGeneratingContent))
	ok, err := repo.ResetForRegeneration(dbc, inFlight.ID, owner, types.DefaultCourseSettings(), uuid.New())
	if err != nil || ok {
		t.Fatalf("in-flight reset: want=false,nil got=%v,%v", ok, err)
	}

	done := testutil.SeedCourse(t, ctx, db, owner, "done",
		testutil.WithStatus(types.CourseStatusCompleted),
		testutil.WithOutline(types.Outline{{Section: "A", Subsections: []string{}}}),
		testutil.WithContent(types.ContentEntry{Section: "A", Explanation: "x"}),
	)
	if ok, _ := repo.ResetForRegeneration(dbc, done.ID, uuid.New(), types.DefaultCourseSettings(), uuid.New()); ok {
		t.Fatalf("reset by non-owner should not apply")
	}

	settings := types.DefaultCourseSettings()
	settings.Level = "advanced"
	jobID := uuid.New()
	ok, err = repo.ResetForRegeneration(dbc, done.ID, owner, settings, jobID)
	if err != nil || !ok {
		t.Fatalf("reset: want=true,nil got=%v,%v", ok, err)
	}
	got, _ := repo.GetByID(dbc, done.ID)
	if got.Status != types.CourseStatusGeneratingOutline {
		t.Fatalf("status: want=%s got=%s", types.CourseStatusGeneratingOutline, got.Status)
	}
	if len(got.Outline) != 0 || len(got.Content) != 0 {
		t.Fatalf("outline/content: want empty got=%d/%d", len(got.Outline), len(got.Content))
	}
	if got.CourseSettings().Level != "advanced" {
		t.Fatalf("level: want=advanced got=%s", got.CourseSettings().Level)
	}
	if got.ActiveJobID == nil || *got.ActiveJobID != jobID {
		t.Fatalf("active job: want=%s got=%v", jobID, got.ActiveJobID)
	}

	// A second reset while the new run is in flight is rejected.
	if ok, _ := repo.ResetForRegeneration(dbc, done.ID, owner, settings, uuid.New()); ok {
		t.Fatalf("second reset should be rejected while generating")
	}
}

func TestCourseRepoDeleteForOwner(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewCourseRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	owner := uuid.New()
	course := testutil.SeedCourse(t, ctx, db, owner, "bye")

	if ok, err := repo.DeleteForOwner(dbc, course.ID, uuid.New()); err != nil || ok {
		t.Fatalf("delete by stranger: want=false,nil got=%v,%v", ok, err)
	}
	if ok, err := repo.DeleteForOwner(dbc, course.ID, owner); err != nil || !ok {
		t.Fatalf("delete: want=true,nil got=%v,%v", ok, err)
	}
	if _, err := repo.GetByIDForOwner(dbc, course.ID, owner); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("get after delete: want=ErrNotFound got=%v", err)
	}
	if ok, _ := repo.DeleteForOwner(dbc, course.ID, owner); ok {
		t.Fatalf("second delete should report false")
	}
}
