package learning

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	pkgerrors "github.com/yungbote/studyforge-backend/internal/pkg/errors"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type CourseRepo interface {
	Create(dbc dbctx.Context, course *types.Course) (*types.Course, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	GetByIDForOwner(dbc dbctx.Context, id uuid.UUID, ownerUserID uuid.UUID) (*types.Course, error)
	ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.Course, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsForJob(dbc dbctx.Context, id uuid.UUID, jobID uuid.UUID, updates map[string]interface{}) (bool, error)
	AppendContentForJob(dbc dbctx.Context, id uuid.UUID, jobID uuid.UUID, entry types.ContentEntry) (bool, error)
	ResetForRegeneration(dbc dbctx.Context, id uuid.UUID, ownerUserID uuid.UUID, settings types.CourseSettings, jobID uuid.UUID) (bool, error)
	DeleteForOwner(dbc dbctx.Context, id uuid.UUID, ownerUserID uuid.UUID) (bool, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{
		db:  db,
		log: baseLog.With("repo", "CourseRepo"),
	}
}

func (r *courseRepo) Create(dbc dbctx.Context, course *types.Course) (*types.Course, error) {
	transaction := dbc.DB(r.db)
	if course == nil {
		return nil, fmt.Errorf("nil course")
	}
	if course.OwnerUserID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_user_id")
	}
	now := time.Now().UTC()
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}
	course.Status = types.CourseStatusGeneratingOutline
	course.Outline = datatypes.JSONSlice[types.OutlineSection]{}
	course.Content = datatypes.JSONSlice[types.ContentEntry]{}
	course.FailureReason = ""
	course.CreatedAt = now
	course.UpdatedAt = now
	if err := transaction.WithContext(dbc.Context()).Create(course).Error; err != nil {
		return nil, err
	}
	return course, nil
}

func (r *courseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	transaction := dbc.DB(r.db)
	var course types.Course
	err := transaction.WithContext(dbc.Context()).
		Where("id = ?", id).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	course.Normalize()
	return &course, nil
}

// GetByIDForOwner treats a course owned by someone else exactly like a
// missing one.
func (r *courseRepo) GetByIDForOwner(dbc dbctx.Context, id uuid.UUID, ownerUserID uuid.UUID) (*types.Course, error) {
	transaction := dbc.DB(r.db)
	if id == uuid.Nil || ownerUserID == uuid.Nil {
		return nil, pkgerrors.ErrNotFound
	}
	var course types.Course
	err := transaction.WithContext(dbc.Context()).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	course.Normalize()
	return &course, nil
}

func (r *courseRepo) ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.Course, error) {
	transaction := dbc.DB(r.db)
	out := []*types.Course{}
	if ownerUserID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Context()).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	for _, c := range out {
		c.Normalize()
	}
	return out, nil
}

func (r *courseRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.DB(r.db)
	if id == uuid.Nil {
		return nil
	}
	updates = withUpdatedAt(updates)
	return transaction.WithContext(dbc.Context()).
		Model(&types.Course{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsForJob applies updates only while jobID is the course's active
// run and the course is still generating. Reports whether a row changed.
func (r *courseRepo) UpdateFieldsForJob(dbc dbctx.Context, id uuid.UUID, jobID uuid.UUID, updates map[string]interface{}) (bool, error) {
	transaction := dbc.DB(r.db)
	if id == uuid.Nil || jobID == uuid.Nil {
		return false, nil
	}
	updates = withUpdatedAt(updates)
	res := transaction.WithContext(dbc.Context()).
		Model(&types.Course{}).
		Where("id = ? AND active_job_id = ? AND status IN ?", id, jobID, types.ActiveCourseStatuses()).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *courseRepo) AppendContentForJob(dbc dbctx.Context, id uuid.UUID, jobID uuid.UUID, entry types.ContentEntry) (bool, error) {
	transaction := dbc.DB(r.db)
	if id == uuid.Nil || jobID == uuid.Nil {
		return false, nil
	}
	appended := false
	err := transaction.WithContext(dbc.Context()).Transaction(func(txx *gorm.DB) error {
		var course types.Course
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND active_job_id = ? AND status = ?", id, jobID, types.CourseStatusGeneratingContent).
			First(&course).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		content := append(datatypes.JSONSlice[types.ContentEntry]{}, course.Content...)
		content = append(content, entry)
		if err := txx.Model(&types.Course{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"content":    content,
				"updated_at": time.Now().UTC(),
			}).Error; err != nil {
			return err
		}
		appended = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return appended, nil
}

// ResetForRegeneration is a single conditional update: it only succeeds when
// the course is owned by ownerUserID and in a terminal status, so two
// concurrent requests cannot both start a run.
func (r *courseRepo) ResetForRegeneration(dbc dbctx.Context, id uuid.UUID, ownerUserID uuid.UUID, settings types.CourseSettings, jobID uuid.UUID) (bool, error) {
	transaction := dbc.DB(r.db)
	if id == uuid.Nil || ownerUserID == uuid.Nil || jobID == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(dbc.Context()).
		Model(&types.Course{}).
		Where("id = ? AND owner_user_id = ? AND status IN ?", id, ownerUserID, []string{types.CourseStatusCompleted, types.CourseStatusFailed}).
		Updates(map[string]interface{}{
			"settings":       datatypes.NewJSONType(settings),
			"outline":        datatypes.JSONSlice[types.OutlineSection]{},
			"content":        datatypes.JSONSlice[types.ContentEntry]{},
			"status":         types.CourseStatusGeneratingOutline,
			"failure_reason": "",
			"active_job_id":  jobID,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *courseRepo) DeleteForOwner(dbc dbctx.Context, id uuid.UUID, ownerUserID uuid.UUID) (bool, error) {
	transaction := dbc.DB(r.db)
	if id == uuid.Nil || ownerUserID == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(dbc.Context()).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		Delete(&types.Course{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func withUpdatedAt(updates map[string]interface{}) map[string]interface{} {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return updates
}
