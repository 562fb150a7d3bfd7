package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	pkgerrors "github.com/yungbote/studyforge-backend/internal/pkg/errors"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// JobWaker is notified when new work is committed so idle workers do not
// wait for their next poll.
type JobWaker interface {
	Wake()
}

type JobService interface {
	// Enqueue inserts a queued job_run. Inside a transaction (dbc.Tx set) the
	// caller must call Dispatch after commit.
	Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	Dispatch(job *types.JobRun)
	GetByIDForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
	GetLatestForEntity(dbc dbctx.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
	CancelForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID) (int64, error)
	SetWaker(w JobWaker)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	notify JobNotifier

	mu    sync.RWMutex
	waker JobWaker
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, notify JobNotifier) JobService {
	return &jobService{
		db:     db,
		log:    baseLog.With("service", "JobService"),
		repo:   repo,
		notify: notify,
	}
}

func (s *jobService) SetWaker(w JobWaker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waker = w
}

func (s *jobService) Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_user_id")
	}
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Context()); td != nil {
		if _, ok := payload["trace_id"]; !ok && td.TraceID != "" {
			payload["trace_id"] = td.TraceID
		}
		if _, ok := payload["request_id"]; !ok && td.RequestID != "" {
			payload["request_id"] = td.RequestID
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	now := time.Now().UTC()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      types.JobStatusQueued,
		Stage:       "queued",
		Message:     "Queued",
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.log.Debug("Job enqueued", "job_id", job.ID, "job_type", jobType, "owner_user_id", ownerUserID)

	if dbc.Tx == nil {
		s.Dispatch(job)
	}
	return job, nil
}

func (s *jobService) Dispatch(job *types.JobRun) {
	if job == nil {
		return
	}
	s.notify.JobCreated(job.OwnerUserID, job)
	s.mu.RLock()
	w := s.waker
	s.mu.RUnlock()
	if w != nil {
		w.Wake()
	}
}

func (s *jobService) GetByIDForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	userID := ctxutil.UserID(dbc.Context())
	if userID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
	}
	job, err := s.repo.GetByIDForOwner(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, jobID, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apierr.New(http.StatusNotFound, "job_not_found", fmt.Errorf("job not found"))
		}
		return nil, apierr.New(http.StatusInternalServerError, "store_failure", err)
	}
	return job, nil
}

func (s *jobService) GetLatestForEntity(dbc dbctx.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	return s.repo.GetLatestByEntity(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, ownerUserID, entityType, entityID, jobType)
}

func (s *jobService) CancelForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID) (int64, error) {
	n, err := s.repo.CancelRunnableForEntity(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, entityType, entityID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("Canceled runnable jobs", "entity_type", entityType, "entity_id", entityID, "count", n)
	}
	return n, nil
}
