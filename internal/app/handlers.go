package app

import (
	"gorm.io/gorm"

	apphttp "github.com/yungbote/studyforge-backend/internal/http"
	httpH "github.com/yungbote/studyforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/studyforge-backend/internal/http/middleware"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/realtime"
)

func wireRouterConfig(db *gorm.DB, log *logger.Logger, cfg Config, svcs Services, hub *realtime.SSEHub, metrics *observability.Metrics) apphttp.RouterConfig {
	log.Info("Wiring handlers...")
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return apphttp.RouterConfig{
		Log:             log,
		ServiceName:     serviceName,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		Metrics:         metrics,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, svcs.Auth),
		CourseHandler:   httpH.NewCourseHandler(log, svcs.Course),
		JobHandler:      httpH.NewJobHandler(svcs.Jobs),
		RealtimeHandler: httpH.NewRealtimeHandler(log, hub, svcs.Course, cfg.CORSAllowedOrigins),
		HealthHandler:   httpH.NewHealthHandler(db),
	}
}
