package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/db"
	"github.com/yungbote/studyforge-backend/internal/data/repos"
	apphttp "github.com/yungbote/studyforge-backend/internal/http"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/realtime"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Set
	Clients  Clients
	Services Services
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics

	// Server is nil when RUN_SERVER is off.
	Server *apphttp.Server

	dbService    *db.Service
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg := LoadConfig()
	log, err := logger.NewWithLevel(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.JWTSecretKey == DevJWTSecret {
		log.Warn("JWT_SECRET_KEY not set; using development secret")
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.Init(cfg.MetricsEnabled)

	dbService, err := db.NewService(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("db automigrate: %w", err)
	}
	theDB := dbService.DB()

	hub := realtime.NewSSEHub(log)
	reposet := repos.New(theDB, log)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	if cfg.RunServer != cfg.RunWorker && clients.Bus == nil {
		log.Warn("API and worker run in separate processes without REDIS_ADDR; realtime events will not cross processes")
	}

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, emitterFor(log, clients, hub))
	if err != nil {
		clients.Close()
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		SSEHub:       hub,
		Metrics:      metrics,
		dbService:    dbService,
		otelShutdown: otelShutdown,
	}
	if cfg.RunServer {
		a.Server = apphttp.NewServer(":"+cfg.Port, wireRouterConfig(theDB, log, cfg, serviceset, hub, metrics))
	}
	return a, nil
}

// Start runs the enabled roles until ctx is cancelled or one of them fails.
func (a *App) Start(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	if a.Clients.Bus != nil && a.Cfg.RunServer {
		// Only processes holding SSE clients need the forwarder.
		if err := a.Clients.Bus.StartForwarder(gctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start bus forwarder: %w", err)
		}
	}

	a.Metrics.StartJobQueueCollector(gctx, a.Log, a.DB, 15*time.Second)

	if w := a.Services.Worker; w != nil {
		g.Go(func() error {
			a.Log.Info("Job worker started")
			return w.Run(gctx)
		})
	}

	if a.Server != nil {
		g.Go(func() error {
			a.Log.Info("HTTP server listening", "port", a.Cfg.Port)
			return a.Server.Run()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.Server.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		// Cancellation errors from the worker on a requested shutdown.
		a.Log.Debug("shutdown with pending error", "error", err)
		return nil
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("db close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	a.Log.Sync()
}
