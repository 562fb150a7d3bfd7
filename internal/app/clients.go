package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/studyforge-backend/internal/platform/gemini"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/realtime"
	"github.com/yungbote/studyforge-backend/internal/realtime/bus"
	"github.com/yungbote/studyforge-backend/internal/services"
)

type Clients struct {
	Gemini gemini.Client
	// Bus is nil when REDIS_ADDR is unset; notifications then stay in-process.
	Bus bus.Bus
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	gc, err := gemini.NewClient(ctx, log, cfg.Gemini)
	if err != nil {
		return Clients{}, fmt.Errorf("init gemini: %w", err)
	}
	out := Clients{Gemini: gc}
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		b, err := bus.NewRedisBus(log, cfg.Redis)
		if err != nil {
			_ = gc.Close()
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		out.Bus = b
	}
	return out, nil
}

// emitterFor picks where notifications go: the Redis bus when configured,
// otherwise straight to this process's hub.
func emitterFor(log *logger.Logger, clients Clients, hub *realtime.SSEHub) services.SSEEmitter {
	if clients.Bus != nil {
		return &services.RedisEmitter{Bus: clients.Bus, Fallback: hub, Log: log}
	}
	return &services.HubEmitter{Hub: hub}
}

func (c Clients) Close() {
	if c.Gemini != nil {
		_ = c.Gemini.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
}
