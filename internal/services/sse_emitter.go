package services

import (
	"context"

	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/realtime"
	"github.com/yungbote/studyforge-backend/internal/realtime/bus"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

type HubEmitter struct{ Hub *realtime.SSEHub }

func (e *HubEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil || e.Hub == nil {
		return
	}
	e.Hub.Broadcast(msg)
}

// RedisEmitter publishes to the bus; every process's forwarder delivers to
// its local hub. If publishing fails the message goes to the local hub.
type RedisEmitter struct {
	Bus      bus.Bus
	Fallback *realtime.SSEHub
	Log      *logger.Logger
}

func (e *RedisEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil || e.Bus == nil {
		return
	}
	if err := e.Bus.Publish(ctx, msg); err != nil {
		if e.Log != nil {
			e.Log.Warn("SSE bus publish failed; delivering locally", "event", msg.Event, "error", err)
		}
		if e.Fallback != nil {
			e.Fallback.Broadcast(msg)
		}
	}
}
