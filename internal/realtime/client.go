package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

const outboundBuffer = 32

type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	Logger   *logger.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func (c *SSEClient) Done() <-chan struct{} { return c.done }
