package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yungbote/studyforge-backend/internal/http/response"
	"github.com/yungbote/studyforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/realtime"
	"github.com/yungbote/studyforge-backend/internal/services"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// SnapshotEvent is the first WebSocket frame: the course as it is now.
const SnapshotEvent realtime.SSEEvent = "CourseSnapshot"

type RealtimeHandler struct {
	log      *logger.Logger
	hub      *realtime.SSEHub
	courses  services.CourseService
	upgrader websocket.Upgrader
}

// NewRealtimeHandler serves the owner's event channel over SSE and a
// per-course filtered view of it over WebSocket. allowedOrigins empty
// accepts any origin.
func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, courses services.CourseService, allowedOrigins []string) *RealtimeHandler {
	return &RealtimeHandler{
		log:     log.With("handler", "RealtimeHandler"),
		hub:     hub,
		courses: courses,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// GET /api/sse/stream
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	userID := ctxutil.UserID(c.Request.Context())
	client := h.hub.NewSSEClient(userID)
	h.hub.AddChannel(client, userID.String())
	defer h.hub.CloseClient(client)

	h.log.Debug("SSE stream open", "client_id", client.ID, "owner_user_id", userID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}

// GET /api/ws/courses/:id
func (h *RealtimeHandler) CourseSocket(c *gin.Context) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}
	userID := ctxutil.UserID(c.Request.Context())
	course, err := h.courses.Get(c.Request.Context(), userID, courseID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("WebSocket upgrade failed", "course_id", courseID, "error", err)
		return
	}
	defer conn.Close()

	client := h.hub.NewSSEClient(userID)
	h.hub.AddChannel(client, userID.String())
	defer h.hub.CloseClient(client)

	log := h.log.With("course_id", courseID, "client_id", client.ID)
	log.Debug("WebSocket open")

	// Reader: only control frames are expected; any error ends the session.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(msg realtime.SSEMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug("WebSocket write failed", "error", err)
			return false
		}
		return true
	}
	if !write(realtime.SSEMessage{Channel: userID.String(), Event: SnapshotEvent, Data: course}) {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	want := courseID.String()
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case msg, ok := <-client.Outbound:
			if !ok {
				return
			}
			if msg.CourseID() != want {
				continue
			}
			if !write(msg) {
				return
			}
			if msg.Event == realtime.SSEEventCourseDeleted {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "course deleted"),
					time.Now().Add(wsWriteWait))
				return
			}
		}
	}
}
