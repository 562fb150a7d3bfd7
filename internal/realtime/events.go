package realtime

type SSEEvent string

const (
	SSEEventJobCreated  SSEEvent = "JobCreated"
	SSEEventJobProgress SSEEvent = "JobProgress"
	SSEEventJobFailed   SSEEvent = "JobFailed"
	SSEEventJobDone     SSEEvent = "JobDone"

	SSEEventCourseGenerationQueued   SSEEvent = "CourseGenerationQueued"
	SSEEventCourseGenerationProgress SSEEvent = "CourseGenerationProgress"
	SSEEventCourseGenerationFailed   SSEEvent = "CourseGenerationFailed"
	SSEEventCourseGenerationDone     SSEEvent = "CourseGenerationDone"
	SSEEventCourseDeleted            SSEEvent = "CourseDeleted"
)

// SSEMessage is delivered to every client subscribed to Channel. Channels
// are user ids.
type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// CourseID extracts data.course_id when present, used to filter per-course streams.
func (m SSEMessage) CourseID() string {
	data, ok := m.Data.(map[string]any)
	if !ok {
		return ""
	}
	switch v := data["course_id"].(type) {
	case string:
		return v
	case interface{ String() string }:
		return v.String()
	default:
		return ""
	}
}
