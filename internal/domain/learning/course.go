package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CourseStatusGeneratingOutline = "generating_outline"
	CourseStatusGeneratingContent = "generating_content"
	CourseStatusCompleted         = "completed"
	CourseStatusFailed            = "failed"
)

// Course is a generated course and its generation lifecycle. Outline and
// Content are always arrays (possibly empty), never null.
type Course struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index:idx_course_owner_created,priority:1" json:"owner_user_id"`

	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description;type:text" json:"description"`

	Settings datatypes.JSONType[CourseSettings]  `gorm:"column:settings" json:"settings"`
	Outline  datatypes.JSONSlice[OutlineSection] `gorm:"column:outline" json:"outline"`
	Content  datatypes.JSONSlice[ContentEntry]   `gorm:"column:content" json:"content"`

	Status        string     `gorm:"column:status;not null;index" json:"status"`
	FailureReason string     `gorm:"column:failure_reason;type:text" json:"failure_reason,omitempty"`
	ActiveJobID   *uuid.UUID `gorm:"type:uuid;column:active_job_id;index" json:"active_job_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_course_owner_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Course) TableName() string { return "course" }

// Normalize replaces nil outline/content with empty arrays.
func (c *Course) Normalize() {
	if c == nil {
		return
	}
	if c.Outline == nil {
		c.Outline = datatypes.JSONSlice[OutlineSection]{}
	}
	if c.Content == nil {
		c.Content = datatypes.JSONSlice[ContentEntry]{}
	}
}

func (c *Course) CourseSettings() CourseSettings {
	if c == nil {
		return DefaultCourseSettings()
	}
	return c.Settings.Data()
}

func IsTerminalCourseStatus(status string) bool {
	return status == CourseStatusCompleted || status == CourseStatusFailed
}

// ActiveCourseStatuses are the statuses during which a pipeline run may write.
func ActiveCourseStatuses() []string {
	return []string{CourseStatusGeneratingOutline, CourseStatusGeneratingContent}
}
