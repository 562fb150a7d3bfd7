package learning

const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"

	DetailBasic         = "basic"
	DetailModerate      = "moderate"
	DetailComprehensive = "comprehensive"
)

type CourseSettings struct {
	Level                    string `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	IncludeExamples          bool   `json:"include_examples"`
	IncludePracticeQuestions bool   `json:"include_practice_questions"`
	DetailLevel              string `json:"detail_level" validate:"required,oneof=basic moderate comprehensive"`
}

func DefaultCourseSettings() CourseSettings {
	return CourseSettings{
		Level:                    LevelBeginner,
		IncludeExamples:          true,
		IncludePracticeQuestions: false,
		DetailLevel:              DetailModerate,
	}
}

// SettingsOverride is a partial CourseSettings; nil fields keep the base value.
type SettingsOverride struct {
	Level                    *string `json:"level,omitempty"`
	IncludeExamples          *bool   `json:"include_examples,omitempty"`
	IncludePracticeQuestions *bool   `json:"include_practice_questions,omitempty"`
	DetailLevel              *string `json:"detail_level,omitempty"`
}

func (s CourseSettings) Merge(o *SettingsOverride) CourseSettings {
	if o == nil {
		return s
	}
	out := s
	if o.Level != nil {
		out.Level = *o.Level
	}
	if o.IncludeExamples != nil {
		out.IncludeExamples = *o.IncludeExamples
	}
	if o.IncludePracticeQuestions != nil {
		out.IncludePracticeQuestions = *o.IncludePracticeQuestions
	}
	if o.DetailLevel != nil {
		out.DetailLevel = *o.DetailLevel
	}
	return out
}
