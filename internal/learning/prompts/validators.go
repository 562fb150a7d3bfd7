package prompts

import (
	"fmt"
	"strings"
)

type Validator func(Input) error

func RequireNonEmpty(field string, get func(Input) string) Validator {
	return func(in Input) error {
		if get == nil {
			return fmt.Errorf("validator for %s: getter is nil", field)
		}
		if strings.TrimSpace(get(in)) == "" {
			return fmt.Errorf("%s required", field)
		}
		return nil
	}
}

func RequirePositive(field string, get func(Input) int) Validator {
	return func(in Input) error {
		if get(in) <= 0 {
			return fmt.Errorf("%s must be positive", field)
		}
		return nil
	}
}

var validatorsByPrompt = map[PromptName][]Validator{
	PromptCourseOutline: {
		RequireNonEmpty("CourseTitle", func(in Input) string { return in.CourseTitle }),
	},
	PromptSectionContent: {
		RequireNonEmpty("CourseTitle", func(in Input) string { return in.CourseTitle }),
		RequireNonEmpty("Section", func(in Input) string { return in.Section }),
	},
	PromptQuiz: {
		RequireNonEmpty("Content", func(in Input) string { return in.Content }),
		RequirePositive("Count", func(in Input) int { return in.Count }),
	},
	PromptFlashcards: {
		RequireNonEmpty("Content", func(in Input) string { return in.Content }),
		RequirePositive("Count", func(in Input) int { return in.Count }),
	},
}
