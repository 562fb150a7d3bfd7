package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	CourseTitle string
	Description string

	// Content entry being written. Subsection is empty for the section overview.
	Section    string
	Subsection string

	// Settings
	Level                    string
	DetailLevel              string
	IncludeExamples          bool
	IncludePracticeQuestions bool

	// Structured outputs (quiz / flashcards)
	Content string
	Count   int
}
