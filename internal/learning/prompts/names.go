package prompts

type PromptName string

const (
	PromptCourseOutline  PromptName = "course_outline"
	PromptSectionContent PromptName = "section_content"
	PromptQuiz           PromptName = "quiz"
	PromptFlashcards     PromptName = "flashcards"
)

// StructuredPrompt maps a structured-output hint ("quiz", "flashcards") to
// the prompt that produces it.
func StructuredPrompt(hint string) (PromptName, bool) {
	switch PromptName(hint) {
	case PromptQuiz:
		return PromptQuiz, true
	case PromptFlashcards:
		return PromptFlashcards, true
	default:
		return "", false
	}
}
