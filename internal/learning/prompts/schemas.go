package prompts

func StringArraySchema() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

func IntSchema() map[string]any {
	return map[string]any{"type": "integer"}
}

func StringSchema() map[string]any {
	return map[string]any{"type": "string"}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func CourseOutlineSchema() map[string]any {
	return objectSchema(map[string]any{
		"sections": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"section":     StringSchema(),
				"subsections": StringArraySchema(),
			}, "section", "subsections"),
		},
	}, "sections")
}

func QuizSchema() map[string]any {
	return objectSchema(map[string]any{
		"questions": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"question":      StringSchema(),
				"options":       StringArraySchema(),
				"correct_index": IntSchema(),
				"explanation":   StringSchema(),
			}, "question", "options", "correct_index", "explanation"),
		},
	}, "questions")
}

func FlashcardsSchema() map[string]any {
	return objectSchema(map[string]any{
		"cards": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"front": StringSchema(),
				"back":  StringSchema(),
			}, "front", "back"),
		},
	}, "cards")
}

var schemasByName = map[string]func() map[string]any{
	"course_outline": CourseOutlineSchema,
	"quiz":           QuizSchema,
	"flashcards":     FlashcardsSchema,
}
