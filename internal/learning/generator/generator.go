package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/learning/prompts"
	"github.com/yungbote/studyforge-backend/internal/platform/gemini"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// ErrGenerationFailed wraps every error returned by the generator.
var ErrGenerationFailed = errors.New("generation failed")

var (
	errEmptyOutline = errors.New("outline has no sections")
	errEmptyText    = errors.New("empty content")
)

// maxStructuredContentChars caps the course text sent for quiz/flashcards.
const maxStructuredContentChars = 60000

// LLM is the slice of the provider client the generator needs.
type LLM interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

type StructuredHint struct {
	Kind  string // "quiz" | "flashcards"
	Count int
}

type Generator interface {
	SynthesizeOutline(ctx context.Context, title, description string, settings domain.CourseSettings) (domain.Outline, error)
	SynthesizeSectionContent(ctx context.Context, courseTitle, section string, subsection *string, settings domain.CourseSettings) (string, error)
	SynthesizeStructured(ctx context.Context, content string, hint StructuredHint, settings domain.CourseSettings) (map[string]any, error)
}

type Config struct {
	// CallTimeout bounds a single provider call. Zero disables the bound.
	CallTimeout time.Duration
	// MaxAttempts per call; 1 means no retry.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// IsTransient decides which provider errors are retried. Defaults to gemini.IsTransient.
	IsTransient func(error) bool
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.IsTransient == nil {
		c.IsTransient = gemini.IsTransient
	}
	return c
}

type generator struct {
	log *logger.Logger
	llm LLM
	cfg Config
}

func New(log *logger.Logger, llm LLM, cfg Config) Generator {
	return &generator{
		log: log.With("service", "ContentGenerator"),
		llm: llm,
		cfg: cfg.withDefaults(),
	}
}

func settingsInput(s domain.CourseSettings) prompts.Input {
	return prompts.Input{
		Level:                    s.Level,
		DetailLevel:              s.DetailLevel,
		IncludeExamples:          s.IncludeExamples,
		IncludePracticeQuestions: s.IncludePracticeQuestions,
	}
}

func (g *generator) SynthesizeOutline(ctx context.Context, title, description string, settings domain.CourseSettings) (domain.Outline, error) {
	in := settingsInput(settings)
	in.CourseTitle = strings.TrimSpace(title)
	in.Description = strings.TrimSpace(description)
	p, err := prompts.Build(prompts.PromptCourseOutline, in)
	if err != nil {
		return nil, fmt.Errorf("%w: outline prompt: %w", ErrGenerationFailed, err)
	}

	obj, err := g.generateJSON(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: outline: %w", ErrGenerationFailed, err)
	}
	var parsed struct {
		Sections domain.Outline `json:"sections"`
	}
	if err := decodeInto(obj, &parsed); err != nil {
		return nil, fmt.Errorf("%w: outline: %w", ErrGenerationFailed, err)
	}
	outline := parsed.Sections.Clean()
	if len(outline) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, errEmptyOutline)
	}
	g.log.Debug("Outline synthesized", "title", in.CourseTitle, "sections", len(outline), "entries", outline.EntryCount())
	return outline, nil
}

func (g *generator) SynthesizeSectionContent(ctx context.Context, courseTitle, section string, subsection *string, settings domain.CourseSettings) (string, error) {
	in := settingsInput(settings)
	in.CourseTitle = strings.TrimSpace(courseTitle)
	in.Section = strings.TrimSpace(section)
	if subsection != nil {
		in.Subsection = strings.TrimSpace(*subsection)
	}
	p, err := prompts.Build(prompts.PromptSectionContent, in)
	if err != nil {
		return "", fmt.Errorf("%w: content prompt: %w", ErrGenerationFailed, err)
	}
	text, err := retryCall(ctx, g, p.Name, func(callCtx context.Context) (string, error) {
		out, err := g.llm.GenerateText(callCtx, p.System, p.User)
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", errEmptyText
		}
		return out, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: content %q: %w", ErrGenerationFailed, entryLabel(in.Section, in.Subsection), err)
	}
	return text, nil
}

func (g *generator) SynthesizeStructured(ctx context.Context, content string, hint StructuredHint, settings domain.CourseSettings) (map[string]any, error) {
	name, ok := prompts.StructuredPrompt(hint.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown structured output %q", ErrGenerationFailed, hint.Kind)
	}
	in := settingsInput(settings)
	in.Content = truncate(strings.TrimSpace(content), maxStructuredContentChars)
	in.Count = hint.Count
	p, err := prompts.Build(name, in)
	if err != nil {
		return nil, fmt.Errorf("%w: %s prompt: %w", ErrGenerationFailed, hint.Kind, err)
	}
	obj, err := g.generateJSON(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrGenerationFailed, hint.Kind, err)
	}
	return obj, nil
}

func (g *generator) generateJSON(ctx context.Context, p prompts.Prompt) (map[string]any, error) {
	return retryCall(ctx, g, p.Name, func(callCtx context.Context) (map[string]any, error) {
		obj, err := g.llm.GenerateJSON(callCtx, p.System, p.User, p.SchemaName, p.Schema)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			return nil, errors.New("null JSON object")
		}
		return obj, nil
	})
}

// retryCall runs one provider call under the per-call timeout, retrying
// transient failures with exponential backoff.
func retryCall[T any](ctx context.Context, g *generator, op string, call func(context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		callCtx, cancel := g.callContext(ctx)
		defer cancel()
		res, err := call(callCtx)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, backoff.Permanent(ctx.Err())
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		if !g.cfg.IsTransient(err) && !errors.Is(err, errEmptyText) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = g.cfg.InitialBackoff
	eb.MaxInterval = g.cfg.MaxBackoff

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(g.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			g.log.Warn("Provider call failed; retrying", "op", op, "attempt", attempt, "wait", wait.String(), "error", err)
		}),
	)
}

func (g *generator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, g.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func decodeInto(obj map[string]any, dst any) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("re-encode response: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func entryLabel(section, subsection string) string {
	if subsection == "" {
		return section
	}
	return section + " / " + subsection
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
