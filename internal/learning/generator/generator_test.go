package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type fakeLLM struct {
	mu       sync.Mutex
	textErrs []error
	jsonErrs []error
	text     string
	obj      map[string]any
	block    bool

	textCalls int
	jsonCalls int
	lastUser  string
	lastName  string
}

func (f *fakeLLM) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.textCalls++
	f.lastUser = user
	var err error
	if len(f.textErrs) > 0 {
		err, f.textErrs = f.textErrs[0], f.textErrs[1:]
	}
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return f.text, nil
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jsonCalls++
	f.lastUser = user
	f.lastName = schemaName
	if len(f.jsonErrs) > 0 {
		err := f.jsonErrs[0]
		f.jsonErrs = f.jsonErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.obj, nil
}

func newTestGenerator(llm LLM, cfg Config) Generator {
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Millisecond
		cfg.MaxBackoff = 2 * time.Millisecond
	}
	return New(logger.NewNop(), llm, cfg)
}

func graphsOutline() map[string]any {
	return map[string]any{
		"sections": []any{
			map[string]any{"section": "Graph Basics", "subsections": []any{"Vertices", " ", "Edges"}},
			map[string]any{"section": "Traversal", "subsections": []any{}},
			map[string]any{"section": "  ", "subsections": []any{"orphan"}},
		},
	}
}

func TestSynthesizeOutline(t *testing.T) {
	llm := &fakeLLM{obj: graphsOutline()}
	g := newTestGenerator(llm, Config{MaxAttempts: 3})

	outline, err := g.SynthesizeOutline(context.Background(), "Intro to Graphs", "", domain.DefaultCourseSettings())
	if err != nil {
		t.Fatalf("SynthesizeOutline: %v", err)
	}
	if len(outline) != 2 {
		t.Fatalf("sections: want=2 got=%d", len(outline))
	}
	if got := outline[0].Subsections; len(got) != 2 || got[0] != "Vertices" || got[1] != "Edges" {
		t.Fatalf("subsections: want=[Vertices Edges] got=%v", got)
	}
	if outline.EntryCount() != 4 {
		t.Fatalf("entries: want=4 got=%d", outline.EntryCount())
	}
	if llm.lastName != "course_outline" || !strings.Contains(llm.lastUser, "Intro to Graphs") {
		t.Fatalf("unexpected prompt: schema=%q user=%q", llm.lastName, llm.lastUser)
	}
}

func TestSynthesizeOutlineEmptyFails(t *testing.T) {
	llm := &fakeLLM{obj: map[string]any{"sections": []any{}}}
	g := newTestGenerator(llm, Config{MaxAttempts: 3})

	_, err := g.SynthesizeOutline(context.Background(), "Intro to Graphs", "", domain.DefaultCourseSettings())
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("want=ErrGenerationFailed got=%v", err)
	}
	if llm.jsonCalls != 1 {
		t.Fatalf("calls: want=1 got=%d", llm.jsonCalls)
	}
}

func TestSynthesizeOutlineMalformedIsPermanent(t *testing.T) {
	llm := &fakeLLM{obj: map[string]any{"sections": "not-a-list"}}
	g := newTestGenerator(llm, Config{MaxAttempts: 3})

	_, err := g.SynthesizeOutline(context.Background(), "Intro to Graphs", "", domain.DefaultCourseSettings())
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("want=ErrGenerationFailed got=%v", err)
	}
}

func TestTransientErrorsAreRetried(t *testing.T) {
	llm := &fakeLLM{
		obj:      graphsOutline(),
		jsonErrs: []error{status.Error(codes.Unavailable, "overloaded"), status.Error(codes.ResourceExhausted, "quota")},
	}
	g := newTestGenerator(llm, Config{MaxAttempts: 3})

	if _, err := g.SynthesizeOutline(context.Background(), "Intro to Graphs", "", domain.DefaultCourseSettings()); err != nil {
		t.Fatalf("SynthesizeOutline: %v", err)
	}
	if llm.jsonCalls != 3 {
		t.Fatalf("calls: want=3 got=%d", llm.jsonCalls)
	}
}

func TestRetriesAreBounded(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "overloaded")
	llm := &fakeLLM{textErrs: []error{unavailable, unavailable, unavailable, unavailable}}
	g := newTestGenerator(llm, Config{MaxAttempts: 2})

	_, err := g.SynthesizeSectionContent(context.Background(), "Intro to Graphs", "Traversal", nil, domain.DefaultCourseSettings())
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("want=ErrGenerationFailed got=%v", err)
	}
	if llm.textCalls != 2 {
		t.Fatalf("calls: want=2 got=%d", llm.textCalls)
	}
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	llm := &fakeLLM{textErrs: []error{status.Error(codes.InvalidArgument, "bad request")}}
	g := newTestGenerator(llm, Config{MaxAttempts: 3})

	_, err := g.SynthesizeSectionContent(context.Background(), "Intro to Graphs", "Traversal", nil, domain.DefaultCourseSettings())
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("want=ErrGenerationFailed got=%v", err)
	}
	if llm.textCalls != 1 {
		t.Fatalf("calls: want=1 got=%d", llm.textCalls)
	}
}

func TestCallTimeout(t *testing.T) {
	llm := &fakeLLM{block: true}
	g := newTestGenerator(llm, Config{MaxAttempts: 1, CallTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := g.SynthesizeSectionContent(context.Background(), "Intro to Graphs", "Traversal", nil, domain.DefaultCourseSettings())
	if !errors.Is(err, ErrGenerationFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want generation failure caused by deadline got=%v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("call was not bounded by the timeout")
	}
}

func TestSectionContentPrompt(t *testing.T) {
	llm := &fakeLLM{text: "  Vertices are the nodes.  "}
	g := newTestGenerator(llm, Config{MaxAttempts: 1})
	sub := "Vertices"

	text, err := g.SynthesizeSectionContent(context.Background(), "Intro to Graphs", "Graph Basics", &sub, domain.DefaultCourseSettings())
	if err != nil {
		t.Fatalf("SynthesizeSectionContent: %v", err)
	}
	if text != "Vertices are the nodes." {
		t.Fatalf("text: want=%q got=%q", "Vertices are the nodes.", text)
	}
	if !strings.Contains(llm.lastUser, "Subsection: Vertices") {
		t.Fatalf("prompt missing subsection: %q", llm.lastUser)
	}
}

func TestEmptySectionContentFails(t *testing.T) {
	llm := &fakeLLM{text: "   "}
	g := newTestGenerator(llm, Config{MaxAttempts: 2})

	_, err := g.SynthesizeSectionContent(context.Background(), "Intro to Graphs", "Traversal", nil, domain.DefaultCourseSettings())
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("want=ErrGenerationFailed got=%v", err)
	}
	if llm.textCalls != 2 {
		t.Fatalf("calls: want=2 got=%d", llm.textCalls)
	}
}

func TestSynthesizeStructured(t *testing.T) {
	llm := &fakeLLM{obj: map[string]any{"cards": []any{map[string]any{"front": "Vertex", "back": "A node"}}}}
	g := newTestGenerator(llm, Config{MaxAttempts: 1})

	out, err := g.SynthesizeStructured(context.Background(), "Graphs have vertices.", StructuredHint{Kind: "flashcards", Count: 5}, domain.DefaultCourseSettings())
	if err != nil {
		t.Fatalf("SynthesizeStructured: %v", err)
	}
	if _, ok := out["cards"]; !ok {
		t.Fatalf("missing cards: %v", out)
	}
	if llm.lastName != "flashcards" || !strings.Contains(llm.lastUser, "Write 5 flashcards") {
		t.Fatalf("unexpected prompt: schema=%q user=%q", llm.lastName, llm.lastUser)
	}

	if _, err := g.SynthesizeStructured(context.Background(), "x", StructuredHint{Kind: "essay", Count: 1}, domain.DefaultCourseSettings()); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("unknown hint: want=ErrGenerationFailed got=%v", err)
	}
}
