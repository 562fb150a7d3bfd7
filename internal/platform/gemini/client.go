package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

var (
	ErrEmptyResponse = errors.New("gemini: empty response")
	ErrBlocked       = errors.New("gemini: response blocked")
	ErrInvalidJSON   = errors.New("gemini: response is not valid JSON")
)

type Client interface {
	// Plain text (no schema)
	GenerateText(ctx context.Context, system string, user string) (string, error)

	// Structured output constrained by a JSON schema
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)

	Close() error
}

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
}

type client struct {
	log    *logger.Logger
	genai  *genai.Client
	config Config
}

func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &client{
		log:    log.With("client", "GeminiClient", "model", cfg.Model),
		genai:  gc,
		config: cfg,
	}, nil
}

func (c *client) model(system string) *genai.GenerativeModel {
	m := c.genai.GenerativeModel(c.config.Model)
	if strings.TrimSpace(system) != "" {
		m.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	if c.config.Temperature > 0 {
		m.SetTemperature(c.config.Temperature)
	}
	if c.config.MaxTokens > 0 {
		m.SetMaxOutputTokens(c.config.MaxTokens)
	}
	return m
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	resp, err := c.generate(ctx, c.model(system), "text", user)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// generate runs one provider call and records it in the metrics registry.
func (c *client) generate(ctx context.Context, m *genai.GenerativeModel, kind string, user string) (*genai.GenerateContentResponse, error) {
	start := time.Now()
	resp, err := m.GenerateContent(ctx, genai.Text(user))
	err = classify(err)

	status := "ok"
	switch {
	case errors.Is(err, ErrBlocked):
		status = "blocked"
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	var in, out int
	if resp != nil && resp.UsageMetadata != nil {
		in = int(resp.UsageMetadata.PromptTokenCount)
		out = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	observability.Current().ObserveLLMRequest(c.config.Model, kind, status, time.Since(start), in, out)
	return resp, err
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	m := c.model(system)
	m.ResponseMIMEType = "application/json"
	if schema != nil {
		m.ResponseSchema = SchemaFromMap(schema)
	}
	resp, err := c.generate(ctx, m, "json", user)
	if err != nil {
		return nil, err
	}
	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &out); err != nil {
		c.log.Warn("Structured response did not parse", "schema", schemaName, "error", err)
		return nil, fmt.Errorf("%w (%s): %v", ErrInvalidJSON, schemaName, err)
	}
	return out, nil
}

func (c *client) Close() error {
	if c == nil || c.genai == nil {
		return nil
	}
	return c.genai.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason.String())
		}
		return "", ErrEmptyResponse
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: %v", ErrBlocked, err)
	}
	return err
}

// stripCodeFence removes a ```json fence some models add despite the MIME type.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
