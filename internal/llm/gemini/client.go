package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/llm"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

const defaultModel = "gemini-2.5-flash"

// contentGenerator is the slice of *genai.Models we call.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey       string
	Model        string
	Temperature  float32
	MaxRetries   int
	RetryBackoff time.Duration
	Enabled      bool
}

// Engine extracts CV data with the Gemini API.
type Engine struct {
	cfg    Config
	models contentGenerator
	log    *zap.Logger
}

// New creates an engine backed by the Gemini API. An empty API key yields an
// engine that reports itself unconfigured instead of an error.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Engine, error) {
	cfg = withDefaults(cfg)
	e := &Engine{cfg: cfg, log: logger.OrNop(log)}
	if cfg.APIKey == "" {
		return e, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	e.models = client.Models
	return e, nil
}

func newWithGenerator(cfg Config, gen contentGenerator, log *zap.Logger) *Engine {
	return &Engine{cfg: withDefaults(cfg), models: gen, log: logger.OrNop(log)}
}

func withDefaults(cfg Config) Config {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Model = strings.TrimSpace(cfg.Model); cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return cfg
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) Enabled() bool    { return e.cfg.Enabled }
func (e *Engine) Configured() bool { return e.models != nil }

func (e *Engine) Extract(ctx context.Context, req llm.Request) llm.Result {
	if e.models == nil {
		return llm.Failed(common.CodeEngineNotConfigured, "gemini api key is required")
	}
	rid := uuid.New().String()
	start := time.Now()
	e.log.Info("llm.extract.start",
		zap.String("req_id", rid),
		zap.String("provider", e.Name()),
		zap.String("model", e.cfg.Model),
		zap.Int("text_len", len(req.Packed.Text)),
	)

	prompt := llm.BuildPrompt(req)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(e.cfg.Temperature),
	}

	res := llm.Retry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) (llm.Parsed, error) {
		resp, err := e.models.GenerateContent(ctx, e.cfg.Model, genai.Text(prompt), config)
		if err != nil {
			e.log.Warn("llm.extract.genai_error", zap.String("req_id", rid), zap.Error(err))
			return llm.Parsed{}, fmt.Errorf("generate content: %w", err)
		}
		text, err := responseText(resp)
		if err != nil {
			return llm.Parsed{}, err
		}
		return llm.ParseExtraction(text, true, e.log)
	})

	e.log.Info("llm.extract.done",
		zap.String("req_id", rid),
		zap.Bool("success", res.Success),
		zap.Int("retries", res.RetryCount),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return res
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if text := strings.TrimSpace(part.Text); text != "" {
				builder.WriteString(text)
			}
		}
		// first candidate with content wins
		if builder.Len() > 0 {
			break
		}
	}
	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}
