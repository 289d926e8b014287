// Package provider builds the configured extraction engine.
package provider

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/llm"
	"github.com/joseph-ayodele/cv-autofill/internal/llm/gemini"
	"github.com/joseph-ayodele/cv-autofill/internal/llm/openai"
	"github.com/joseph-ayodele/cv-autofill/internal/llm/rules"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

const (
	Rules  = "rules"
	OpenAI = "openai"
	Gemini = "gemini"
)

// New returns the engine selected by extraction.provider. An empty provider
// yields llm.Disabled.
func New(ctx context.Context, cfg *common.Config, log *zap.Logger) (llm.Engine, error) {
	log = logger.OrNop(log)
	enabled := cfg.Extraction.Enabled
	switch cfg.Extraction.Provider {
	case "":
		return llm.Disabled{}, nil
	case Rules:
		return rules.New(enabled, log.Named("rules")), nil
	case OpenAI:
		return openai.NewClient(openai.Config{
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			Model:           cfg.LLM.Model,
			Temperature:     cfg.LLM.Temperature,
			Timeout:         cfg.LLM.Timeout,
			MaxRetries:      cfg.Extraction.MaxRetries,
			RetryBackoff:    time.Second,
			LenientOptional: true,
			Enabled:         enabled,
		}, log.Named("openai")), nil
	case Gemini:
		return gemini.New(ctx, gemini.Config{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.LLM.Temperature,
			MaxRetries:  cfg.Extraction.MaxRetries,
			Enabled:     enabled,
		}, log.Named("gemini"))
	}
	return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown extraction provider %q", cfg.Extraction.Provider), common.ErrInvalidInput)
}
