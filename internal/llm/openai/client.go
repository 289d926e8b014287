package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/llm"
)

// Extract implements llm.Engine using JSON-mode chat/completions.
func (c *Client) Extract(ctx context.Context, req llm.Request) llm.Result {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		zap.String("req_id", rid),
		zap.String("provider", c.Name()),
		zap.String("model", c.cfg.Model),
		zap.Float32("temp", c.cfg.Temperature),
		zap.Int("text_len", len(req.Packed.Text)),
		zap.Bool("truncated", req.Packed.Truncated),
		zap.Int("synonyms", len(req.Learning.FieldSynonyms)),
		zap.Int("examples", len(req.Learning.Examples)),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "system", "content": "JSON Schema:\n" + llm.MustJSON(llm.BuildCVJSONSchema())},
			{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
		},
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	res := llm.Retry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) (llm.Parsed, error) {
		raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
		if err != nil {
			c.log.Warn("llm.extract.http_error", zap.String("req_id", rid), zap.Error(err))
			return llm.Parsed{}, err
		}
		content, err := firstChoice(raw)
		if err != nil {
			c.log.Warn("llm.extract.decode_error", zap.String("req_id", rid), zap.Error(err), zap.Int("raw_bytes", len(raw)))
			return llm.Parsed{}, err
		}
		return llm.ParseExtraction(content, c.cfg.LenientOptional, c.log)
	})

	if !res.Success {
		c.log.Error("llm.extract.failed",
			zap.String("req_id", rid),
			zap.String("error", res.Error),
			zap.Int("retries", res.RetryCount),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return res
	}
	c.log.Info("llm.extract.ok",
		zap.String("req_id", rid),
		zap.Int("skills", len(res.Data.Skills)),
		zap.Int("languages", len(res.Data.Languages)),
		zap.Int("unmapped", len(res.Data.UnmappedSegments)),
		zap.Int("implicit", len(res.ImplicitMappingsApplied)),
		zap.Int("retries", res.RetryCount),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return res
}

func firstChoice(raw []byte) (string, error) {
	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}
