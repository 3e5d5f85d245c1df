// Package modelsvc is the external model capability used by ingestion,
// evaluation and prompt improvement: PDF extraction, coding runs and prompt
// rewriting, all over the Anthropic Messages API.
package modelsvc

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/resilience"
	"github.com/sells-group/coding-eval/pkg/anthropic"
)

const (
	defaultModel        = "claude-sonnet-4-5-20250929"
	defaultExtractModel = "claude-haiku-4-5-20251001"
	defaultMaxTokens    = 4096
)

// Config holds model service settings.
type Config struct {
	APIKey            string
	Model             string
	ExtractModel      string
	MaxTokens         int64
	RequestsPerMinute int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.ExtractModel == "" {
		c.ExtractModel = defaultExtractModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	return c
}

// Service issues point-to-point requests to the model. It never retries.
type Service struct {
	client  anthropic.Client
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Service. client may be nil when no key is configured; every
// call then fails with ErrMissingCredential.
func New(client anthropic.Client, cfg Config) *Service {
	cfg = cfg.withDefaults()
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60)
		burst = max(1, cfg.RequestsPerMinute/60)
	}
	return &Service{client: client, cfg: cfg, limiter: rate.NewLimiter(limit, burst)}
}

// DefaultModel returns the coding model used when a run names none.
func (s *Service) DefaultModel() string { return s.cfg.Model }

// Ready reports whether a credential is configured.
func (s *Service) Ready() bool { return s.checkCredential() == nil }

func (s *Service) checkCredential() error {
	if strings.TrimSpace(s.cfg.APIKey) == "" || s.client == nil {
		return model.Tag(model.ErrMissingCredential, nil, "modelsvc: anthropic.key is not configured")
	}
	return nil
}

// call is the single path to the API: credential check, rate limit, request,
// cost logging and error classification.
func (s *Service) call(ctx context.Context, op string, req anthropic.MessageRequest) (string, error) {
	if err := s.checkCredential(); err != nil {
		return "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", eris.Wrapf(err, "modelsvc: %s: rate limit wait", op)
	}
	resp, err := s.client.CreateMessage(ctx, req)
	if err != nil {
		zap.L().Warn("modelsvc: call failed",
			zap.String("operation", op),
			zap.String("model", req.Model),
			zap.Bool("transient", resilience.IsTransient(err)),
			zap.Error(err),
		)
		return "", model.Tag(model.ErrUpstreamCall, err, "modelsvc: "+op)
	}
	resp.Usage.LogCost(req.Model, op)
	return resp.Text(), nil
}

// ExtractStructuredEntries asks the model for the audit entries of a gold
// standard PDF.
func (s *Service) ExtractStructuredEntries(ctx context.Context, pdf []byte) ([]model.AuditEntry, error) {
	text, err := s.call(ctx, "extract_entries", anthropic.MessageRequest{
		Model:     s.cfg.ExtractModel,
		MaxTokens: s.cfg.MaxTokens,
		Messages: []anthropic.Message{{
			Role:      "user",
			Content:   extractEntriesInstruction,
			Documents: []anthropic.Document{{Data: pdf}},
		}},
	})
	if err != nil {
		return nil, err
	}
	return decodeEntries(text)
}

// ExtractText returns the plain text of a clinical note PDF.
func (s *Service) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	text, err := s.call(ctx, "extract_text", anthropic.MessageRequest{
		Model:     s.cfg.ExtractModel,
		MaxTokens: s.cfg.MaxTokens,
		Messages: []anthropic.Message{{
			Role:      "user",
			Content:   extractTextInstruction,
			Documents: []anthropic.Document{{Data: pdf}},
		}},
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", model.Tag(model.ErrExtractionParse, nil, "modelsvc: empty text extraction")
	}
	return text, nil
}

// RunCoding codes one clinical note with the prompt under test. The prompt
// is sent as a cached system block. modelID overrides the configured model.
func (s *Service) RunCoding(ctx context.Context, note, prompt, modelID string) (model.Prediction, error) {
	if modelID == "" {
		modelID = s.cfg.Model
	}
	text, err := s.call(ctx, "run_coding", anthropic.MessageRequest{
		Model:     modelID,
		MaxTokens: s.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(prompt, ""),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: codingInstruction + "\n\n<clinical_note>\n" + note + "\n</clinical_note>",
		}},
	})
	if err != nil {
		return model.Prediction{}, err
	}
	return decodePrediction(text)
}

// ProposeImprovedPrompt sends an improvement payload and returns the raw
// response text.
func (s *Service) ProposeImprovedPrompt(ctx context.Context, payload string) (string, error) {
	return s.call(ctx, "propose_prompt", anthropic.MessageRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: payload}},
	})
}
