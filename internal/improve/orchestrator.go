package improve

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Proposer is the external model capability used to rewrite a prompt.
type Proposer interface {
	ProposeImprovedPrompt(ctx context.Context, payload string) (string, error)
}

// Orchestrator turns run history and flags into a candidate prompt.
type Orchestrator struct {
	model Proposer
	opts  PayloadOptions
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(p Proposer, opts PayloadOptions) *Orchestrator {
	return &Orchestrator{model: p, opts: opts.withDefaults()}
}

// Propose returns the model's revised prompt, trimmed of surrounding
// whitespace. The text is not otherwise parsed or validated.
func (o *Orchestrator) Propose(ctx context.Context, req Request) (string, error) {
	payload := BuildPayload(req, o.opts)
	zap.L().Info("improve: requesting revised prompt",
		zap.Int("runs", len(req.Runs)),
		zap.Int("flagged", len(req.Flagged)),
		zap.Int("payload_chars", len(payload)),
	)
	out, err := o.model.ProposeImprovedPrompt(ctx, payload)
	if err != nil {
		return "", eris.Wrap(err, "improve: propose")
	}
	return strings.TrimSpace(out), nil
}
