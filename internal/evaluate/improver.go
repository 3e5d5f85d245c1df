package evaluate

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coding-eval/internal/cases"
	"github.com/sells-group/coding-eval/internal/improve"
	"github.com/sells-group/coding-eval/internal/ledger"
	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/prompts"
)

// ImproveState is the state of the prompt-improvement sub-flow.
type ImproveState string

const (
	ImproveIdle      ImproveState = "idle"
	ImproveAnalyzing ImproveState = "analyzing"
	ImproveSuccess   ImproveState = "success"
	ImproveFailed    ImproveState = "failed"
)

// ImproveStatus is a snapshot of the improvement sub-flow.
type ImproveStatus struct {
	State      ImproveState `json:"state"`
	BasePrompt string       `json:"base_prompt,omitempty"`
	Candidate  string       `json:"candidate,omitempty"`
	Error      string       `json:"error,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Improver holds at most one candidate prompt for the operator to accept or
// reject.
type Improver struct {
	orch     *improve.Orchestrator
	library  *prompts.Library
	settings *prompts.Settings
	ledger   *ledger.Ledger
	cases    *cases.Repository
	flags    *improve.FlagSet
	now      func() time.Time

	mu     sync.Mutex
	status ImproveStatus
}

// NewImprover creates an idle Improver.
func NewImprover(orch *improve.Orchestrator, lib *prompts.Library, settings *prompts.Settings, l *ledger.Ledger, repo *cases.Repository, flags *improve.FlagSet) *Improver {
	return &Improver{
		orch:     orch,
		library:  lib,
		settings: settings,
		ledger:   l,
		cases:    repo,
		flags:    flags,
		now:      time.Now,
		status:   ImproveStatus{State: ImproveIdle},
	}
}

// Status returns the current state.
func (i *Improver) Status() ImproveStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Propose asks the model for a revision of current using the full run
// history and the flagged cases. A second proposal while one is in flight
// is refused. On success the candidate is held until Accept or Reject.
func (i *Improver) Propose(ctx context.Context, current model.SavedPrompt) (string, error) {
	i.mu.Lock()
	if i.status.State == ImproveAnalyzing {
		i.mu.Unlock()
		return "", eris.Wrap(model.ErrInFlight, "evaluate: improvement")
	}
	i.status = ImproveStatus{State: ImproveAnalyzing, BasePrompt: current.Name, UpdatedAt: i.now().UTC()}
	i.mu.Unlock()

	var flagged []model.Case
	for _, key := range i.flags.Keys() {
		if c, ok := i.cases.Get(key); ok {
			flagged = append(flagged, c)
		}
	}

	candidate, err := i.orch.Propose(ctx, improve.Request{
		CurrentPrompt: current.Text,
		Runs:          i.ledger.List(),
		Flagged:       flagged,
	})

	i.mu.Lock()
	defer i.mu.Unlock()
	if err != nil {
		i.status = ImproveStatus{State: ImproveFailed, BasePrompt: current.Name, Error: err.Error(), UpdatedAt: i.now().UTC()}
		return "", err
	}
	i.status = ImproveStatus{State: ImproveSuccess, BasePrompt: current.Name, Candidate: candidate, UpdatedAt: i.now().UTC()}
	return candidate, nil
}

// Accept saves the held candidate as the next "Improved v<n>" prompt and
// makes it the active prompt.
func (i *Improver) Accept(ctx context.Context) (model.SavedPrompt, model.Sync, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.status.State != ImproveSuccess {
		return model.SavedPrompt{}, model.Committed(), eris.Wrap(model.ErrNoCandidate, "evaluate: accept")
	}

	name := improve.NextImprovedName(i.library.Names())
	p, synced, err := i.library.Save(ctx, name, i.status.Candidate)
	if err != nil {
		return model.SavedPrompt{}, synced, eris.Wrap(err, "evaluate: accept")
	}
	synced = synced.Merge(i.settings.Put(ctx, model.SettingActivePrompt, name))
	i.status = ImproveStatus{State: ImproveIdle, UpdatedAt: i.now().UTC()}

	zap.L().Info("evaluate: accepted improved prompt",
		zap.String("prompt", name),
		zap.String("sync", string(synced.State)),
	)
	return p, synced, nil
}

// Reject discards the held candidate.
func (i *Improver) Reject() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.status.State != ImproveSuccess {
		return eris.Wrap(model.ErrNoCandidate, "evaluate: reject")
	}
	i.status = ImproveStatus{State: ImproveIdle, UpdatedAt: i.now().UTC()}
	return nil
}
