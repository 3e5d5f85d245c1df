// Package evaluate executes prompts against complete cases and drives the
// prompt-improvement round.
package evaluate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/coding-eval/internal/cases"
	"github.com/sells-group/coding-eval/internal/ledger"
	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/scoring"
)

const defaultConcurrency = 4

// Coder is the model capability used for one coding run.
type Coder interface {
	RunCoding(ctx context.Context, note, prompt, modelID string) (model.Prediction, error)
}

// RoundState is the state of one case's evaluation round.
type RoundState string

const (
	RoundIdle    RoundState = "idle"
	RoundRunning RoundState = "running"
	RoundSuccess RoundState = "success"
	RoundFailed  RoundState = "failed"
)

// Round reports the current or last round for a case. A finished round
// (success or failed) accepts a new run just like an idle one.
type Round struct {
	CaseKey   string     `json:"case_key"`
	State     RoundState `json:"state"`
	RunID     string     `json:"run_id,omitempty"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Options configures a Runner.
type Options struct {
	DefaultModel string
	Concurrency  int
}

// Runner runs prompts against cases and appends scored runs to the ledger.
type Runner struct {
	cases  *cases.Repository
	ledger *ledger.Ledger
	coder  Coder
	opts   Options
	now    func() time.Time

	mu     sync.Mutex
	rounds map[string]*Round
}

// NewRunner creates a Runner.
func NewRunner(repo *cases.Repository, l *ledger.Ledger, c Coder, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Runner{
		cases:  repo,
		ledger: l,
		coder:  c,
		opts:   opts,
		now:    time.Now,
		rounds: make(map[string]*Round),
	}
}

// TestRequest selects what to run.
type TestRequest struct {
	CaseKey string
	Prompt  model.SavedPrompt
	Model   string
}

// Result is a stored run and whether it reached the store.
type Result struct {
	Run  model.TestRun `json:"run"`
	Sync model.Sync    `json:"sync"`
}

// RunTest codes one complete case with the requested prompt, scores the
// prediction and appends the run. A failed call appends nothing. Only one
// run per case may be in flight.
func (r *Runner) RunTest(ctx context.Context, req TestRequest) (Result, error) {
	c, ok := r.cases.Get(req.CaseKey)
	if !ok {
		return Result{}, eris.Wrapf(model.ErrCaseNotFound, "evaluate: case %s", req.CaseKey)
	}
	if c.Status() != model.CaseStatusComplete {
		return Result{}, eris.Wrapf(model.ErrCaseIncomplete, "evaluate: case %s is %s", req.CaseKey, c.Status())
	}
	if err := r.begin(req.CaseKey); err != nil {
		return Result{}, err
	}

	modelID := req.Model
	if modelID == "" {
		modelID = r.opts.DefaultModel
	}
	log := zap.L().With(
		zap.String("case", req.CaseKey),
		zap.String("prompt", req.Prompt.Name),
		zap.String("model", modelID),
	)

	pred, err := r.coder.RunCoding(ctx, c.RawText, req.Prompt.Text, modelID)
	if err != nil {
		r.finish(req.CaseKey, RoundFailed, "", err)
		log.Warn("evaluate: run failed", zap.String("kind", model.ErrorKind(err)), zap.Error(err))
		return Result{}, eris.Wrapf(err, "evaluate: run case %s", req.CaseKey)
	}

	gold := c.GroundTruth.Clone()
	run, synced := r.ledger.Append(ctx, model.TestRun{
		CaseKey:    req.CaseKey,
		Model:      modelID,
		PromptName: req.Prompt.Name,
		PromptText: req.Prompt.Text,
		Score:      scoring.Score(gold, pred),
		Predicted:  pred,
		Gold:       gold,
		Reasoning:  pred.Reasoning,
	})
	r.finish(req.CaseKey, RoundSuccess, run.ID, nil)
	log.Info("evaluate: run recorded",
		zap.String("run", run.ID),
		zap.Bool("primary_match", run.Score.PrimaryMatch),
		zap.Float64("cpt_recall", run.Score.CPTRecall),
		zap.Float64("cpt_precision", run.Score.CPTPrecision),
		zap.String("sync", string(synced.State)),
	)
	return Result{Run: run, Sync: synced}, nil
}

// BatchItem is the outcome for one case of a batch.
type BatchItem struct {
	CaseKey string
	Result  Result
	Err     error
}

// RunBatch runs the prompt against every key with bounded concurrency. One
// case failing never stops the others; outcomes are returned in key order.
func (r *Runner) RunBatch(ctx context.Context, keys []string, prompt model.SavedPrompt, modelID string) []BatchItem {
	items := make([]BatchItem, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, key := range keys {
		g.Go(func() error {
			res, err := r.RunTest(gctx, TestRequest{CaseKey: key, Prompt: prompt, Model: modelID})
			items[i] = BatchItem{CaseKey: key, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, it := range items {
		if it.Err != nil {
			failed++
		}
	}
	zap.L().Info("evaluate: batch finished",
		zap.String("prompt", prompt.Name),
		zap.Int("cases", len(keys)),
		zap.Int("failed", failed),
	)
	return items
}

// Round returns the round state for key. Cases never run are idle.
func (r *Runner) Round(key string) Round {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rd, ok := r.rounds[key]; ok {
		return *rd
	}
	return Round{CaseKey: key, State: RoundIdle}
}

// Rounds returns every tracked round ordered by case key.
func (r *Runner) Rounds() []Round {
	r.mu.Lock()
	out := make([]Round, 0, len(r.rounds))
	for _, rd := range r.rounds {
		out = append(out, *rd)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CaseKey < out[j].CaseKey })
	return out
}

// InFlight returns the number of runs currently waiting on the model.
func (r *Runner) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, rd := range r.rounds {
		if rd.State == RoundRunning {
			n++
		}
	}
	return n
}

func (r *Runner) begin(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rd, ok := r.rounds[key]; ok && rd.State == RoundRunning {
		return eris.Wrapf(model.ErrInFlight, "evaluate: case %s", key)
	}
	r.rounds[key] = &Round{CaseKey: key, State: RoundRunning, UpdatedAt: r.now().UTC()}
	return nil
}

func (r *Runner) finish(key string, state RoundState, runID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd := &Round{CaseKey: key, State: state, RunID: runID, UpdatedAt: r.now().UTC()}
	if err != nil {
		rd.Error = err.Error()
	}
	r.rounds[key] = rd
}
