package action

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/log"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/metrics"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

// Payload is what every action receives for one accepted submission.
// Executors run concurrently on the same Payload and must not mutate it.
type Payload struct {
	SubmissionID string                   `json:"submissionId"`
	FormID       string                   `json:"formId"`
	FormSlug     string                   `json:"formSlug"`
	FormName     string                   `json:"formName"`
	Data         map[string]any           `json:"data"`
	Metadata     model.SubmissionMetadata `json:"metadata"`
	SubmittedAt  time.Time                `json:"submittedAt"`

	// Fields gives executors the labels and display order of Data.
	Fields []model.FormFieldConfig `json:"-"`
}

// Executor delivers a submission through one kind of action.
type Executor interface {
	Execute(ctx context.Context, a model.Action, p Payload) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, a model.Action, p Payload) error

func (f ExecutorFunc) Execute(ctx context.Context, a model.Action, p Payload) error {
	return f(ctx, a, p)
}

type RunnerConfig struct {
	Executors map[model.ActionKind]Executor
	// Timeout bounds each action individually. Zero means no limit.
	Timeout time.Duration
	Metrics *metrics.Metrics
}

// Runner executes a form's actions independently of each other.
type Runner struct {
	executors map[model.ActionKind]Executor
	timeout   time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewRunner(cfg RunnerConfig) *Runner {
	executors := make(map[model.ActionKind]Executor, len(cfg.Executors))
	for kind, e := range cfg.Executors {
		executors[kind] = e
	}
	return &Runner{
		executors: executors,
		timeout:   cfg.Timeout,
		metrics:   cfg.Metrics,
		now:       time.Now,
	}
}

// Run executes all actions concurrently and returns one result per action,
// in configured order. A failing, panicking or hanging action only affects
// its own result.
func (r *Runner) Run(ctx context.Context, actions []model.Action, p Payload) []model.ActionResult {
	results := make([]model.ActionResult, len(actions))

	var wg sync.WaitGroup
	for i, a := range actions {
		wg.Add(1)
		go func(i int, a model.Action) {
			defer wg.Done()
			results[i] = r.runOne(ctx, a, p)
		}(i, a)
	}
	wg.Wait()

	return results
}

func (r *Runner) runOne(ctx context.Context, a model.Action, p Payload) model.ActionResult {
	start := time.Now()
	err := r.execute(ctx, a, p)
	r.metrics.ObserveAction(string(a.Kind), err == nil, time.Since(start))

	result := model.ActionResult{
		ActionType: a.Kind,
		Success:    err == nil,
		Timestamp:  r.now().UTC(),
	}
	if err != nil {
		result.ErrorMessage = err.Error()
		log.WithFields(log.Fields{
			"submission": p.SubmissionID,
			"form":       p.FormID,
			"action":     a.Kind,
		}).Warn("action failed: ", err)
	}
	return result
}

func (r *Runner) execute(ctx context.Context, a model.Action, p Payload) error {
	executor, ok := r.executors[a.Kind]
	if !ok {
		return fmt.Errorf("unsupported action type %q", a.Kind)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- fmt.Errorf("%s action panicked: %v", a.Kind, v)
			}
		}()
		done <- executor.Execute(ctx, a, p)
	}()

	// the executor may ignore ctx, so do not wait on it past its deadline
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s action aborted: %w", a.Kind, ctx.Err())
	}
}
