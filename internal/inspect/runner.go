// Package inspect runs modules against an instance and aggregates their outcomes
// into a Report. A failing or panicking module only affects its own result.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/logging"
	"github.com/steveyegge/inspector/internal/module"
)

// Runner executes modules. The zero value is not usable; call NewRunner.
type Runner struct {
	concurrency int
	observer    Observer
	logger      *slog.Logger
	now         func() time.Time

	observeMu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency sets how many modules may run at once. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
	}
}

// WithObserver registers a callback for every state transition.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithClock replaces time.Now for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a sequential runner unless WithConcurrency says otherwise.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.L("inspect")
	}
	return r
}

// run carries the state of one invocation of RunAll or Inspect.
type run struct {
	*Runner
	report *Report
	logger *slog.Logger
	state  RunState
}

// RunAll resolves the instance version and executes modules in the given order
// without version gating. A version that cannot be resolved fails the run before
// any module starts.
func (r *Runner) RunAll(ctx context.Context, inst *instance.Context, modules []module.Module) (*Report, error) {
	rn, err := r.begin(ctx, inst)
	if err != nil {
		return nil, err
	}
	rn.emitRun(RunModulesFiltered)
	rn.execute(ctx, inst, modules)
	return rn.finish(inst), nil
}

// Inspect runs every registered module compatible with the instance version. When
// names is non-empty only those modules are considered; an unknown name fails the
// run before anything is resolved.
func (r *Runner) Inspect(ctx context.Context, inst *instance.Context, reg *module.Registry, names []string) (*Report, error) {
	candidates := reg.All()
	if len(names) > 0 {
		var err error
		candidates, err = reg.Select(names)
		if err != nil {
			return nil, err
		}
	}

	rn, err := r.begin(ctx, inst)
	if err != nil {
		return nil, err
	}

	compatible, excluded := module.Partition(candidates, rn.report.Version)
	rn.report.Excluded = excluded
	for _, ex := range excluded {
		attrs := []any{logging.KeyModule, ex.Metadata.Name, logging.KeyVersion, rn.report.Version.String()}
		if ex.NearMiss {
			rn.logger.Warn("module excluded by a patch-level version mismatch", attrs...)
		} else {
			rn.logger.Debug("module excluded for incompatible version", attrs...)
		}
	}
	rn.emitRun(RunModulesFiltered)

	rn.execute(ctx, inst, compatible)
	return rn.finish(inst), nil
}

// begin creates the report and resolves the instance version.
func (r *Runner) begin(ctx context.Context, inst *instance.Context) (*run, error) {
	if inst == nil {
		return nil, &instance.ConfigurationError{Field: "instance", Err: errors.New("no instance context")}
	}

	cfg := inst.Config()
	id := uuid.New()
	rn := &run{
		Runner: r,
		report: &Report{
			RunID:     id,
			Target:    Target{URL: cfg.URL, Path: cfg.Path},
			StartedAt: r.now(),
			Results:   []*module.Result{},
		},
		logger: r.logger.With(logging.KeyRunID, id.String()),
	}
	rn.emitRun(RunCreated)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rn.emitRun(RunContextResolving)
	v, err := inst.Version(ctx)
	if err != nil {
		rn.logger.Error("instance version unresolved", logging.KeyError, err)
		return nil, err
	}
	rn.report.Version = v
	rn.logger.Info("run started", logging.KeyVersion, v.String())
	return rn, nil
}

// execute runs modules with bounded parallelism. Results keep input order.
func (rn *run) execute(ctx context.Context, inst *instance.Context, modules []module.Module) {
	results := make([]*module.Result, len(modules))
	metas := make([]module.Metadata, len(modules))
	describeErrs := make([]error, len(modules))
	for i, m := range modules {
		metas[i], describeErrs[i] = module.Describe(m)
		rn.emitModule(metas[i].Name, module.StatePending, nil)
	}
	rn.emitRun(RunExecuting)

	// Modules that started always finish; cancellation only stops new ones.
	detached := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(rn.concurrency)
	for i, m := range modules {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = rn.skip(metas[i])
				return nil
			}
			if err := describeErrs[i]; err != nil {
				results[i] = rn.undescribed(metas[i], err)
				return nil
			}
			results[i] = rn.invoke(detached, inst, m, metas[i])
			return nil
		})
	}
	_ = g.Wait()

	rn.report.Results = results
	for _, res := range results {
		if res.State == module.StateSkipped {
			rn.report.Cancelled = true
			break
		}
	}
}

func (rn *run) invoke(ctx context.Context, inst *instance.Context, m module.Module, meta module.Metadata) *module.Result {
	start := rn.now()
	rn.emitModule(meta.Name, module.StateRunning, nil)

	payload, err := call(ctx, inst, m, meta.Name)
	res := &module.Result{
		Metadata:  meta,
		StartedAt: start,
		Duration:  rn.now().Sub(start),
	}
	logger := rn.logger.With(logging.KeyModule, meta.Name, logging.KeyDurationMs, res.Duration.Milliseconds())

	if err != nil {
		if _, ok := err.(*ModuleExecutionError); !ok {
			err = &ModuleExecutionError{Module: meta.Name, Err: err}
		}
		res.State = module.StateFailed
		res.Err = err
		res.Error = &module.ErrorDescriptor{Kind: Classify(err), Message: err.Error()}
		logger.Warn("module failed", logging.KeyError, err, "kind", res.Error.Kind)
	} else {
		res.State = module.StateCompleted
		res.Payload = payload
		logger.Debug("module completed")
	}
	rn.emitModule(meta.Name, res.State, res.Err)
	return res
}

func (rn *run) skip(meta module.Metadata) *module.Result {
	err := fmt.Errorf("module %q: %w", meta.Name, ErrCancelled)
	res := &module.Result{
		Metadata: meta,
		State:    module.StateSkipped,
		Err:      err,
		Error:    &module.ErrorDescriptor{Kind: KindCancelled, Message: err.Error()},
	}
	rn.logger.Debug("module skipped", logging.KeyModule, meta.Name)
	rn.emitModule(meta.Name, module.StateSkipped, err)
	return res
}

// undescribed records a module that could not report its metadata. It is never run.
func (rn *run) undescribed(meta module.Metadata, err error) *module.Result {
	mErr := &ModuleExecutionError{Module: meta.Name, Err: err}
	var dErr *module.DescribeError
	if errors.As(err, &dErr) {
		mErr.Panic, mErr.Stack = dErr.Panic, dErr.Stack
	}
	res := &module.Result{
		Metadata: meta,
		State:    module.StateFailed,
		Err:      mErr,
		Error:    &module.ErrorDescriptor{Kind: Classify(mErr), Message: mErr.Error()},
	}
	rn.logger.Warn("module failed to describe itself", logging.KeyModule, meta.Name, logging.KeyError, err)
	rn.emitModule(meta.Name, module.StateFailed, mErr)
	return res
}

// call runs m, turning a panic into a ModuleExecutionError.
func call(ctx context.Context, inst *instance.Context, m module.Module, name string) (payload any, err error) {
	defer func() {
		if p := recover(); p != nil {
			payload = nil
			err = &ModuleExecutionError{
				Module: name,
				Err:    fmt.Errorf("panic: %v", p),
				Panic:  p,
				Stack:  debug.Stack(),
			}
		}
	}()
	return m.Run(ctx, inst)
}

func (rn *run) finish(inst *instance.Context) *Report {
	rep := rn.report
	rep.QueryCount = inst.QueryCount()
	rep.Facts = inst.Facts()
	rep.CompletedAt = rn.now()
	rn.emitRun(RunAggregated)

	rn.logger.Info("run finished",
		"modules", len(rep.Results),
		"failed", len(rep.Failed()),
		"excluded", len(rep.Excluded),
		"cancelled", rep.Cancelled,
		"queries", rep.QueryCount,
		logging.KeyDurationMs, rep.Duration().Milliseconds())
	return rep
}

func (rn *run) emitRun(state RunState) {
	rn.state = state
	rn.emit(Event{Run: state})
}

func (rn *run) emitModule(name string, state module.State, err error) {
	rn.emit(Event{Run: rn.state, Module: name, State: state, Err: err})
}

func (rn *run) emit(e Event) {
	if rn.observer == nil {
		return
	}
	e.RunID = rn.report.RunID
	e.Time = rn.now()

	rn.observeMu.Lock()
	defer rn.observeMu.Unlock()
	rn.observer(e)
}
