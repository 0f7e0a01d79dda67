// Package engine executes cleanup rules against a project tree and records
// every effect in a report.
//
// Rules run one after another in the order given. Within a rule, the files
// a marker rule touches are processed either sequentially or, when parallel
// mode is on and enough files match, by a bounded worker pool. Workers never
// touch the report: each returns its file's outcome and the outcomes are
// merged in file order once the batch settles. A failing file or rule is
// recorded and execution continues.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bianoble/template-cleanup/internal/cache"
	"github.com/bianoble/template-cleanup/internal/config"
	"github.com/bianoble/template-cleanup/internal/expr"
	"github.com/bianoble/template-cleanup/internal/fsys"
	"github.com/bianoble/template-cleanup/internal/markers"
	"github.com/bianoble/template-cleanup/internal/perf"
	"github.com/bianoble/template-cleanup/internal/pkgmgr"
	"github.com/bianoble/template-cleanup/internal/report"
)

// ParallelThreshold is the file count a rule must exceed before its files
// are handed to the worker pool.
const ParallelThreshold = 10

// Engine holds the collaborators a run needs. Only FS is required; nil
// fields fall back to defaults.
type Engine struct {
	FS        fsys.FileSystem
	Parser    *markers.Parser
	Cache     cache.Cache
	Managers  *pkgmgr.Registry
	Plugins   *PluginRegistry
	Evaluator *expr.Evaluator
	Tracker   *perf.Tracker
	Logger    *slog.Logger
}

// RunConfig carries the per-run settings. It is passed by value and never
// modified during a run.
type RunConfig struct {
	Profile  string
	Features expr.FeatureSet

	// DryRun runs every rule against an in-memory overlay of FS. Nothing
	// reaches the real tree, yet each rule sees the effects of the ones
	// before it, so the actions match an apply run. An FS that already is
	// an *fsys.Overlay is used as is, so the caller can inspect it after.
	DryRun bool

	// Only, when non-empty, selects exactly these rule ids. Exclude removes
	// ids from whatever is selected.
	Only    []string
	Exclude []string

	// ExcludeGlobs are applied to every rule on top of its own excludes.
	ExcludeGlobs []string

	// KeepFiles are never the subject of an action.
	KeepFiles []string

	Parallel    bool
	Concurrency int

	// OnProgress is called as each file of a rule settles.
	OnProgress func(rule string, completed, total int)
}

// handler executes one rule type.
type handler func(r *run, ctx context.Context, rule config.Rule) (outcome, error)

var handlers = map[string]handler{
	config.TypeFileGlobDelete:   (*run).fileGlobDelete,
	config.TypeBlockMarkers:     (*run).blockMarkers,
	config.TypeLineTag:          (*run).lineTag,
	config.TypeConditionalBlock: (*run).conditionalBlock,
	config.TypePruneEmpty:       (*run).pruneEmpty,
	config.TypePackagePrune:     (*run).packagePrune,
	config.TypeCustom:           (*run).custom,
}

// outcome is what a handler, or one file within it, produced.
type outcome struct {
	actions []report.Action
	errors  []report.Error
}

func (o *outcome) merge(other outcome) {
	o.actions = append(o.actions, other.actions...)
	o.errors = append(o.errors, other.errors...)
}

// run is the state of one Execute call.
type run struct {
	Engine
	cfg RunConfig

	only    map[string]bool
	exclude map[string]bool

	// excludeMu guards excluded, a memo of (glob, path) match results
	// shared by concurrent workers.
	excludeMu sync.Mutex
	excluded  map[[2]string]bool
}

func (e *Engine) newRun(cfg RunConfig) (*run, error) {
	if e.FS == nil {
		return nil, fmt.Errorf("engine has no filesystem")
	}

	r := &run{
		Engine:   *e,
		cfg:      cfg,
		only:     toSet(cfg.Only),
		exclude:  toSet(cfg.Exclude),
		excluded: make(map[[2]string]bool),
	}
	if _, ok := e.FS.(*fsys.Overlay); cfg.DryRun && !ok {
		r.FS = fsys.NewOverlay(e.FS)
	}
	if r.Parser == nil {
		r.Parser = markers.NewParser(markers.Options{})
	}
	if r.Cache == nil {
		r.Cache = cache.NewNoop()
	}
	if r.Managers == nil {
		r.Managers = pkgmgr.NewRegistry()
	}
	if r.Plugins == nil {
		r.Plugins = NewPluginRegistry()
	}
	if r.Evaluator == nil {
		ev, err := expr.NewEvaluator()
		if err != nil {
			return nil, fmt.Errorf("creating condition evaluator: %w", err)
		}
		r.Evaluator = ev
	}
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	for i, k := range r.cfg.KeepFiles {
		r.cfg.KeepFiles[i] = fsys.Clean(k)
	}
	return r, nil
}

// Execute runs rules in order and returns the finalized report. Failures are
// recorded in the report; only a misconfigured Engine returns an error.
func (e *Engine) Execute(ctx context.Context, rules []config.Rule, cfg RunConfig) (*report.Report, error) {
	cfg.KeepFiles = append([]string(nil), cfg.KeepFiles...)
	r, err := e.newRun(cfg)
	if err != nil {
		return nil, err
	}

	rep := report.New(cfg.Profile, cfg.Features.Names(), cfg.DryRun)
	r.Tracker.Start(cfg.Parallel)

	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			rep.AddError(report.Error{Rule: rule.ID, Kind: report.KindRule, Message: err.Error()})
			break
		}

		logger := r.Logger.With("rule", rule.ID, "type", rule.Type)
		if !r.selected(rule.ID) {
			logger.Debug("rule filtered out")
			continue
		}

		holds, err := r.Evaluator.Eval(rule.Condition, cfg.Features)
		if err != nil {
			rep.AddError(toReportError(rule.ID, &RuleExecutionError{Rule: rule.ID, Err: fmt.Errorf("condition %q: %w", rule.Condition, err)}))
			continue
		}
		if !holds {
			logger.Debug("condition not met, skipping", "condition", rule.Condition)
			continue
		}

		start := time.Now()
		out, err := r.execute(ctx, rule)
		elapsed := time.Since(start)

		rep.Add(out.actions...)
		for _, fe := range out.errors {
			rep.AddError(fe)
		}
		if err != nil {
			logger.Warn("rule failed", "error", err)
			rep.AddError(toReportError(rule.ID, err))
		}
		logger.Debug("rule finished", "actions", len(out.actions), "errors", len(out.errors), "duration", elapsed)
		r.Tracker.RuleDone(rule.ID, rule.Type, elapsed, err != nil || len(out.errors) > 0)
	}

	r.Tracker.Stop()
	rep.Performance = r.Tracker.Report()
	rep.Finalize()
	return rep, nil
}

func (r *run) selected(id string) bool {
	if len(r.only) > 0 && !r.only[id] {
		return false
	}
	return !r.exclude[id]
}

// execute dispatches rule to its handler, converting a panic into an error.
func (r *run) execute(ctx context.Context, rule config.Rule) (out outcome, err error) {
	h, ok := handlers[rule.Type]
	if !ok {
		return outcome{}, &RuleExecutionError{Rule: rule.ID, Err: fmt.Errorf("%w '%s'", ErrUnknownRuleType, rule.Type)}
	}

	defer func() {
		if p := recover(); p != nil {
			err = &RuleExecutionError{Rule: rule.ID, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return h(r, ctx, rule)
}

// action fills the fields every action of rule shares.
func (r *run) action(rule config.Rule, typ report.ActionType, path string) report.Action {
	return report.Action{Type: typ, Rule: rule.ID, Path: path, DryRun: r.cfg.DryRun}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
