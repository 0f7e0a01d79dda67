package engine

import (
	"context"

	"github.com/bianoble/template-cleanup/internal/config"
	"github.com/bianoble/template-cleanup/internal/pkgmgr"
	"github.com/bianoble/template-cleanup/internal/report"
)

// packagePrune delegates to the rule's package manager adapter. A probe run
// without writes finds the manifests that would change; each one that is
// neither kept nor excluded is then pruned on its own. Lockfiles get the
// same protection through Request.Skip.
func (r *run) packagePrune(ctx context.Context, rule config.Rule) (outcome, error) {
	adapter, err := r.Managers.Lookup(rule.Manager)
	if err != nil {
		return outcome{}, &RuleExecutionError{Rule: rule.ID, Err: err}
	}

	req := pkgmgr.Request{
		Manifest: rule.Manifest,
		Deps:     rule.RemoveDeps,
		DevDeps:  rule.RemoveDevDeps,
		DryRun:   true,
		Skip:     func(name string) bool { return r.skip(rule, name) },
	}
	probe, err := adapter.Prune(ctx, r.FS, req)
	if err != nil {
		return outcome{}, err
	}

	var manifests []string
	seen := make(map[string]bool)
	for _, rm := range probe.Removals {
		if seen[rm.Manifest] {
			continue
		}
		seen[rm.Manifest] = true
		if r.skip(rule, rm.Manifest) {
			r.Logger.Debug("manifest is kept or excluded, not pruning", "rule", rule.ID, "manifest", rm.Manifest)
			continue
		}
		manifests = append(manifests, rm.Manifest)
	}

	logLock := r.Logger.Info
	verb := "deleted lockfile"
	if r.cfg.DryRun {
		logLock, verb = r.Logger.Warn, "would delete lockfile"
	}

	var out outcome
	for _, m := range manifests {
		req.Manifest, req.DryRun = m, false
		res, err := adapter.Prune(ctx, r.FS, req)
		if err != nil {
			out.errors = append(out.errors, toReportError(rule.ID, err))
			continue
		}
		for _, lock := range res.DeletedLockfiles {
			logLock(verb, "rule", rule.ID, "manager", adapter.Name(), "path", lock)
		}

		for _, rm := range res.Removals {
			act := r.action(rule, report.DependencyRemove, rm.Manifest)
			act.Manager = adapter.Name()
			act.Dependency = rm.Dependency
			act.Section = rm.Section
			out.actions = append(out.actions, act)
		}
	}
	return out, nil
}
