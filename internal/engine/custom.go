package engine

import (
	"context"

	"github.com/bianoble/template-cleanup/internal/config"
)

// custom runs the plugin registered under rule.Module. Returned actions are
// stamped with the rule id and run mode; kept paths are dropped.
func (r *run) custom(ctx context.Context, rule config.Rule) (outcome, error) {
	h, err := r.Plugins.Lookup(rule.Module)
	if err != nil {
		return outcome{}, &RuleExecutionError{Rule: rule.ID, Err: err}
	}

	pc := &PluginContext{
		FS:       r.FS,
		DryRun:   r.cfg.DryRun,
		Features: r.cfg.Features,
		Logger:   r.Logger.With("rule", rule.ID, "plugin", normalizeModule(rule.Module)),
		files:    r.textFiles,
	}

	actions, err := h.Execute(ctx, rule, pc)
	if err != nil {
		return outcome{}, &RuleExecutionError{Rule: rule.ID, Err: err}
	}

	var out outcome
	for _, a := range actions {
		if r.kept(a.Path) {
			r.Logger.Warn("plugin reported an action on a kept path; dropping it", "rule", rule.ID, "path", a.Path)
			continue
		}
		a.Rule, a.DryRun = rule.ID, r.cfg.DryRun
		out.actions = append(out.actions, a)
	}
	return out, nil
}
