package engine

import (
	"context"
	"path"
	"slices"
	"time"

	"github.com/bianoble/template-cleanup/internal/config"
	"github.com/bianoble/template-cleanup/internal/fsys"
	"github.com/bianoble/template-cleanup/internal/report"
	"github.com/bianoble/template-cleanup/internal/transform"
)

const (
	reasonEmptyFile = "empty file"
	reasonEmptyDir  = "empty directory"
)

// fileGlobDelete removes every path the rule's globs match. Directories are
// removed recursively unless they hold a kept path.
func (r *run) fileGlobDelete(_ context.Context, rule config.Rule) (outcome, error) {
	var matches []string
	for _, p := range rule.Patterns() {
		m, err := fsys.Glob(r.FS, p)
		if err != nil {
			return outcome{}, &RuleExecutionError{Rule: rule.ID, Err: err}
		}
		matches = append(matches, m...)
	}

	var out outcome
	removed := make(map[string]bool)
	for _, name := range sortedUnique(matches) {
		if name == "." || r.skip(rule, name) {
			continue
		}
		if r.holdsKept(name) {
			r.Logger.Debug("not deleting directory holding kept files", "rule", rule.ID, "path", name)
			continue
		}

		if !underAny(removed, name) {
			if err := r.FS.RemoveAll(name); err != nil {
				out.errors = append(out.errors, toReportError(rule.ID, &FileIOError{Op: "remove", Path: name, Err: err}))
				continue
			}
		}
		removed[name] = true
		out.actions = append(out.actions, r.action(rule, report.FileDelete, name))
	}
	return out, nil
}

// underAny reports whether a parent directory of name is in set.
func underAny(set map[string]bool, name string) bool {
	for p := path.Dir(name); p != "." && p != "/"; p = path.Dir(p) {
		if set[p] {
			return true
		}
	}
	return false
}

// pruneEmpty removes blank files, then directories left empty, deepest
// first.
func (r *run) pruneEmpty(_ context.Context, rule config.Rule) (outcome, error) {
	files, dirs, err := r.walk()
	if err != nil {
		return outcome{}, &FileIOError{Op: "walk", Path: ".", Err: err}
	}
	patterns := includes(rule, nil)
	inScope := func(name string) bool {
		return (len(patterns) == 0 || matchesAny(patterns, name)) && !r.skip(rule, name)
	}

	var out outcome

	for _, name := range files {
		if !inScope(name) {
			continue
		}
		start := time.Now()
		data, err := r.FS.ReadFile(name)
		if err != nil {
			out.errors = append(out.errors, toReportError(rule.ID, &FileIOError{Op: "read", Path: name, Err: err}))
			continue
		}
		r.Tracker.FileDone(name, int64(len(data)), time.Since(start), false)
		if !transform.IsBlank(data) {
			continue
		}
		if err := r.remove(name); err != nil {
			out.errors = append(out.errors, toReportError(rule.ID, err))
			continue
		}
		act := r.action(rule, report.FileDelete, name)
		act.Reason = reasonEmptyFile
		out.actions = append(out.actions, act)
	}

	// Lexical walk order lists parents before children, so reversing it
	// visits leaves first.
	for _, dir := range slices.Backward(dirs) {
		if !inScope(dir) || r.holdsKept(dir) {
			continue
		}
		empty, err := r.isEmptyDir(dir)
		if err != nil {
			out.errors = append(out.errors, toReportError(rule.ID, err))
			continue
		}
		if !empty {
			continue
		}
		if err := r.remove(dir); err != nil {
			out.errors = append(out.errors, toReportError(rule.ID, err))
			continue
		}
		act := r.action(rule, report.FileDelete, dir)
		act.Reason = reasonEmptyDir
		out.actions = append(out.actions, act)
	}

	return out, nil
}

// isEmptyDir reports whether dir exists and has no entries left.
func (r *run) isEmptyDir(dir string) (bool, error) {
	entries, err := r.FS.ReadDir(dir)
	if fsys.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &FileIOError{Op: "readdir", Path: dir, Err: err}
	}
	return len(entries) == 0, nil
}

func (r *run) remove(name string) error {
	if err := r.FS.Remove(name); err != nil && !fsys.IsNotExist(err) {
		return &FileIOError{Op: "remove", Path: name, Err: err}
	}
	return nil
}
