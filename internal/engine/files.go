package engine

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/bianoble/template-cleanup/internal/config"
	"github.com/bianoble/template-cleanup/internal/fsys"
	"github.com/bianoble/template-cleanup/internal/markers"
	"github.com/bianoble/template-cleanup/internal/report"
	"github.com/bianoble/template-cleanup/internal/scheduler"
	"github.com/bianoble/template-cleanup/internal/transform"
)

// DefaultExcludes are never visited by file-scanning rules.
var DefaultExcludes = []string{"**/.git/**", "**/node_modules/**"}

// skipDirs are pruned from tree walks outright.
var skipDirs = map[string]bool{".git": true, "node_modules": true}

// extensionlessNames are scanned by default alongside the known extensions.
var extensionlessNames = []string{"Dockerfile", "Makefile"}

// defaultIncludes derives include globs from the parser's comment syntax table.
func (r *run) defaultIncludes() []string {
	exts := r.Parser.Extensions()
	out := make([]string, 0, len(exts)+len(extensionlessNames))
	for _, ext := range exts {
		out = append(out, "**/*"+ext)
	}
	for _, name := range extensionlessNames {
		out = append(out, "**/"+name)
	}
	return out
}

// includes returns the patterns selecting rule's files: include, then
// glob/globs, then fallback.
func includes(rule config.Rule, fallback func() []string) []string {
	if len(rule.Include) > 0 {
		return rule.Include
	}
	if p := rule.Patterns(); len(p) > 0 {
		return p
	}
	if fallback == nil {
		return nil
	}
	return fallback()
}

// walk lists regular files and directories under the root in lexical order,
// skipping VCS and dependency directories.
func (r *run) walk() (files, dirs []string, err error) {
	err = fs.WalkDir(r.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == "." {
				return err
			}
			r.Logger.Debug("skipping unreadable path", "path", p, "error", err)
			return nil
		}
		if p == "." {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return fs.SkipDir
			}
			dirs = append(dirs, p)
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	return files, dirs, err
}

// textFiles returns the files rule scans: regular files matching its
// includes minus every exclusion. Content checks happen per file.
func (r *run) textFiles(rule config.Rule) ([]string, error) {
	all, _, err := r.walk()
	if err != nil {
		return nil, &FileIOError{Op: "walk", Path: ".", Err: err}
	}

	patterns := includes(rule, r.defaultIncludes)
	var out []string
	for _, p := range all {
		if matchesAny(patterns, p) && !r.skip(rule, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if fsys.Match(p, name) {
			return true
		}
	}
	return false
}

// skip reports whether name is excluded from rule or kept.
func (r *run) skip(rule config.Rule, name string) bool {
	return r.kept(name) || r.isExcluded(rule, name)
}

func (r *run) isExcluded(rule config.Rule, name string) bool {
	for _, set := range [][]string{DefaultExcludes, r.cfg.ExcludeGlobs, rule.Exclude} {
		for _, g := range set {
			if r.excludedBy(g, name) {
				return true
			}
		}
	}
	return false
}

// excludedBy reports whether glob matches name or one of its parent
// directories. Results are memoized for the run.
func (r *run) excludedBy(glob, name string) bool {
	key := [2]string{glob, name}

	r.excludeMu.Lock()
	defer r.excludeMu.Unlock()
	if v, ok := r.excluded[key]; ok {
		return v
	}

	hit := false
	for p := name; p != "." && p != "/" && p != ""; p = path.Dir(p) {
		if fsys.Match(glob, p) {
			hit = true
			break
		}
	}
	r.excluded[key] = hit
	return hit
}

// kept reports whether name matches a keep entry.
func (r *run) kept(name string) bool {
	for _, k := range r.cfg.KeepFiles {
		if k == name || fsys.Match(k, name) {
			return true
		}
	}
	return false
}

// holdsKept reports whether removing name would remove a kept path beneath it.
func (r *run) holdsKept(name string) bool {
	prefix := name + "/"
	for _, k := range r.cfg.KeepFiles {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// editFunc computes the new content of one file from its parse result.
// It returns a nil action when the file needs no change.
type editFunc func(name string, lines []string, res markers.Result) ([]string, *report.Action)

// fileResult is the outcome of one file.
type fileResult struct {
	action *report.Action
}

// rewrite applies edit to every file rule selects. Files that are not text
// are left alone.
func (r *run) rewrite(ctx context.Context, rule config.Rule, edit editFunc) (outcome, error) {
	files, err := r.textFiles(rule)
	if err != nil {
		return outcome{}, err
	}

	worker := func(_ context.Context, name string) (fileResult, error) {
		return r.rewriteFile(name, edit)
	}

	opts := scheduler.Options{Concurrency: r.cfg.Concurrency}
	if r.cfg.OnProgress != nil {
		opts.OnProgress = func(completed, total int) { r.cfg.OnProgress(rule.ID, completed, total) }
	}

	runner := scheduler.Serial[string, fileResult]
	if r.cfg.Parallel && len(files) > ParallelThreshold {
		runner = scheduler.Run[string, fileResult]
		r.Logger.Debug("processing files in parallel", "rule", rule.ID, "files", len(files))
	}
	res := runner(ctx, files, worker, opts)

	var out outcome
	failed := make(map[int]error, len(res.Errors))
	for _, ie := range res.Errors {
		failed[ie.Index] = ie.Err
	}
	for i, fr := range res.Results {
		if err, ok := failed[i]; ok {
			var ioErr *FileIOError
			if !errors.As(err, &ioErr) {
				err = &FileIOError{Op: "process", Path: files[i], Err: err}
			}
			out.errors = append(out.errors, toReportError(rule.ID, err))
			continue
		}
		if fr.action != nil {
			out.actions = append(out.actions, *fr.action)
		}
	}
	return out, nil
}

func (r *run) rewriteFile(name string, edit editFunc) (fileResult, error) {
	start := time.Now()

	data, err := r.FS.ReadFile(name)
	if err != nil {
		return fileResult{}, &FileIOError{Op: "read", Path: name, Err: err}
	}
	if !transform.IsText(data) {
		r.Logger.Debug("skipping binary file", "path", name)
		return fileResult{}, nil
	}

	parsed, hit := r.Parser.ParseCached(r.Cache, fsys.Abs(r.FS, name), data)
	lines, act := edit(name, transform.SplitLines(data), parsed)
	r.Tracker.FileDone(name, int64(len(data)), time.Since(start), hit)
	if act == nil {
		return fileResult{}, nil
	}

	if err := r.FS.WriteFile(name, transform.JoinLines(lines)); err != nil {
		return fileResult{}, &FileIOError{Op: "write", Path: name, Err: err}
	}
	return fileResult{action: act}, nil
}

// sortedUnique returns items sorted without duplicates.
func sortedUnique(items []string) []string {
	sort.Strings(items)
	out := items[:0]
	for _, it := range items {
		if len(out) == 0 || it != out[len(out)-1] {
			out = append(out, it)
		}
	}
	return out
}
