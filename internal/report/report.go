// Package report collects the actions and errors of a cleanup run, derives
// the summary, and reads and writes the JSON report file.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Exit codes returned by the CLI.
const (
	ExitOK      = 0
	ExitErrors  = 1
	ExitActions = 2
)

// New creates an empty report stamped with a fresh run id.
func New(profile string, features []string, dryRun bool) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Profile:   profile,
		Features:  slices.Clone(features),
		DryRun:    dryRun,
		Actions:   []Action{},
		Errors:    []Error{},
	}
}

// Add appends actions.
func (r *Report) Add(actions ...Action) {
	r.Actions = append(r.Actions, actions...)
}

// AddError appends a non-fatal error.
func (r *Report) AddError(e Error) {
	r.Errors = append(r.Errors, e)
}

// Finalize recomputes the summary from the actions and errors. It is a pure
// aggregation and may be called more than once.
func (r *Report) Finalize() Summary {
	var s Summary
	for _, a := range r.Actions {
		s.TotalActions++
		switch a.Type {
		case FileDelete:
			s.FilesDeleted++
		case BlockRemove:
			s.BlocksRemoved += a.BlocksRemoved
			s.LinesRemoved += a.LinesRemoved
		case LineRemove:
			s.LinesRemoved += a.LinesRemoved
		case DependencyRemove:
			s.DependenciesRemoved++
		}
	}
	s.Errors = len(r.Errors)
	r.Summary = s
	return s
}

// ExitCode maps the report to a process exit code. Errors always win; with
// failOnActions a clean run that still found actions yields ExitActions.
func (r *Report) ExitCode(failOnActions bool) int {
	switch {
	case len(r.Errors) > 0:
		return ExitErrors
	case failOnActions && len(r.Actions) > 0:
		return ExitActions
	default:
		return ExitOK
	}
}

// Keys returns the identifying tuples of every action, sorted.
func (r *Report) Keys() []Key {
	keys := make([]Key, len(r.Actions))
	for i, a := range r.Actions {
		keys[i] = a.Key()
	}
	slices.SortFunc(keys, func(a, b Key) int {
		if c := strings.Compare(string(a.Type), string(b.Type)); c != 0 {
			return c
		}
		if c := strings.Compare(a.Rule, b.Rule); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return keys
}

// WriteSummary prints a human-readable summary. With details every action
// and error is listed.
func (r *Report) WriteSummary(w io.Writer, details bool) {
	mode := "apply"
	if r.DryRun {
		mode = "dry run"
	}
	features := "none"
	if len(r.Features) > 0 {
		features = strings.Join(r.Features, ", ")
	}

	fmt.Fprintf(w, "Profile %s (%s), features: %s\n", r.Profile, mode, features)
	if details {
		for _, a := range r.Actions {
			fmt.Fprintf(w, "  %-18s %s%s\n", a.Type, a.Path, describe(a))
		}
	}
	fmt.Fprintf(w, "Actions: %s total, %d files deleted, %s lines removed, %d blocks removed, %d dependencies removed\n",
		humanize.Comma(int64(r.Summary.TotalActions)),
		r.Summary.FilesDeleted,
		humanize.Comma(int64(r.Summary.LinesRemoved)),
		r.Summary.BlocksRemoved,
		r.Summary.DependenciesRemoved,
	)
	if len(r.Errors) == 0 {
		fmt.Fprintln(w, "Errors: 0")
		return
	}
	fmt.Fprintf(w, "Errors: %d\n", len(r.Errors))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  [%s] %s\n", e.Kind, e.String())
	}
}

func describe(a Action) string {
	var parts []string
	if a.Rule != "" {
		parts = append(parts, "rule "+a.Rule)
	}
	switch a.Type {
	case BlockRemove:
		parts = append(parts, fmt.Sprintf("%d blocks, %d lines", a.BlocksRemoved, a.LinesRemoved))
	case LineRemove:
		parts = append(parts, fmt.Sprintf("%d lines", a.LinesRemoved))
	case DependencyRemove:
		parts = append(parts, fmt.Sprintf("%s %s in %s", a.Manager, a.Dependency, a.Section))
	}
	if a.Reason != "" {
		parts = append(parts, a.Reason)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, "; ") + ")"
}

func (e Error) String() string {
	var b strings.Builder
	if e.Rule != "" {
		fmt.Fprintf(&b, "rule '%s': ", e.Rule)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, "%s: ", e.Path)
	}
	b.WriteString(e.Message)
	return b.String()
}

// Load reads and validates a JSON report file.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}

	if errs := Validate(&r); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return &r, nil
}

// Save writes the report atomically using a temp file and rename. Missing
// parent directories are created.
func Save(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating report directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp report in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp report %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp report %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("setting report permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp report to %s: %w", path, err)
	}
	return nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("report validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a loaded report for structural correctness.
func Validate(r *Report) []string {
	var errs []string

	if r.Timestamp.IsZero() {
		errs = append(errs, "'timestamp' is required")
	}
	if r.Profile == "" {
		errs = append(errs, "'profile' is required")
	}

	for i, a := range r.Actions {
		if !slices.Contains(ActionTypes, a.Type) {
			errs = append(errs, fmt.Sprintf("action[%d]: unknown type '%s'", i, a.Type))
		}
		if a.Path == "" {
			errs = append(errs, fmt.Sprintf("action[%d]: 'path' is required", i))
		}
	}

	for i, e := range r.Errors {
		if e.Message == "" {
			errs = append(errs, fmt.Sprintf("error[%d]: 'message' is required", i))
		}
	}

	return errs
}
