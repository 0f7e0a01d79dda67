package report

import (
	"time"

	"github.com/bianoble/template-cleanup/internal/perf"
)

// ActionType identifies the kind of effect an Action records.
type ActionType string

const (
	FileDelete       ActionType = "file_delete"
	BlockRemove      ActionType = "block_remove"
	LineRemove       ActionType = "line_remove"
	DependencyRemove ActionType = "dependency_remove"
)

// ActionTypes lists every known action type.
var ActionTypes = []ActionType{FileDelete, BlockRemove, LineRemove, DependencyRemove}

// Action is one observed or performed effect. Actions are values and are
// never modified once added to a Report.
type Action struct {
	Type          ActionType `json:"type"`
	Rule          string     `json:"rule"`
	Path          string     `json:"path"`
	LinesRemoved  int        `json:"linesRemoved,omitempty"`
	BlocksRemoved int        `json:"blocksRemoved,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Manager       string     `json:"manager,omitempty"`
	Dependency    string     `json:"dependency,omitempty"`
	Section       string     `json:"section,omitempty"`
	DryRun        bool       `json:"dryRun"`
}

// Key identifies an action independent of ordering, counts and mode.
type Key struct {
	Type ActionType
	Rule string
	Path string
}

// Key returns the identifying tuple of a.
func (a Action) Key() Key {
	return Key{Type: a.Type, Rule: a.Rule, Path: a.Path}
}

// ErrorKind classifies a recorded error.
type ErrorKind string

const (
	KindRule     ErrorKind = "rule"
	KindManifest ErrorKind = "manifest"
	KindIO       ErrorKind = "io"
)

// Error is a non-fatal failure scoped to a rule or a file.
type Error struct {
	Rule    string    `json:"rule,omitempty"`
	Path    string    `json:"path,omitempty"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Summary holds counts derived from the actions.
type Summary struct {
	TotalActions        int `json:"totalActions"`
	FilesDeleted        int `json:"filesDeleted"`
	LinesRemoved        int `json:"linesRemoved"`
	BlocksRemoved       int `json:"blocksRemoved"`
	DependenciesRemoved int `json:"dependenciesRemoved"`
	Errors              int `json:"errors"`
}

// Report is the outcome of one cleanup run. A Report is owned by a single
// run and is not safe for concurrent use.
type Report struct {
	RunID       string       `json:"runId,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	Profile     string       `json:"profile"`
	Features    []string     `json:"features"`
	DryRun      bool         `json:"dryRun"`
	Actions     []Action     `json:"actions"`
	Errors      []Error      `json:"errors"`
	Summary     Summary      `json:"summary"`
	Performance *perf.Report `json:"performance,omitempty"`
}
