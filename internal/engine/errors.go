package engine

import (
	"errors"
	"fmt"

	"github.com/bianoble/template-cleanup/internal/pkgmgr"
	"github.com/bianoble/template-cleanup/internal/report"
)

var (
	ErrUnknownRuleType = errors.New("unknown rule type")
	ErrUnknownPlugin   = errors.New("unknown plugin")
	ErrUnknownMarker   = errors.New("unknown marker type")
)

// RuleExecutionError reports a rule whose handler failed or panicked.
type RuleExecutionError struct {
	Rule string
	Err  error
}

func (e *RuleExecutionError) Error() string {
	return fmt.Sprintf("rule '%s': %v", e.Rule, e.Err)
}

func (e *RuleExecutionError) Unwrap() error { return e.Err }

// FileIOError reports a failed file operation. The file is skipped.
type FileIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileIOError) Unwrap() error { return e.Err }

// toReportError converts err into a report entry for rule, unwrapping the
// error types the engine distinguishes.
func toReportError(rule string, err error) report.Error {
	out := report.Error{Rule: rule, Kind: report.KindRule, Message: err.Error()}

	var (
		ioErr       *FileIOError
		manifestErr *pkgmgr.ManifestError
		ruleErr     *RuleExecutionError
	)
	switch {
	case errors.As(err, &ioErr):
		out.Kind, out.Path, out.Message = report.KindIO, ioErr.Path, fmt.Sprintf("%s: %v", ioErr.Op, ioErr.Err)
	case errors.As(err, &manifestErr):
		out.Kind, out.Path = report.KindManifest, manifestErr.Path
	case errors.As(err, &ruleErr):
		out.Message = ruleErr.Err.Error()
	}
	return out
}
