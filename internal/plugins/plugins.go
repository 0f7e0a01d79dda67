// Package plugins holds the custom rule handlers that ship with the binary.
package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/wasilibs/go-re2"

	"github.com/bianoble/template-cleanup/internal/config"
	"github.com/bianoble/template-cleanup/internal/engine"
	"github.com/bianoble/template-cleanup/internal/report"
	"github.com/bianoble/template-cleanup/internal/transform"
)

// RemoveLinesMatching deletes every line matching options.pattern from the
// rule's files.
const RemoveLinesMatching = "builtin/remove-lines-matching"

// Register adds the built-in handlers to reg.
func Register(reg *engine.PluginRegistry) error {
	return reg.Register(RemoveLinesMatching, engine.CustomRuleFunc(removeLinesMatching))
}

func removeLinesMatching(ctx context.Context, rule config.Rule, pc *engine.PluginContext) ([]report.Action, error) {
	pattern, _ := rule.Options["pattern"].(string)
	if pattern == "" {
		return nil, errors.New("option 'pattern' is required")
	}
	re, err := re2.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern: %w", err)
	}

	files, err := pc.Files(rule)
	if err != nil {
		return nil, err
	}

	var actions []report.Action
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return actions, err
		}

		data, err := pc.FS.ReadFile(name)
		if err != nil {
			return actions, fmt.Errorf("reading %s: %w", name, err)
		}
		if !transform.IsText(data) {
			continue
		}

		lines := transform.SplitLines(data)
		var hits []int
		for i, line := range lines {
			if re.MatchString(line) {
				hits = append(hits, i)
			}
		}
		if len(hits) == 0 {
			continue
		}

		out, removed := transform.RemoveLines(lines, hits)
		if err := pc.FS.WriteFile(name, transform.JoinLines(out)); err != nil {
			return actions, fmt.Errorf("writing %s: %w", name, err)
		}
		pc.Logger.Debug("removed matching lines", "path", name, "lines", removed)
		actions = append(actions, report.Action{Type: report.LineRemove, Path: name, LinesRemoved: removed})
	}
	return actions, nil
}
