package engine

import (
	"context"
	"fmt"

	"github.com/bianoble/template-cleanup/internal/config"
	"github.com/bianoble/template-cleanup/internal/markers"
	"github.com/bianoble/template-cleanup/internal/report"
	"github.com/bianoble/template-cleanup/internal/transform"
)

func (r *run) blockMarkers(ctx context.Context, rule config.Rule) (outcome, error) {
	return r.removeBlocks(ctx, rule, markers.TypeTemplateOnly)
}

// conditionalBlock runs only once Execute has found its condition true.
func (r *run) conditionalBlock(ctx context.Context, rule config.Rule) (outcome, error) {
	return r.removeBlocks(ctx, rule, markers.TypeConditional)
}

// removeBlocks splices every closed block of the rule's marker type (or
// fallback) out of each file, marker lines included. LinesRemoved counts the
// marker lines too: a block wrapping three lines reports five.
func (r *run) removeBlocks(ctx context.Context, rule config.Rule, fallback string) (outcome, error) {
	typ := rule.Marker
	if typ == "" {
		typ = fallback
	}
	if !r.Parser.HasType(typ) {
		return outcome{}, &RuleExecutionError{Rule: rule.ID, Err: fmt.Errorf("%w '%s'", ErrUnknownMarker, typ)}
	}

	return r.rewrite(ctx, rule, func(name string, lines []string, res markers.Result) ([]string, *report.Action) {
		blocks := res.BlocksOf(typ)
		if len(blocks) == 0 {
			return nil, nil
		}

		spans := make([]transform.Span, len(blocks))
		for i, b := range blocks {
			spans[i] = b.Span()
		}
		out, removed := transform.RemoveSpans(lines, spans)

		act := r.action(rule, report.BlockRemove, name)
		act.BlocksRemoved = len(blocks)
		act.LinesRemoved = removed
		return out, &act
	})
}

func (r *run) lineTag(ctx context.Context, rule config.Rule) (outcome, error) {
	if r.Parser.LineTag() == "" {
		r.Logger.Debug("no line tag configured", "rule", rule.ID)
		return outcome{}, nil
	}

	return r.rewrite(ctx, rule, func(name string, lines []string, res markers.Result) ([]string, *report.Action) {
		if len(res.Tags) == 0 {
			return nil, nil
		}
		out, removed := transform.RemoveLines(lines, res.Tags)

		act := r.action(rule, report.LineRemove, name)
		act.LinesRemoved = removed
		return out, &act
	})
}
