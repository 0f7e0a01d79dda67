package cleanup

import (
	"context"
	"sort"

	"github.com/aymanbagabas/go-udiff"

	"github.com/bianoble/template-cleanup/internal/fsys"
	"github.com/bianoble/template-cleanup/internal/report"
)

// FileDiff is the pending change to one path found by Preview.
type FileDiff struct {
	Path string

	// Removed is set when the path (a file or a whole directory) would be
	// deleted. Unified is then empty.
	Removed bool

	// Unified is the unified diff of a rewritten file.
	Unified string
}

// Preview performs a dry run and also returns what an apply run would change,
// one entry per touched path in path order.
func (c *Client) Preview(ctx context.Context, opts RunOptions) (*report.Report, []FileDiff, error) {
	base, err := fsys.NewOS(c.workingDir)
	if err != nil {
		return nil, nil, err
	}
	overlay := fsys.NewOverlay(base)

	opts.DryRun = true
	rep, err := c.run(ctx, overlay, opts)
	if err != nil {
		return nil, nil, err
	}
	return rep, diffs(base, overlay), nil
}

func diffs(base fsys.FileSystem, overlay *fsys.Overlay) []FileDiff {
	written, removed := overlay.Changes()

	var out []FileDiff
	for _, name := range removed {
		// Children of a removed directory are covered by it.
		if _, err := base.Stat(name); err != nil || coveredBy(name, removed) {
			continue
		}
		out = append(out, FileDiff{Path: name, Removed: true})
	}
	for _, name := range written {
		after, err := overlay.ReadFile(name)
		if err != nil {
			continue
		}
		before, _ := base.ReadFile(name)
		unified := udiff.Unified("a/"+name, "b/"+name, string(before), string(after))
		if unified == "" {
			continue
		}
		out = append(out, FileDiff{Path: name, Unified: unified})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// coveredBy reports whether a parent directory of name is in removed.
func coveredBy(name string, removed []string) bool {
	for _, r := range removed {
		if len(name) > len(r) && name[:len(r)] == r && name[len(r)] == '/' {
			return true
		}
	}
	return false
}
