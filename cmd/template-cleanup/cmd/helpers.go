package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/bianoble/template-cleanup/internal/log"
	"github.com/bianoble/template-cleanup/internal/report"
	"github.com/bianoble/template-cleanup/pkg/cleanup"
)

// commandContext returns the command's context, or Background when the
// command is invoked outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newClient creates a library client from the global flags.
func newClient(ctx context.Context) (*cleanup.Client, error) {
	return cleanup.New(cleanup.Options{
		WorkingDir:  workingDir,
		ConfigPath:  configPath,
		NoCache:     noCache || !useCache,
		Performance: performance || metricsFile != "",
		Logger:      log.FromContext(ctx),
	})
}

// isDryRun reports whether files must be left untouched.
func isDryRun() bool {
	return dryRun && !apply
}

// runOptions builds the run options from the global flags.
func runOptions(dry bool) cleanup.RunOptions {
	opts := cleanup.RunOptions{
		Profile:      profile,
		Features:     features,
		DryRun:       dry,
		Only:         only,
		Exclude:      exclude,
		ExcludeGlobs: excludeGlobs,
		Keep:         keep,
		Parallel:     parallel,
		Concurrency:  concurrency,
	}
	if progress && !quiet {
		opts.OnProgress = progressPrinter(stderr)
	}
	return opts
}

// progressPrinter returns an OnProgress callback that keeps one updating
// line per rule.
func progressPrinter(w io.Writer) func(rule string, completed, total int) {
	var mu sync.Mutex
	return func(rule string, completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "\r  %s: %d/%d files", rule, completed, total)
		if completed == total {
			fmt.Fprintln(w)
		}
	}
}

// printReport writes the run summary. Errors reach stderr even in quiet mode.
func printReport(rep *report.Report) {
	if quiet {
		for _, e := range rep.Errors {
			errorf("%s", e.String())
		}
		return
	}

	rep.WriteSummary(stdout, verbose || rep.DryRun)
	if rep.Performance != nil {
		info("")
		fmt.Fprint(stdout, rep.Performance.Summary())
	}
	if rep.DryRun && rep.Summary.TotalActions > 0 {
		info("")
		info("Dry run: no files were changed. Re-run with --apply to make these changes.")
	}
}

// printDiffs writes the pending change of every touched path.
func printDiffs(diffs []cleanup.FileDiff) {
	if quiet {
		return
	}
	for _, d := range diffs {
		if d.Removed {
			fmt.Fprintf(stdout, "deleted: %s\n", d.Path)
			continue
		}
		fmt.Fprint(stdout, d.Unified)
	}
	if len(diffs) > 0 {
		info("")
	}
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(stdout, format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose {
		fmt.Fprintf(stdout, "  "+format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(stderr, "error: "+format+"\n", args...)
}
