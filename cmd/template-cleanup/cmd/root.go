package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bianoble/template-cleanup/internal/log"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	configPath    string
	workingDir    string
	profile       string
	features      []string
	only          []string
	exclude       []string
	excludeGlobs  []string
	keep          []string
	reportPath    string
	dryRun        bool
	apply         bool
	failOnActions bool
	useCache      bool
	noCache       bool
	parallel      bool
	concurrency   int
	performance   bool
	progress      bool
	metricsFile   string
	showDiff      bool
	verbose       bool
	quiet         bool
	logLevel      string
	logFormat     string
)

// Output streams, swapped in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "template-cleanup",
	Short: "Strip template scaffolding from a generated project",
	Long: `template-cleanup turns a project generated from a template into a clean
project. It runs the rules of a configuration profile: deleting template-only
files, stripping marked blocks and tagged lines, pruning dependencies from
package manifests and removing what is left empty.

Runs are dry by default; pass --apply to change files.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	RunE:              runCleanup,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(stdout, "template-cleanup %s\n", version)
		fmt.Fprintf(stdout, "  commit:  %s\n", commit)
		fmt.Fprintf(stdout, "  built:   %s\n", date)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to config file (default: discovered in the working directory)")
	pf.StringVar(&workingDir, "working-dir", ".", "project directory to clean")
	pf.StringVar(&profile, "profile", "default", "profile to run")
	pf.StringSliceVar(&features, "feature", nil, "enable a feature, or disable one with !name (repeatable)")
	pf.StringSliceVar(&only, "only", nil, "run only these rule ids")
	pf.StringSliceVar(&exclude, "exclude", nil, "skip these rule ids")
	pf.StringSliceVar(&excludeGlobs, "exclude-glob", nil, "never touch paths matching these globs")
	pf.StringSliceVar(&keep, "keep", nil, "never touch these paths")
	pf.StringVar(&reportPath, "report", "", "write the JSON report to this path")
	pf.BoolVar(&dryRun, "dry-run", true, "report what would change without writing files")
	pf.BoolVar(&apply, "apply", false, "apply changes (same as --dry-run=false)")
	pf.BoolVar(&failOnActions, "fail-on-actions", false, "exit 2 when there are no errors but actions were found")
	pf.BoolVar(&useCache, "cache", true, "memoize parsed configs and files")
	pf.BoolVar(&noCache, "no-cache", false, "disable caching")
	pf.BoolVar(&parallel, "parallel", false, "process the files of a rule concurrently")
	pf.IntVar(&concurrency, "concurrency", 0, "worker count in parallel mode (default: number of CPUs)")
	pf.BoolVar(&performance, "performance", false, "track and print performance statistics")
	pf.BoolVar(&progress, "progress", false, "print per-rule progress to stderr")
	pf.StringVar(&metricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path (implies --performance)")
	pf.BoolVar(&showDiff, "diff", false, "print a unified diff of every file a dry run would change")
	pf.BoolVar(&verbose, "verbose", false, "detailed output")
	pf.BoolVar(&quiet, "quiet", false, "minimal output (errors only)")
	pf.StringVar(&logLevel, "log-level", "warn", "log level: error, warn, info, debug")
	pf.StringVar(&logFormat, "log-format", "text", "log format: text, logfmt, json")

	rootCmd.AddCommand(versionCmd)
}

// setupLogging installs the slog handler selected by the flags.
func setupLogging(cmd *cobra.Command, args []string) error {
	level := logLevel
	switch {
	case verbose:
		level = string(log.LevelDebug)
	case quiet:
		level = string(log.LevelError)
	}

	h, err := log.CreateHandlerWithStrings(stderr, level, logFormat)
	if err != nil {
		return err
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	cmd.SetContext(log.NewContext(commandContext(cmd), logger))
	return nil
}

// ExitError carries a process exit code. A nil Err means the reason has
// already been reported.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Err != nil {
		fmt.Fprintln(stderr, err)
	}
	return err
}
