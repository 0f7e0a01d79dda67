package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bianoble/template-cleanup/internal/log"
	"github.com/bianoble/template-cleanup/internal/report"
	"github.com/bianoble/template-cleanup/pkg/cleanup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the rules of a profile (the default command)",
	Long: `Loads the configuration, resolves the selected profile and its conditional
rules against the active features, and executes every rule in order.

Exit 0 when no errors occurred; exit 1 when a rule or the configuration failed;
with --fail-on-actions, exit 2 when there were no errors but actions were found.`,
	RunE: runCleanup,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that no template scaffolding is left",
	Long: `Runs the selected profile as a dry run and fails when it would change
anything. Suitable for CI pipelines.

Exit 0 if the project is clean; exit 2 if actions were found; exit 1 on errors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, true, true)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	return execute(cmd, isDryRun(), failOnActions)
}

// execute performs one run and converts its outcome to an ExitError.
func execute(cmd *cobra.Command, dry, failOn bool) error {
	ctx := commandContext(cmd)

	client, err := newClient(ctx)
	if err != nil {
		return &ExitError{Code: report.ExitErrors, Err: err}
	}

	var (
		rep   *report.Report
		diffs []cleanup.FileDiff
	)
	if showDiff && dry {
		rep, diffs, err = client.Preview(ctx, runOptions(dry))
	} else {
		if showDiff {
			log.FromContext(ctx).Warn("--diff only applies to dry runs")
		}
		rep, err = client.Run(ctx, runOptions(dry))
	}
	if err != nil {
		return &ExitError{Code: report.ExitErrors, Err: err}
	}

	if reportPath != "" {
		if err := report.Save(reportPath, rep); err != nil {
			return &ExitError{Code: report.ExitErrors, Err: fmt.Errorf("writing report: %w", err)}
		}
		detail("report written to %s", reportPath)
	}

	if metricsFile != "" {
		if err := client.Metrics().WriteTextfile(metricsFile); err != nil {
			return &ExitError{Code: report.ExitErrors, Err: err}
		}
		detail("metrics written to %s", metricsFile)
	}

	printDiffs(diffs)
	printReport(rep)

	if code := rep.ExitCode(failOn); code != report.ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}
