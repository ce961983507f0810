package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/kfreight/src/output"
	"github.com/sofmeright/kfreight/src/results"
)

var booleanExit bool

var reportCmd = &cobra.Command{
	Use:   "report [glob...]",
	Short: "Aggregate test reports and print the verdict",
	Long: `Report collects JUnit XML files matching the configured globs (or the
globs given as arguments), sums errors and failures across runs, and
applies the blocking policy.

The process exit status follows the count convention: the error count
when any error occurred, otherwise the failure count. Pass
--boolean-exit for conventional 0/1 semantics.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&booleanExit, "boolean-exit", false, "exit 1 on any blocking verdict instead of the count convention")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	globs := cfg.Tests.ReportGlobs
	if len(args) > 0 {
		globs = args
	}

	reports, err := results.Collect(globs)
	if err != nil {
		return err
	}

	verdict := results.Aggregate(reports, results.Policy{FailuresBlock: cfg.Tests.FailuresBlock})

	w := os.Stdout
	color := output.UseColor()
	sec := output.NewSection(w, "Results", 0, color)
	var tests int
	for _, r := range reports {
		status := "success"
		if r.Errors > 0 || r.Failures > 0 {
			status = "failed"
		}
		output.MatrixRow(sec, r.Name, "", status,
			fmt.Sprintf("%d tests, %d errors, %d failures", r.Tests, r.Errors, r.Failures), color)
		tests += r.Tests
	}
	if len(reports) == 0 {
		sec.Row("no reports matched %v", globs)
	}
	sec.Separator()
	output.VerdictRow(sec, verdict.String(), verdict.Blocking, color)
	sec.Close()

	if verbose {
		fmt.Fprintf(os.Stderr, "aggregated %d report(s), %d test(s)\n", len(reports), tests)
	}

	if !verdict.Blocking {
		return nil
	}
	if booleanExit {
		os.Exit(1)
	}
	// Count convention: the exit status carries the error or failure count.
	os.Exit(verdict.ExitCode())
	return nil
}
