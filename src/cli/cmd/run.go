package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/kfreight/src/artifact"
	"github.com/sofmeright/kfreight/src/gitver"
	"github.com/sofmeright/kfreight/src/output"
	"github.com/sofmeright/kfreight/src/pipeline"
	"github.com/sofmeright/kfreight/src/results"
)

var runReportDir string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full build-test-aggregate pipeline",
	Long: `Run executes the whole matrix: for each version × architecture entry a
build stage ensures a cached kernel image exists, a test stage boots it
through the configured harness, and a final aggregation stage sums the
JUnit reports and applies the blocking policy.

Aggregation always runs when the test stages ran, even if they failed:
a red test run must still be counted, never silently dropped.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runReportDir, "report-dir", ".kfreight/reports", "directory for the pipeline JUnit report")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	gate, err := newGate(cfg)
	if err != nil {
		return err
	}

	w := os.Stdout
	color := output.UseColor()
	ctx := cmd.Context()
	start := time.Now()

	output.CIHeader(w)
	output.ContextBlock(w, runContextKV())

	keys := matrixKeys(cfg)
	hasHarness := len(cfg.Tests.Harness) > 0

	var mu sync.Mutex
	artifacts := make(map[artifact.Key]*artifact.Artifact)
	var verdict results.Verdict
	var reportCount int

	var stages []pipeline.Stage
	var testIDs []string
	for _, key := range keys {
		key := key
		buildID := "build/" + key.String()
		stages = append(stages, pipeline.Stage{
			ID:   buildID,
			Name: fmt.Sprintf("build %s", key),
			Run: func(ctx context.Context) error {
				a, err := gate.EnsureArtifact(ctx, key)
				if err != nil {
					return err
				}
				mu.Lock()
				artifacts[key] = a
				mu.Unlock()
				return nil
			},
		})
		if hasHarness {
			testID := "test/" + key.String()
			testIDs = append(testIDs, testID)
			stages = append(stages, pipeline.Stage{
				ID:    testID,
				Name:  fmt.Sprintf("test %s", key),
				Needs: []string{buildID},
				Run: func(ctx context.Context) error {
					mu.Lock()
					a := artifacts[key]
					mu.Unlock()
					return runHarness(ctx, key, a)
				},
			})
		}
	}
	if hasHarness {
		stages = append(stages, pipeline.Stage{
			ID:        "aggregate",
			Name:      "aggregate results",
			Needs:     testIDs,
			AlwaysRun: true,
			Run: func(ctx context.Context) error {
				reports, err := results.Collect(cfg.Tests.ReportGlobs)
				if err != nil {
					return err
				}
				if len(reports) == 0 {
					// No reports from a configured harness reads as "the
					// harness broke", which always blocks.
					return fmt.Errorf("no reports matched %v", cfg.Tests.ReportGlobs)
				}
				mu.Lock()
				verdict = results.Aggregate(reports, results.Policy{FailuresBlock: cfg.Tests.FailuresBlock})
				reportCount = len(reports)
				mu.Unlock()
				return nil
			},
		})
	}

	sec := output.NewSection(w, "Pipeline", 0, color)
	runner := &pipeline.Runner{
		Stages:   stages,
		Parallel: int64(cfg.Matrix.Parallel),
		OnFinish: func(s pipeline.Stage, res pipeline.Result) {
			mu.Lock()
			defer mu.Unlock()
			detail := formatStageDetail(res)
			sec.Row("%-28s %s  %s", s.Name, output.StatusIcon(string(res.Status), color), detail)
		},
	}

	stageResults, runErr := runner.Run(ctx)

	sec.Separator()
	sec.Row("%s", pipeline.Summary(stageResults))
	if hasHarness && reportCount > 0 {
		output.VerdictRow(sec, verdict.String(), verdict.Blocking, color)
	}
	status := "success"
	if runErr != nil || verdict.Blocking {
		status = "failed"
	}
	output.SummaryTotal(w, time.Since(start), status, color)
	sec.Close()

	if output.IsCI() {
		if err := writeRunReport(stageResults, time.Since(start)); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write pipeline report: %v\n", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if verdict.Blocking {
		// Count convention, same as the report command.
		os.Exit(verdict.ExitCode())
	}
	return nil
}

// runHarness boots the built kernel through the configured workload
// command. The harness's own exit status does not fail the stage: failing
// assertions land in the reports and are judged by the aggregation policy.
// Only a harness that cannot run at all is a stage failure.
func runHarness(ctx context.Context, key artifact.Key, a *artifact.Artifact) error {
	cmd := exec.CommandContext(ctx, cfg.Tests.Harness[0], cfg.Tests.Harness[1:]...)
	cmd.Env = append(os.Environ(),
		"KF_VERSION="+key.Version,
		"KF_ARCH="+key.Arch,
		"KF_KERNEL="+a.Location,
	)
	if verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	err := cmd.Run()
	if _, ok := err.(*exec.ExitError); ok {
		return nil
	}
	return err
}

func formatStageDetail(res pipeline.Result) string {
	switch {
	case res.Err != nil:
		return res.Err.Error()
	case res.Status == pipeline.StatusSkipped:
		return "prerequisite failed"
	default:
		return res.Elapsed.Round(time.Millisecond).String()
	}
}

func writeRunReport(stageResults []pipeline.Result, elapsed time.Duration) error {
	view := make([]output.StageResult, 0, len(stageResults))
	for _, r := range stageResults {
		entry, stage := r.Stage, r.Stage
		if i := strings.IndexByte(r.Stage, '/'); i > 0 {
			stage, entry = r.Stage[:i], r.Stage[i+1:]
		}
		var detail string
		if r.Err != nil {
			detail = r.Err.Error()
		}
		view = append(view, output.StageResult{
			Entry:   entry,
			Stage:   stage,
			Status:  string(r.Status),
			Detail:  detail,
			Elapsed: r.Elapsed,
		})
	}
	return output.WriteRunJUnit(runReportDir, view, elapsed)
}

// runContextKV returns key-value pairs for the run context block.
func runContextKV() []output.KV {
	var kv []output.KV

	if id, err := gitver.Detect("."); err == nil {
		kv = append(kv, output.KV{Key: "Checkout", Value: id.String()})
	}
	kv = append(kv,
		output.KV{Key: "Versions", Value: fmt.Sprintf("%d", len(cfg.Matrix.Versions))},
		output.KV{Key: "Arches", Value: fmt.Sprintf("%d", len(cfg.Matrix.Arches))},
		output.KV{Key: "Parallel", Value: fmt.Sprintf("%d", cfg.Matrix.Parallel)},
		output.KV{Key: "Store", Value: cfg.Store.Backend},
		output.KV{Key: "Lease", Value: cfg.Lease.Backend},
	)
	return kv
}
