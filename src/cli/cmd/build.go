package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/kfreight/src/buildgate"
	"github.com/sofmeright/kfreight/src/output"
)

var (
	buildArches []string
	buildJobs   int
	buildForce  bool
)

var buildCmd = &cobra.Command{
	Use:   "build [version...]",
	Short: "Ensure cached kernel images exist for the matrix",
	Long: `Build checks the artifact store for each matrix entry and compiles
only the entries whose cached payload is missing or does not hold a
recognizable kernel image. Versions given as arguments replace the
configured matrix versions.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringSliceVar(&buildArches, "arch", nil, "override configured architectures")
	buildCmd.Flags().IntVar(&buildJobs, "jobs", 0, "override make -j (0 = one per CPU)")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "rebuild even when a valid cached image exists")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.Matrix.Versions = args
	}
	if len(buildArches) > 0 {
		cfg.Matrix.Arches = buildArches
	}
	if buildJobs > 0 {
		cfg.Build.Jobs = buildJobs
	}

	gate, err := newGate(cfg)
	if err != nil {
		return err
	}
	gate.Force = buildForce

	w := os.Stdout
	color := output.UseColor()
	ctx := cmd.Context()
	start := time.Now()

	output.CIHeader(w)
	output.SectionStart(w, "kf_build", "Build")

	keys := matrixKeys(cfg)
	sec := output.NewSection(w, "Build", 0, color)
	var failed int
	for _, key := range keys {
		entryStart := time.Now()
		a, err := gate.EnsureArtifact(ctx, key)
		elapsed := time.Since(entryStart)

		switch {
		case err != nil:
			failed++
			detail := err.Error()
			if !buildgate.Retryable(err) {
				detail = "fatal: " + detail
			}
			output.MatrixRow(sec, key.Version, key.Arch, "failed", detail, color)
		case elapsed < time.Second:
			output.MatrixRow(sec, key.Version, key.Arch, "success",
				fmt.Sprintf("cached  %s", output.Dimmed(a.Location, color)), color)
		default:
			output.MatrixRow(sec, key.Version, key.Arch, "success",
				fmt.Sprintf("built in %s  %s", elapsed.Round(time.Second), output.Dimmed(a.Location, color)), color)
		}
	}
	sec.Separator()
	status := "success"
	if failed > 0 {
		status = "failed"
	}
	output.SummaryTotal(w, time.Since(start), status, color)
	sec.Close()
	output.SectionEnd(w, "kf_build")

	if failed > 0 {
		return fmt.Errorf("%d of %d matrix entries failed", failed, len(keys))
	}
	return nil
}
