package results

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAggregate_ErrorsAlwaysBlock(t *testing.T) {
	v := Aggregate([]Report{{Errors: 1}}, Policy{})
	if !v.Blocking {
		t.Fatalf("verdict with errors must block: %+v", v)
	}
	if v.ExitCode() != 1 {
		t.Fatalf("ExitCode = %d, want 1", v.ExitCode())
	}
}

func TestAggregate_FailuresBlockOnlyPerPolicy(t *testing.T) {
	reports := []Report{{Failures: 3}}

	v := Aggregate(reports, Policy{})
	if v.Blocking {
		t.Fatalf("failures blocked with non-blocking policy: %+v", v)
	}
	if v.ExitCode() != 3 {
		t.Fatalf("ExitCode = %d, want 3 (failure count)", v.ExitCode())
	}

	strict := Aggregate(reports, Policy{FailuresBlock: true})
	if !strict.Blocking {
		t.Fatalf("failures did not block with strict policy: %+v", strict)
	}
}

func TestAggregate_SumsAcrossParallelRuns(t *testing.T) {
	v := Aggregate([]Report{
		{Errors: 0, Failures: 0},
		{Errors: 2, Failures: 1},
	}, Policy{})

	if v.TotalErrors != 2 || v.TotalFailures != 1 {
		t.Fatalf("totals = %d/%d, want 2/1", v.TotalErrors, v.TotalFailures)
	}
	// Errors take priority in the exit code even when failures exist.
	if v.ExitCode() != 2 {
		t.Fatalf("ExitCode = %d, want 2", v.ExitCode())
	}
}

func TestAggregate_CleanRun(t *testing.T) {
	v := Aggregate([]Report{{Tests: 42}}, Policy{FailuresBlock: true})
	if !v.Clean() || v.Blocking || v.ExitCode() != 0 {
		t.Fatalf("clean run misjudged: %+v exit=%d", v, v.ExitCode())
	}
	if v.String() != "clean" {
		t.Fatalf("String = %q", v.String())
	}
}

const junitSuitesXML = `<?xml version="1.0" encoding="utf-8"?>
<testsuites>
  <testsuite name="hid-core" tests="120" errors="1" failures="2" time="31.4"/>
  <testsuite name="hid-multitouch" tests="48" errors="0" failures="1" time="12.0"/>
</testsuites>`

const junitBareSuiteXML = `<?xml version="1.0" encoding="utf-8"?>
<testsuite name="pytest" tests="12" errors="0" failures="4" time="3.2"/>`

func TestParseJUnit_SuitesAndBareSuite(t *testing.T) {
	r, err := ParseJUnit(strings.NewReader(junitSuitesXML))
	if err != nil {
		t.Fatalf("ParseJUnit(testsuites): %v", err)
	}
	if r.Tests != 168 || r.Errors != 1 || r.Failures != 3 {
		t.Fatalf("testsuites counts = %+v", r)
	}

	bare, err := ParseJUnit(strings.NewReader(junitBareSuiteXML))
	if err != nil {
		t.Fatalf("ParseJUnit(testsuite): %v", err)
	}
	if bare.Tests != 12 || bare.Errors != 0 || bare.Failures != 4 {
		t.Fatalf("bare suite counts = %+v", bare)
	}
}

func TestParseJUnit_RejectsGarbage(t *testing.T) {
	if _, err := ParseJUnit(strings.NewReader("errors: lots")); err == nil {
		t.Fatalf("expected parse error for non-XML input")
	}
}

func TestCollect_GlobsAndSums(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("report-x86_64.xml", junitSuitesXML)
	write("report-arm64.xml", junitBareSuiteXML)
	write("notes.txt", "not a report")

	reports, err := Collect([]string{filepath.Join(dir, "report-*.xml")})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("collected %d reports, want 2", len(reports))
	}

	v := Aggregate(reports, Policy{})
	if v.TotalErrors != 1 || v.TotalFailures != 7 {
		t.Fatalf("aggregated totals = %d/%d, want 1/7", v.TotalErrors, v.TotalFailures)
	}
	if v.ExitCode() != 1 {
		t.Fatalf("ExitCode = %d, want 1 (errors take priority)", v.ExitCode())
	}
}
