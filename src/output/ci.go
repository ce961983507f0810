package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

// GitLab collapsible section helpers.

func SectionStart(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s\r\033[0K%s\n", ts, id, name)
}

func SectionEnd(w io.Writer, id string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", ts, id)
}

// SectionStartCollapsed starts a section that is collapsed by default.
func SectionStartCollapsed(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s[collapsed=true]\r\033[0K%s\n", ts, id, name)
}

// JUnit XML types for GitLab test reporting.

type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr"`
}

// StageResult is the view model for one pipeline stage in the run report.
type StageResult struct {
	Entry   string // matrix entry, e.g. "6.6.30/x86_64"
	Stage   string // "build", "test", "aggregate"
	Status  string // "success", "failed", "skipped"
	Detail  string // cache hit, error text
	Elapsed time.Duration
}

// WriteRunJUnit writes pipeline stage results as JUnit XML so GitLab
// renders the matrix on the pipeline's test tab. Each matrix entry
// becomes a test suite, each stage a test case.
func WriteRunJUnit(dir string, results []StageResult, elapsed time.Duration) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}

	byEntry := make(map[string][]StageResult)
	var order []string
	for _, r := range results {
		if _, seen := byEntry[r.Entry]; !seen {
			order = append(order, r.Entry)
		}
		byEntry[r.Entry] = append(byEntry[r.Entry], r)
	}

	root := JUnitTestSuites{
		Name: "kfreight",
		Time: fmt.Sprintf("%.3f", elapsed.Seconds()),
	}

	for _, entry := range order {
		suite := JUnitTestSuite{Name: "kfreight/" + entry}
		var suiteElapsed time.Duration
		for _, r := range byEntry[entry] {
			tc := JUnitTestCase{
				Name:      r.Stage,
				Classname: "kfreight." + strings.ReplaceAll(entry, "/", "."),
				Time:      fmt.Sprintf("%.3f", r.Elapsed.Seconds()),
			}
			switch r.Status {
			case "failed":
				tc.Failure = &JUnitFailure{
					Message: fmt.Sprintf("%s failed for %s", r.Stage, entry),
					Type:    "failed",
					Body:    r.Detail,
				}
				suite.Failures++
				root.Failures++
			case "skipped":
				tc.Skipped = &JUnitSkipped{Message: "prerequisite failed"}
			}
			suite.Cases = append(suite.Cases, tc)
			suite.Tests++
			root.Tests++
			suiteElapsed += r.Elapsed
		}
		suite.Time = fmt.Sprintf("%.3f", suiteElapsed.Seconds())
		root.Suites = append(root.Suites, suite)
	}

	path := filepath.Join(dir, "pipeline.xml")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	f.WriteString(xml.Header)
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encoding junit xml: %w", err)
	}
	f.WriteString("\n")

	return nil
}

// CIHeader prints a compact pipeline context block at the start of a CI run.
func CIHeader(w io.Writer) {
	if !IsCI() {
		return
	}
	parts := []string{}
	if tag := os.Getenv("CI_COMMIT_TAG"); tag != "" {
		parts = append(parts, fmt.Sprintf("tag=%s", tag))
	}
	if sha := os.Getenv("CI_COMMIT_SHORT_SHA"); sha != "" {
		parts = append(parts, fmt.Sprintf("sha=%s", sha))
	} else if sha := os.Getenv("CI_COMMIT_SHA"); sha != "" && len(sha) >= 8 {
		parts = append(parts, fmt.Sprintf("sha=%s", sha[:8]))
	}
	if pipe := os.Getenv("CI_PIPELINE_ID"); pipe != "" {
		parts = append(parts, fmt.Sprintf("pipeline=%s", pipe))
	}
	if runner := os.Getenv("CI_RUNNER_DESCRIPTION"); runner != "" {
		parts = append(parts, fmt.Sprintf("runner=%s", runner))
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "  ci: %s\n", strings.Join(parts, "  "))
	}
}
