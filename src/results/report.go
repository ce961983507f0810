// Package results consumes structured test reports and computes the
// pipeline verdict, keeping infrastructure errors and workload assertion
// failures strictly apart.
package results

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Report is one test run's counts. Errors are infrastructure or tooling
// faults (the harness itself broke); failures are workload assertions that
// did not hold. Reports from parallel runs combine by summation, never by
// overwrite.
type Report struct {
	Name     string
	Tests    int
	Errors   int
	Failures int
}

// junitSuites matches a <testsuites> document.
type junitSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []junitSuite `xml:"testsuite"`
}

// junitSuite matches a <testsuite> element, also accepted as the root.
type junitSuite struct {
	Name     string `xml:"name,attr"`
	Tests    int    `xml:"tests,attr"`
	Errors   int    `xml:"errors,attr"`
	Failures int    `xml:"failures,attr"`
}

// ParseJUnit reads a harness JUnit XML document. Both <testsuites> and a
// bare <testsuite> root are accepted; suite counts sum into one report.
func ParseJUnit(r io.Reader) (Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Report{}, fmt.Errorf("results: reading report: %w", err)
	}

	var doc junitSuites
	if err := xml.Unmarshal(data, &doc); err == nil {
		report := Report{Name: "testsuites"}
		for _, s := range doc.Suites {
			if report.Name == "testsuites" && s.Name != "" {
				report.Name = s.Name
			}
			report.Tests += s.Tests
			report.Errors += s.Errors
			report.Failures += s.Failures
		}
		if err := validateCounts(report); err != nil {
			return Report{}, err
		}
		return report, nil
	}

	var suite junitSuite
	if err := xml.Unmarshal(data, &suite); err != nil {
		return Report{}, fmt.Errorf("results: parsing junit xml: %w", err)
	}
	report := Report{Name: suite.Name, Tests: suite.Tests, Errors: suite.Errors, Failures: suite.Failures}
	if err := validateCounts(report); err != nil {
		return Report{}, err
	}
	return report, nil
}

func validateCounts(r Report) error {
	if r.Errors < 0 || r.Failures < 0 || r.Tests < 0 {
		return fmt.Errorf("results: report %q has negative counts (tests=%d errors=%d failures=%d)",
			r.Name, r.Tests, r.Errors, r.Failures)
	}
	return nil
}

// ParseFile parses one JUnit XML file.
func ParseFile(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("results: opening %s: %w", path, err)
	}
	defer f.Close()

	report, err := ParseJUnit(f)
	if err != nil {
		return Report{}, fmt.Errorf("results: %s: %w", path, err)
	}
	if report.Name == "" || report.Name == "testsuites" {
		report.Name = filepath.Base(path)
	}
	return report, nil
}

// Collect globs report files and parses each. Paths sort deterministically
// so aggregation output is stable across runs.
func Collect(patterns []string) ([]Report, error) {
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("results: bad glob %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	reports := make([]Report, 0, len(paths))
	for _, path := range paths {
		report, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
