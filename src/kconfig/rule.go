package kconfig

import (
	"fmt"
	"regexp"
)

// Rule declaratively enables options: any option recorded in "is not set"
// form whose name matches the pattern is rewritten to "y". Rules are
// commutative within a pass; only repetition drives convergence.
type Rule struct {
	Pattern *regexp.Regexp
}

// CompileRule compiles a single rule pattern. Patterns are anchored so a
// rule for CONFIG_HID cannot accidentally cover CONFIG_HIDRAW.
func CompileRule(expr string) (Rule, error) {
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return Rule{}, fmt.Errorf("kconfig: rule %q: %w", expr, err)
	}
	return Rule{Pattern: re}, nil
}

// MustRule compiles a pattern and panics on error. For tests and fixed
// built-in rule tables.
func MustRule(expr string) Rule {
	r, err := CompileRule(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// RuleSet is an unordered collection of enable rules.
type RuleSet []Rule

// CompileRules compiles a list of patterns into a RuleSet.
func CompileRules(exprs []string) (RuleSet, error) {
	rs := make(RuleSet, 0, len(exprs))
	for _, expr := range exprs {
		r, err := CompileRule(expr)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, nil
}

// Matches reports whether any rule covers the option name.
func (rs RuleSet) Matches(name string) bool {
	for _, r := range rs {
		if r.Pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// UnsetMatches returns, in config order, option names still in "is not set"
// form that some rule wants enabled. A resolved configuration has none.
func (rs RuleSet) UnsetMatches(c *ConfigSet) []string {
	var names []string
	for _, name := range c.Names() {
		s, _ := c.Get(name)
		if s.NotSet() && rs.Matches(name) {
			names = append(names, name)
		}
	}
	return names
}
