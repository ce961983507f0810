// Package kconfig models kernel configuration sets and resolves them to a
// fixed point under declarative enable rules.
package kconfig

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// Setting is a single option state: a concrete value ("y", "m", a number,
// a quoted string) or explicitly unset.
type Setting struct {
	Value  string
	notSet bool
}

// NotSet reports whether the option is recorded in "is not set" form.
func (s Setting) NotSet() bool { return s.notSet }

// ConfigSet is an ordered option-name → setting mapping in Linux .config
// shape. Order is preserved so serialized output diffs cleanly against the
// external solver's view of the file.
type ConfigSet struct {
	names []string
	opts  map[string]Setting
}

// New returns an empty ConfigSet.
func New() *ConfigSet {
	return &ConfigSet{opts: map[string]Setting{}}
}

// Set records a concrete value for an option.
func (c *ConfigSet) Set(name, value string) {
	c.put(name, Setting{Value: value})
}

// Enable sets an option to "y".
func (c *ConfigSet) Enable(name string) {
	c.put(name, Setting{Value: "y"})
}

// MarkNotSet records an option in "is not set" form, the shape the external
// solver uses to surface newly-exposed dependent options.
func (c *ConfigSet) MarkNotSet(name string) {
	c.put(name, Setting{notSet: true})
}

// Delete removes an option entirely.
func (c *ConfigSet) Delete(name string) {
	if _, ok := c.opts[name]; !ok {
		return
	}
	delete(c.opts, name)
	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i], c.names[i+1:]...)
			break
		}
	}
}

// Get returns the setting for an option.
func (c *ConfigSet) Get(name string) (Setting, bool) {
	s, ok := c.opts[name]
	return s, ok
}

// Names returns option names in insertion order.
func (c *ConfigSet) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of recorded options.
func (c *ConfigSet) Len() int { return len(c.names) }

// Clone returns a deep copy.
func (c *ConfigSet) Clone() *ConfigSet {
	out := &ConfigSet{
		names: make([]string, len(c.names)),
		opts:  make(map[string]Setting, len(c.opts)),
	}
	copy(out.names, c.names)
	for k, v := range c.opts {
		out.opts[k] = v
	}
	return out
}

func (c *ConfigSet) put(name string, s Setting) {
	if _, exists := c.opts[name]; !exists {
		c.names = append(c.names, name)
	}
	c.opts[name] = s
}

// Merge combines base and overrides into a new set. Overrides win on key
// collision; insertion order is base-first.
func Merge(base, overrides *ConfigSet) *ConfigSet {
	out := base.Clone()
	if overrides == nil {
		return out
	}
	for _, name := range overrides.names {
		out.put(name, overrides.opts[name])
	}
	return out
}

var (
	setRe   = regexp.MustCompile(`^(CONFIG_[A-Za-z0-9_]+)=(.*)$`)
	unsetRe = regexp.MustCompile(`^# (CONFIG_[A-Za-z0-9_]+) is not set$`)
)

// Parse reads .config text. Comment lines other than the "is not set" form
// are skipped; malformed non-comment lines are an error.
func Parse(r io.Reader) (*ConfigSet, error) {
	c := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if m := unsetRe.FindStringSubmatch(line); m != nil {
			c.MarkNotSet(m[1])
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if m := setRe.FindStringSubmatch(line); m != nil {
			c.Set(m[1], m[2])
			continue
		}
		return nil, fmt.Errorf("kconfig: line %d: cannot parse %q", lineNo, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("kconfig: reading config: %w", err)
	}
	return c, nil
}

// ParseString parses .config text from a string.
func ParseString(s string) (*ConfigSet, error) {
	return Parse(strings.NewReader(s))
}

// WriteTo serializes the set in .config form.
func (c *ConfigSet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, name := range c.names {
		s := c.opts[name]
		var n int
		var err error
		if s.NotSet() {
			n, err = fmt.Fprintf(w, "# %s is not set\n", name)
		} else {
			n, err = fmt.Fprintf(w, "%s=%s\n", name, s.Value)
		}
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// String renders the set in .config form.
func (c *ConfigSet) String() string {
	var b strings.Builder
	c.WriteTo(&b) //nolint:errcheck — strings.Builder cannot fail
	return b.String()
}

// Diff returns option names whose settings differ between a and b, sorted.
func Diff(a, b *ConfigSet) []string {
	var names []string
	seen := map[string]bool{}
	for _, n := range a.names {
		seen[n] = true
		if vb, ok := b.opts[n]; !ok || vb != a.opts[n] {
			names = append(names, n)
		}
	}
	for _, n := range b.names {
		if !seen[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
