package kconfig

import (
	"strings"
	"testing"
)

const sampleConfig = `#
# Automatically generated file; DO NOT EDIT.
#
CONFIG_LOCALVERSION="-kfreight"
CONFIG_HID=y
CONFIG_USB_HID=m
# CONFIG_UHID is not set
CONFIG_LOG_BUF_SHIFT=18
`

func TestParse_ConfigShapes(t *testing.T) {
	c, err := ParseString(sampleConfig)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}

	if got := c.Len(); got != 5 {
		t.Fatalf("Len = %d, want 5", got)
	}

	cases := []struct {
		name   string
		value  string
		notSet bool
	}{
		{"CONFIG_LOCALVERSION", `"-kfreight"`, false},
		{"CONFIG_HID", "y", false},
		{"CONFIG_USB_HID", "m", false},
		{"CONFIG_UHID", "", true},
		{"CONFIG_LOG_BUF_SHIFT", "18", false},
	}
	for _, tc := range cases {
		s, ok := c.Get(tc.name)
		if !ok {
			t.Fatalf("option %s missing", tc.name)
		}
		if s.Value != tc.value || s.NotSet() != tc.notSet {
			t.Fatalf("option %s = %+v, want value=%q notSet=%v", tc.name, s, tc.value, tc.notSet)
		}
	}
}

func TestParse_RejectsGarbage(t *testing.T) {
	if _, err := ParseString("CONFIG_HID y\n"); err == nil {
		t.Fatalf("expected parse error for malformed line")
	}
}

func TestRender_RoundTripsUnsetForm(t *testing.T) {
	c := New()
	c.Enable("CONFIG_HID")
	c.MarkNotSet("CONFIG_UHID")

	out := c.String()
	if !strings.Contains(out, "CONFIG_HID=y\n") {
		t.Fatalf("missing enabled line in %q", out)
	}
	if !strings.Contains(out, "# CONFIG_UHID is not set\n") {
		t.Fatalf("missing unset line in %q", out)
	}

	back, err := ParseString(out)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if diff := Diff(c, back); len(diff) != 0 {
		t.Fatalf("round trip changed options: %v", diff)
	}
}

func TestMerge_PreservesOrderAndOverrides(t *testing.T) {
	base := New()
	base.Enable("CONFIG_HID")
	base.Set("CONFIG_LOCALVERSION", `"-base"`)

	overrides := New()
	overrides.Set("CONFIG_LOCALVERSION", `"-run42"`)
	overrides.Enable("CONFIG_UHID")

	merged := Merge(base, overrides)

	want := []string{"CONFIG_HID", "CONFIG_LOCALVERSION", "CONFIG_UHID"}
	got := merged.Names()
	if len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}

	if s, _ := merged.Get("CONFIG_LOCALVERSION"); s.Value != `"-run42"` {
		t.Fatalf("override lost: %+v", s)
	}

	// Merge must not mutate its inputs.
	if s, _ := base.Get("CONFIG_LOCALVERSION"); s.Value != `"-base"` {
		t.Fatalf("base mutated: %+v", s)
	}
}

func TestRuleAnchoring(t *testing.T) {
	rules, err := CompileRules([]string{"CONFIG_HID"})
	if err != nil {
		t.Fatalf("CompileRules: %v", err)
	}
	if !rules.Matches("CONFIG_HID") {
		t.Fatalf("rule should match its own name")
	}
	if rules.Matches("CONFIG_HIDRAW") {
		t.Fatalf("anchored rule must not match prefixed names")
	}

	wildcard, err := CompileRules([]string{"CONFIG_HID_.*"})
	if err != nil {
		t.Fatalf("CompileRules: %v", err)
	}
	if !wildcard.Matches("CONFIG_HID_APPLE") {
		t.Fatalf("wildcard rule should match CONFIG_HID_APPLE")
	}
}
