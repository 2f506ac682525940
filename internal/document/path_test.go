// SPDX-License-Identifier: MPL-2.0

package document

import (
	"errors"
	"testing"
)

func TestPatternMatch(t *testing.T) {
	t.Parallel()

	path := Path{KeySegment("scrape_configs"), IndexSegment(2), KeySegment("scrape_timeout")}
	tests := []struct {
		pattern string
		want    bool
	}{
		{"scrape_configs[2].scrape_timeout", true},
		{"scrape_configs.2.scrape_timeout", true},
		{"scrape_configs.*.scrape_timeout", true},
		{"scrape_configs[*].scrape_timeout", true},
		{"**.scrape_timeout", true},
		{"**", true},
		{"scrape_*.*.scrape_timeout", true},
		{"scrape_configs[1].scrape_timeout", false},
		{"scrape_configs.*", false},
		{"global.scrape_timeout", false},
	}
	for _, tt := range tests {
		if got := MustPattern(tt.pattern).Match(path); got != tt.want {
			t.Errorf("%q.Match(%s) = %v, want %v", tt.pattern, path, got, tt.want)
		}
	}
}

func TestPatternQuotedSegment(t *testing.T) {
	t.Parallel()

	path := Path{KeySegment("flags"), KeySegment("storage.tsdb.retention.time")}
	if !MustPattern(`flags."storage.tsdb.retention.time"`).Match(path) {
		t.Error("quoted segment did not match dotted key")
	}
	if got := path.String(); got != `flags."storage.tsdb.retention.time"` {
		t.Errorf("String() = %s", got)
	}
}

func TestParsePatternErrors(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"a..b", "a[x]", `a."b`, "a[1", "a."} {
		if _, err := ParsePattern(raw); !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("ParsePattern(%q) error = %v, want ErrInvalidPattern", raw, err)
		}
	}
}

func TestValueString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v    Value
		want string
	}{
		{Value{Family: FamilyDuration, Canonical: "15552000000ms"}, "180d"},
		{Value{Family: FamilyDuration, Canonical: "5400000ms"}, "90m"},
		{Value{Family: FamilyDuration, Canonical: "1500ms"}, "1500ms"},
		{Value{Family: FamilySize, Canonical: "4294967296"}, "4GiB"},
		{Value{Family: FamilyVersion, Canonical: "v15.10.0"}, "v15.10.0"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.v, got, tt.want)
		}
	}
}
