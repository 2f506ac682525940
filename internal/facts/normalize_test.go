// SPDX-License-Identifier: MPL-2.0

package facts

import (
	"errors"
	"testing"

	"github.com/confaudit/confaudit/internal/document"
)

func TestNormalizeDurationEquivalence(t *testing.T) {
	t.Parallel()

	inputs := []any{"180 days", "180d", "4320h", "180days", "15552000s", int64(15552000), "6 months"}
	var first document.Value
	for i, raw := range inputs {
		v, err := Normalize(document.FamilyDuration, raw, "s")
		if err != nil {
			t.Fatalf("Normalize(%v) error = %v", raw, err)
		}
		if i == 0 {
			first = v
			continue
		}
		if !v.Equal(first) {
			t.Errorf("Normalize(%v) = %+v, want equal to %+v", raw, v, first)
		}
	}
	if first.String() != "180d" {
		t.Errorf("String() = %q, want 180d", first.String())
	}
	if first.Number != 15552000 {
		t.Errorf("Number = %v, want seconds", first.Number)
	}
}

func TestNormalizeCalendarUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b  string
		equal bool
	}{
		{"12 months", "1 year", true},
		{"24 months", "2y", true},
		{"12 months", "365d", true},
		{"6 months", "4320h", true},
		{"18 months", "540d", true},
		{"1 week", "7d", true},
		{"52 weeks", "1 year", false},
		{"3 months", "90 days", true},
	}
	for _, tt := range tests {
		a, err := Normalize(document.FamilyDuration, tt.a, "")
		if err != nil {
			t.Fatalf("Normalize(%q) error = %v", tt.a, err)
		}
		b, err := Normalize(document.FamilyDuration, tt.b, "")
		if err != nil {
			t.Fatalf("Normalize(%q) error = %v", tt.b, err)
		}
		if a.Equal(b) != tt.equal {
			t.Errorf("%q (%s) equal %q (%s) = %v, want %v", tt.a, a, tt.b, b, !tt.equal, tt.equal)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		unit document.Family
		raw  any
	}{
		{document.FamilyDuration, "2160h"},
		{document.FamilyDuration, "1500ms"},
		{document.FamilySize, "4GB"},
		{document.FamilySize, "512MiB"},
		{document.FamilyVersion, "2.50+"},
		{document.FamilyVersion, "v13"},
		{document.FamilyBoolean, "yes"},
		{document.FamilyPercentage, "85%"},
		{document.FamilyCount, int64(0)},
		{document.FamilyText, "  VPC "},
	}
	for _, tt := range tests {
		once, err := Normalize(tt.unit, tt.raw, "")
		if err != nil {
			t.Fatalf("Normalize(%s, %v) error = %v", tt.unit, tt.raw, err)
		}
		twice, err := Normalize(tt.unit, once, "")
		if err != nil || twice != once {
			t.Errorf("Normalize(Normalize(%v)) = %+v, %v; want %+v", tt.raw, twice, err, once)
		}
		fromCanonical, err := Normalize(tt.unit, once.Canonical, "")
		if err != nil || !fromCanonical.Equal(once) {
			t.Errorf("Normalize(%q) = %+v, %v; want %+v", once.Canonical, fromCanonical, err, once)
		}
	}
}

func TestNormalizeValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		unit        document.Family
		raw         any
		defaultUnit string
		want        string
	}{
		{document.FamilyDuration, "30s", "", "30000ms"},
		{document.FamilyDuration, int64(30), "s", "30000ms"},
		{document.FamilyDuration, "1h30m", "", "5400000ms"},
		{document.FamilySize, "4GB", "", "4294967296"},
		{document.FamilySize, "4294967296", "", "4294967296"},
		{document.FamilyVersion, "15.5", "", "v15.5.0"},
		{document.FamilyVersion, ">= 1.27.0", "", "v1.27.0"},
		{document.FamilyVersion, "v2.9.4", "", "v2.9.4"},
		{document.FamilyBoolean, true, "", "true"},
		{document.FamilyBoolean, "Off", "", "false"},
		{document.FamilyPercentage, 0.5, "", "0.5%"},
		{document.FamilyCount, "10_000", "", "10000"},
		{document.FamilyText, "AES256", "", "aes256"},
	}
	for _, tt := range tests {
		v, err := Normalize(tt.unit, tt.raw, tt.defaultUnit)
		if err != nil {
			t.Errorf("Normalize(%s, %v) error = %v", tt.unit, tt.raw, err)
			continue
		}
		if v.Canonical != tt.want {
			t.Errorf("Normalize(%s, %v) = %q, want %q", tt.unit, tt.raw, v.Canonical, tt.want)
		}
	}
}

func TestNormalizeErrors(t *testing.T) {
	t.Parallel()

	if _, err := Normalize("furlongs", "3", ""); !errors.Is(err, ErrNoNormalizer) {
		t.Errorf("unknown unit error = %v, want ErrNoNormalizer", err)
	}
	bad := []struct {
		unit document.Family
		raw  any
	}{
		{document.FamilyDuration, "soon"},
		{document.FamilyDuration, "30"},
		{document.FamilySize, "lots"},
		{document.FamilyVersion, "latest"},
		{document.FamilyBoolean, "maybe"},
		{document.FamilyCount, "1.5"},
	}
	for _, tt := range bad {
		if _, err := Normalize(tt.unit, tt.raw, ""); !errors.Is(err, ErrUnnormalizable) {
			t.Errorf("Normalize(%s, %v) error = %v, want ErrUnnormalizable", tt.unit, tt.raw, err)
		}
	}
}

func TestCompareValues(t *testing.T) {
	t.Parallel()

	a, _ := Normalize(document.FamilyVersion, "2.9.10", "")
	b, _ := Normalize(document.FamilyVersion, "2.10.0", "")
	if CompareValues(a, b) >= 0 {
		t.Error("2.9.10 should sort before 2.10.0")
	}
	d1, _ := Normalize(document.FamilyDuration, "90d", "")
	d2, _ := Normalize(document.FamilyDuration, "180 days", "")
	if CompareValues(d1, d2) >= 0 || CompareValues(d2, d2) != 0 {
		t.Error("duration ordering is wrong")
	}
}
