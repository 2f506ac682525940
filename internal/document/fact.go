// SPDX-License-Identifier: MPL-2.0

package document

import (
	"strconv"
	"strings"
)

// Unit families. A family names the normalizer that produced a Value and the
// meaning of its canonical form.
const (
	FamilyDuration   Family = "duration"
	FamilySize       Family = "size"
	FamilyVersion    Family = "version"
	FamilyBoolean    Family = "boolean"
	FamilyPercentage Family = "percentage"
	FamilyCount      Family = "count"
	FamilyText       Family = "text"
)

type (
	// Family is the unit family of a normalized value.
	Family string

	// Value is a normalized fact value. Two values are equal exactly when
	// their families and canonical forms are equal.
	//
	// Canonical forms: durations are whole milliseconds with an "ms" suffix,
	// sizes are bytes, versions are canonical semver
	// ("v15.10.0"), booleans are "true"/"false", percentages end in "%",
	// counts are integers, and text is lower-cased and trimmed. Number holds
	// the numeric magnitude used for ordering (seconds for durations).
	Value struct {
		Family    Family  `json:"family"`
		Canonical string  `json:"canonical"`
		Number    float64 `json:"number"`
	}

	// Fact is a normalized (key, value) pair extracted from a document with
	// provenance.
	Fact struct {
		Key    string   `json:"key"`
		Value  Value    `json:"value"`
		Raw    string   `json:"raw"`
		Unit   Family   `json:"unit"`
		Path   string   `json:"path"`
		Source Location `json:"source"`
	}
)

// Equal reports whether v and other denote the same normalized value.
func (v Value) Equal(other Value) bool {
	return v.Family == other.Family && v.Canonical == other.Canonical
}

// String renders the value for humans. Durations use the largest unit that
// divides them exactly, so 15552000 seconds prints as "180d".
func (v Value) String() string {
	switch v.Family {
	case FamilyDuration:
		ms, err := strconv.ParseInt(strings.TrimSuffix(v.Canonical, "ms"), 10, 64)
		if err != nil {
			return v.Canonical
		}
		return FormatMillis(ms)
	case FamilySize:
		n, err := strconv.ParseInt(v.Canonical, 10, 64)
		if err != nil {
			return v.Canonical
		}
		return formatBytes(n)
	default:
		return v.Canonical
	}
}

var durationUnits = []struct {
	suffix string
	ms     int64
}{
	{"d", 24 * 3600 * 1000},
	{"h", 3600 * 1000},
	{"m", 60 * 1000},
	{"s", 1000},
}

// FormatMillis renders a millisecond count with the largest exact unit.
func FormatMillis(ms int64) string {
	if ms == 0 {
		return "0s"
	}
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	for _, u := range durationUnits {
		if ms%u.ms == 0 {
			return sign + strconv.FormatInt(ms/u.ms, 10) + u.suffix
		}
	}
	return sign + strconv.FormatInt(ms, 10) + "ms"
}

var byteUnits = []struct {
	suffix string
	n      int64
}{
	{"TiB", 1 << 40},
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
}

func formatBytes(n int64) string {
	if n == 0 {
		return "0B"
	}
	for _, u := range byteUnits {
		if n%u.n == 0 {
			return strconv.FormatInt(n/u.n, 10) + u.suffix
		}
	}
	return strconv.FormatInt(n, 10) + "B"
}
