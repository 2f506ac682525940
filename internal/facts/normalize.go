// SPDX-License-Identifier: MPL-2.0

package facts

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/prometheus/common/model"
	"golang.org/x/mod/semver"

	"github.com/confaudit/confaudit/internal/document"
)

var (
	// ErrNoNormalizer is returned when a unit family has no registered normalizer.
	ErrNoNormalizer = errors.New("no normalizer for unit")
	// ErrUnnormalizable is returned when a raw value cannot be read in its unit family.
	ErrUnnormalizable = errors.New("value cannot be normalized")

	proseDuration = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)[\s-]*(milliseconds?|ms|seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|w|months?|years?|y)$`)
	versionCore   = regexp.MustCompile(`v?(\d+(?:\.\d+){0,2})(-[0-9A-Za-z.-]+)?`)

	durationUnitMillis = map[string]float64{
		"ms": 1, "millisecond": 1, "milliseconds": 1,
		"s": 1e3, "sec": 1e3, "secs": 1e3, "second": 1e3, "seconds": 1e3,
		"m": 60e3, "min": 60e3, "mins": 60e3, "minute": 60e3, "minutes": 60e3,
		"h": 3600e3, "hr": 3600e3, "hrs": 3600e3, "hour": 3600e3, "hours": 3600e3,
		"d": 86400e3, "day": 86400e3, "days": 86400e3,
		"w": 7 * 86400e3, "week": 7 * 86400e3, "weeks": 7 * 86400e3,
		"month": 30 * 86400e3, "months": 30 * 86400e3,
		"y": 365 * 86400e3, "year": 365 * 86400e3, "years": 365 * 86400e3,
	}

	normalizers = map[document.Family]Normalizer{
		document.FamilyDuration:   normalizeDuration,
		document.FamilySize:       normalizeSize,
		document.FamilyVersion:    normalizeVersion,
		document.FamilyBoolean:    normalizeBoolean,
		document.FamilyPercentage: normalizePercentage,
		document.FamilyCount:      normalizeCount,
		document.FamilyText:       normalizeText,
	}
)

type (
	// Normalizer converts a raw scalar into a canonical Value. DefaultUnit
	// applies to bare numbers (for example "s" for a duration written as 30).
	// Normalizers are pure and idempotent: feeding a Value back returns it
	// unchanged.
	Normalizer func(raw any, defaultUnit string) (document.Value, error)

	// NoNormalizerError reports a unit family with no normalizer.
	NoNormalizerError struct {
		Unit document.Family
	}

	// NormalizeError reports a raw value that does not read as its unit family.
	NormalizeError struct {
		Unit document.Family
		Raw  string
	}
)

// Error implements the error interface.
func (e *NoNormalizerError) Error() string {
	return fmt.Sprintf("no normalizer for unit %q", e.Unit)
}

// Unwrap returns ErrNoNormalizer for errors.Is() compatibility.
func (e *NoNormalizerError) Unwrap() error { return ErrNoNormalizer }

// Error implements the error interface.
func (e *NormalizeError) Error() string {
	return fmt.Sprintf("cannot read %q as %s", e.Raw, e.Unit)
}

// Unwrap returns ErrUnnormalizable for errors.Is() compatibility.
func (e *NormalizeError) Unwrap() error { return ErrUnnormalizable }

// Units returns the unit families that have a normalizer.
func Units() []document.Family {
	return []document.Family{
		document.FamilyDuration, document.FamilySize, document.FamilyVersion,
		document.FamilyBoolean, document.FamilyPercentage, document.FamilyCount, document.FamilyText,
	}
}

// HasNormalizer reports whether unit can be normalized.
func HasNormalizer(unit document.Family) bool {
	_, ok := normalizers[unit]
	return ok
}

// Normalize converts raw into the canonical Value of unit.
func Normalize(unit document.Family, raw any, defaultUnit string) (document.Value, error) {
	fn, ok := normalizers[unit]
	if !ok {
		return document.Value{}, &NoNormalizerError{Unit: unit}
	}
	if v, ok := raw.(document.Value); ok {
		if v.Family == unit {
			return v, nil
		}
		raw = v.Canonical
	}
	return fn(raw, defaultUnit)
}

func rawText(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func normalizeDuration(raw any, defaultUnit string) (document.Value, error) {
	s := strings.Trim(rawText(raw), `"'`)
	fail := &NormalizeError{Unit: document.FamilyDuration, Raw: s}
	if s == "" {
		return document.Value{}, fail
	}
	if isNumber(s) {
		if defaultUnit == "" {
			return document.Value{}, fail
		}
		s += defaultUnit
	}

	var ms float64
	if d, err := model.ParseDuration(s); err == nil {
		ms = float64(time.Duration(d) / time.Millisecond)
	} else if d, err := time.ParseDuration(s); err == nil {
		ms = float64(d / time.Millisecond)
	} else if m := proseDuration.FindStringSubmatch(s); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		unit := strings.ToLower(m[2])
		// A month is 30 days, but whole years written in months are years.
		if strings.HasPrefix(unit, "month") && n > 0 && math.Mod(n, 12) == 0 {
			n, unit = n/12, "year"
		}
		ms = n * durationUnitMillis[unit]
	} else {
		return document.Value{}, fail
	}
	whole := int64(math.Round(ms))
	return document.Value{
		Family:    document.FamilyDuration,
		Canonical: strconv.FormatInt(whole, 10) + "ms",
		Number:    float64(whole) / 1000,
	}, nil
}

func normalizeSize(raw any, defaultUnit string) (document.Value, error) {
	s := strings.Trim(rawText(raw), `"'`)
	if isNumber(s) && defaultUnit != "" {
		s += defaultUnit
	}
	n, err := units.RAMInBytes(s)
	if err != nil || n < 0 {
		return document.Value{}, &NormalizeError{Unit: document.FamilySize, Raw: s}
	}
	return document.Value{
		Family:    document.FamilySize,
		Canonical: strconv.FormatInt(n, 10),
		Number:    float64(n),
	}, nil
}

// normalizeVersion accepts forms like "15.5", "v2.9.4", "2.50+", ">= 1.27.0"
// and "v13" and returns canonical semver.
func normalizeVersion(raw any, _ string) (document.Value, error) {
	s := rawText(raw)
	m := versionCore.FindStringSubmatch(s)
	if m == nil {
		return document.Value{}, &NormalizeError{Unit: document.FamilyVersion, Raw: s}
	}
	canonical := semver.Canonical("v" + m[1] + m[2])
	if canonical == "" {
		canonical = semver.Canonical("v" + m[1])
	}
	if canonical == "" {
		return document.Value{}, &NormalizeError{Unit: document.FamilyVersion, Raw: s}
	}
	major, _ := strconv.ParseFloat(strings.TrimPrefix(semver.Major(canonical), "v"), 64)
	return document.Value{Family: document.FamilyVersion, Canonical: canonical, Number: major}, nil
}

func normalizeBoolean(raw any, _ string) (document.Value, error) {
	s := strings.ToLower(strings.Trim(rawText(raw), `"'`))
	var b bool
	switch s {
	case "true", "yes", "on", "enabled", "1":
		b = true
	case "false", "no", "off", "disabled", "0":
		b = false
	default:
		return document.Value{}, &NormalizeError{Unit: document.FamilyBoolean, Raw: s}
	}
	num := 0.0
	if b {
		num = 1
	}
	return document.Value{Family: document.FamilyBoolean, Canonical: strconv.FormatBool(b), Number: num}, nil
}

func normalizePercentage(raw any, _ string) (document.Value, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.Trim(rawText(raw), `"'`), "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return document.Value{}, &NormalizeError{Unit: document.FamilyPercentage, Raw: rawText(raw)}
	}
	return document.Value{
		Family:    document.FamilyPercentage,
		Canonical: strconv.FormatFloat(f, 'f', -1, 64) + "%",
		Number:    f,
	}, nil
}

func normalizeCount(raw any, _ string) (document.Value, error) {
	s := strings.ReplaceAll(strings.Trim(rawText(raw), `"'`), "_", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return document.Value{}, &NormalizeError{Unit: document.FamilyCount, Raw: s}
	}
	n := int64(f)
	return document.Value{Family: document.FamilyCount, Canonical: strconv.FormatInt(n, 10), Number: f}, nil
}

func normalizeText(raw any, _ string) (document.Value, error) {
	s := strings.ToLower(rawText(raw))
	return document.Value{Family: document.FamilyText, Canonical: s}, nil
}

// CompareValues orders two values of the same family. Versions compare by
// semver precedence, everything else by Number.
func CompareValues(a, b document.Value) int {
	if a.Family == document.FamilyVersion && b.Family == document.FamilyVersion {
		return semver.Compare(a.Canonical, b.Canonical)
	}
	switch {
	case a.Number < b.Number:
		return -1
	case a.Number > b.Number:
		return 1
	default:
		return 0
	}
}
