// SPDX-License-Identifier: MPL-2.0

package consistency

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/facts"
	"github.com/confaudit/confaudit/internal/finding"
)

func fact(t *testing.T, key string, unit document.Family, raw, docID string, line int) document.Fact {
	t.Helper()
	v, err := facts.Normalize(unit, raw, "")
	if err != nil {
		t.Fatalf("Normalize(%q) error = %v", raw, err)
	}
	return document.Fact{
		Key:    key,
		Value:  v,
		Raw:    raw,
		Unit:   unit,
		Source: document.Location{DocumentID: docID, LineStart: line, LineEnd: line},
	}
}

func retentionRule() ConsistencyRule {
	return ConsistencyRule{
		ID:         "consistency.retention.logs",
		Keys:       []string{"retention.logs"},
		Severity:   finding.SeverityHigh,
		Category:   finding.CategoryConsistency,
		Comparator: Equal(),
		Message:    "Log retention differs across documents: {{.Values}}",
		Fix:        "Align {{.Key}} across all documents.",
	}
}

func check(t *testing.T, rules []ConsistencyRule, fs []document.Fact) []finding.Finding {
	t.Helper()
	c, err := NewChecker(rules, WithWorkers(2))
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}
	got, err := c.Check(context.Background(), fs)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	return got
}

func TestEquivalentUnitsAgree(t *testing.T) {
	t.Parallel()

	rule := retentionRule()
	rule.Fix = ""
	got := check(t, []ConsistencyRule{rule}, []document.Fact{
		fact(t, "retention.logs", document.FamilyDuration, "180 days", "ARCHITECTURE.md", 12),
		fact(t, "retention.logs", document.FamilyDuration, "4320h", "loki.yml", 107),
	})
	if len(got) != 0 {
		t.Fatalf("findings = %+v, want none for equivalent values", got)
	}
}

func TestRetentionMismatch(t *testing.T) {
	t.Parallel()

	rule := retentionRule()
	rule.Fix = "Align {{.Key}} across {{len .Documents}} documents."
	got := check(t, []ConsistencyRule{rule}, []document.Fact{
		fact(t, "retention.logs", document.FamilyDuration, "2160h", "loki.yml", 107),
		fact(t, "retention.logs", document.FamilyDuration, "180 days", "ARCHITECTURE.md", 12),
	})
	if len(got) != 1 {
		t.Fatalf("findings = %+v, want exactly one", got)
	}
	f := got[0]
	if !slices.Equal(f.DocumentIDs, []string{"ARCHITECTURE.md", "loki.yml"}) {
		t.Errorf("DocumentIDs = %v", f.DocumentIDs)
	}
	if len(f.Locations) != 2 || f.Locations[0].LineStart != 12 || f.Locations[1].LineStart != 107 {
		t.Errorf("Locations = %+v", f.Locations)
	}
	if f.Message != "Log retention differs across documents: 180d vs 90d" {
		t.Errorf("Message = %q", f.Message)
	}
	if f.Fix != "Align retention.logs across 2 documents." {
		t.Errorf("Fix = %q", f.Fix)
	}
	if !strings.Contains(f.Detail, "ARCHITECTURE.md:12") || !strings.Contains(f.Detail, "loki.yml:107") {
		t.Errorf("Detail = %q", f.Detail)
	}
}

func TestThreeWayMismatchReportsAllValues(t *testing.T) {
	t.Parallel()

	rule := retentionRule()
	rule.Fix = ""
	got := check(t, []ConsistencyRule{rule}, []document.Fact{
		fact(t, "retention.logs", document.FamilyDuration, "30d", "a.yml", 1),
		fact(t, "retention.logs", document.FamilyDuration, "90d", "b.yml", 1),
		fact(t, "retention.logs", document.FamilyDuration, "180d", "c.md", 1),
		fact(t, "retention.logs", document.FamilyDuration, "720h", "d.yml", 1),
	})
	if len(got) != 1 {
		t.Fatalf("findings = %+v", got)
	}
	if got[0].Message != "Log retention differs across documents: 30d vs 90d vs 180d" {
		t.Errorf("Message = %q", got[0].Message)
	}
	if len(got[0].DocumentIDs) != 4 {
		t.Errorf("DocumentIDs = %v", got[0].DocumentIDs)
	}
}

func TestKeysComparedIndependently(t *testing.T) {
	t.Parallel()

	rule := retentionRule()
	rule.Fix = ""
	rule.Keys = []string{"retention.logs", "retention.traces"}
	got := check(t, []ConsistencyRule{rule}, []document.Fact{
		fact(t, "retention.logs", document.FamilyDuration, "30d", "a.yml", 1),
		fact(t, "retention.traces", document.FamilyDuration, "7d", "b.yml", 1),
	})
	if len(got) != 0 {
		t.Fatalf("different keys were compared with each other: %+v", got)
	}
}

func TestNotBelow(t *testing.T) {
	t.Parallel()

	rule := ConsistencyRule{
		ID:         "consistency.version.prometheus",
		Keys:       []string{"version.prometheus.minimum", "version.prometheus"},
		Severity:   finding.SeverityMedium,
		Category:   finding.CategoryVersion,
		Comparator: NotBelow("version.prometheus.minimum"),
		Message:    "{{.Key}} below documented minimum: {{.Values}}",
	}
	got := check(t, []ConsistencyRule{rule}, []document.Fact{
		fact(t, "version.prometheus.minimum", document.FamilyVersion, "2.50+", "ARCHITECTURE.md", 3),
		fact(t, "version.prometheus", document.FamilyVersion, "2.45.0", "datasources.yml", 9),
		fact(t, "version.prometheus", document.FamilyVersion, "2.53.0", "other.yml", 4),
	})
	if len(got) != 1 {
		t.Fatalf("findings = %+v", got)
	}
	if got[0].Message != "version.prometheus below documented minimum: v2.50.0 vs v2.45.0" {
		t.Errorf("Message = %q", got[0].Message)
	}
	if !slices.Equal(got[0].DocumentIDs, []string{"ARCHITECTURE.md", "datasources.yml"}) {
		t.Errorf("DocumentIDs = %v", got[0].DocumentIDs)
	}
}

func TestComparatorIsolation(t *testing.T) {
	t.Parallel()

	panicking := ConsistencyRule{
		ID: "broken", Keys: []string{"retention.logs"}, Severity: finding.SeverityHigh, Message: "m",
		Comparator: ComparatorFunc(func([]document.Fact) ([]Mismatch, error) { panic("bad comparator") }),
	}
	failing := ConsistencyRule{
		ID: "failing", Keys: []string{"retention.logs"}, Severity: finding.SeverityHigh, Message: "m",
		Comparator: ComparatorFunc(func([]document.Fact) ([]Mismatch, error) { return nil, errors.New("no data") }),
	}
	rule := retentionRule()
	rule.Fix = ""
	got := check(t, []ConsistencyRule{panicking, rule, failing}, []document.Fact{
		fact(t, "retention.logs", document.FamilyDuration, "30d", "a.yml", 1),
		fact(t, "retention.logs", document.FamilyDuration, "90d", "b.yml", 1),
	})
	if len(got) != 3 {
		t.Fatalf("findings = %+v, want 3", got)
	}
	if got[0].RuleID != finding.RuleComparatorFailed || got[0].Severity != finding.SeverityLow || !strings.Contains(got[0].Detail, "bad comparator") {
		t.Errorf("panic finding = %+v", got[0])
	}
	if got[1].RuleID != "consistency.retention.logs" {
		t.Errorf("healthy rule finding = %+v", got[1])
	}
	if got[2].RuleID != finding.RuleComparatorFailed || !strings.Contains(got[2].Detail, "no data") {
		t.Errorf("error finding = %+v", got[2])
	}
}

func TestNewCheckerValidation(t *testing.T) {
	t.Parallel()

	bad := [][]ConsistencyRule{
		{{ID: "a", Severity: finding.SeverityLow, Comparator: Equal(), Message: "m"}},
		{{ID: "a", Keys: []string{"k"}, Severity: "SEVERE", Comparator: Equal(), Message: "m"}},
		{{ID: "a", Keys: []string{"k"}, Severity: finding.SeverityLow, Comparator: Equal(), Message: "{{"}},
		{
			{ID: "a", Keys: []string{"k"}, Severity: finding.SeverityLow, Comparator: Equal(), Message: "m"},
			{ID: "a", Keys: []string{"k"}, Severity: finding.SeverityLow, Comparator: Equal(), Message: "m"},
		},
	}
	for _, rules := range bad {
		if _, err := NewChecker(rules); !errors.Is(err, ErrInvalidRule) {
			t.Errorf("NewChecker(%+v) error = %v, want ErrInvalidRule", rules, err)
		}
	}
}

func TestComparatorReceivesSortedUniqueFacts(t *testing.T) {
	t.Parallel()

	var seen []document.Fact
	rule := ConsistencyRule{
		ID: "capture", Keys: []string{"version.loki", "version.loki.minimum", "version.loki"},
		Severity: finding.SeverityLow, Message: "m",
		Comparator: ComparatorFunc(func(fs []document.Fact) ([]Mismatch, error) {
			seen = slices.Clone(fs)
			return nil, nil
		}),
	}
	c, err := NewChecker([]ConsistencyRule{rule})
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}
	if keys := c.Rules()[0].Keys; !slices.Equal(keys, []string{"version.loki", "version.loki.minimum"}) {
		t.Errorf("Keys = %v, want duplicates dropped", keys)
	}
	if _, err := c.Check(context.Background(), []document.Fact{
		fact(t, "version.loki", document.FamilyVersion, "2.8.4", "values.yaml", 9),
		fact(t, "version.loki.minimum", document.FamilyVersion, "2.9", "ARCHITECTURE.md", 3),
		fact(t, "version.loki", document.FamilyVersion, "2.8.4", "compose.yaml", 4),
	}); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	var got []string
	for _, f := range seen {
		got = append(got, f.Key+"@"+f.Source.DocumentID)
	}
	want := []string{"version.loki@compose.yaml", "version.loki@values.yaml", "version.loki.minimum@ARCHITECTURE.md"}
	if !slices.Equal(got, want) {
		t.Errorf("comparator saw %v, want %v", got, want)
	}
}
