// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/facts"
	"github.com/confaudit/confaudit/internal/finding"
	"github.com/confaudit/confaudit/internal/kb"
	"github.com/confaudit/confaudit/internal/rules"
	"github.com/confaudit/confaudit/internal/testutil"
)

func buildDefault(t *testing.T) *Set {
	t.Helper()
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	set, err := c.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return set
}

func evaluateDefault(t *testing.T, id, src string, format document.Format) []finding.Finding {
	t.Helper()
	set := buildDefault(t)
	table, err := kb.Default()
	if err != nil {
		t.Fatalf("kb.Default() error = %v", err)
	}
	engine, err := rules.NewEngine(set.Rules, rules.WithKnowledgeBase(table))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	doc, err := document.Parse(id, []byte(src), format, "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	found, err := engine.Evaluate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return found
}

func ruleIDs(found []finding.Finding) []string {
	ids := make([]string, 0, len(found))
	for _, f := range found {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	set := buildDefault(t)
	if len(set.Rules) < 20 {
		t.Errorf("default catalog has %d rules, want at least 20", len(set.Rules))
	}
	if len(set.Facts) == 0 || len(set.Consistency) == 0 {
		t.Fatalf("default catalog has %d fact rules and %d consistency rules", len(set.Facts), len(set.Consistency))
	}
	if _, err := facts.NewExtractor(set.Facts); err != nil {
		t.Errorf("NewExtractor(default facts) error = %v", err)
	}

	seen := map[string]bool{}
	for _, r := range set.Rules {
		if seen[r.ID] {
			t.Errorf("duplicate rule id %s", r.ID)
		}
		seen[r.ID] = true
		if err := r.Validate(); err != nil {
			t.Errorf("rule %s: %v", r.ID, err)
		}
	}
}

func TestDefaultCatalogScrapeTimeout(t *testing.T) {
	t.Parallel()

	found := evaluateDefault(t, "prometheus.yml", "global:\n  scrape_interval: 30s\n  scrape_timeout: 10s\n", document.FormatTimeSeries)
	if len(found) != 1 {
		t.Fatalf("got %d findings, want 1: %v", len(found), ruleIDs(found))
	}
	f := found[0]
	if f.RuleID != "prometheus.scrape-timeout-margin" || f.Severity != finding.SeverityMedium {
		t.Errorf("finding = %s %s", f.RuleID, f.Severity)
	}
	if !strings.Contains(f.Fix, "30s") || !strings.Contains(f.Fix, "10s") {
		t.Errorf("fix %q should name both values", f.Fix)
	}
}

func TestDefaultCatalogUnlimitedStreams(t *testing.T) {
	t.Parallel()

	found := evaluateDefault(t, "loki.yaml", "limits_config:\n  max_streams_per_user: 0\n  retention_period: 2160h\n", document.FormatLog)
	if len(found) != 1 {
		t.Fatalf("got %d findings, want 1: %v", len(found), ruleIDs(found))
	}
	if found[0].RuleID != "loki.unlimited-streams" || found[0].Severity != finding.SeverityCritical {
		t.Errorf("finding = %s %s", found[0].RuleID, found[0].Severity)
	}
}

func TestDefaultCatalogTerraform(t *testing.T) {
	t.Parallel()

	src := `resource "aws_eip" "nat" {
  domain = "vpc"
}

resource "aws_db_instance" "main" {
  engine              = "postgres"
  engine_version      = "15.5"
  password            = var.db_password
  deletion_protection = false
}
`
	found := evaluateDefault(t, "main.tf", src, document.FormatIaC)
	ids := ruleIDs(found)
	for _, want := range []string{
		"aws.eip-deprecated-domain",
		"aws.rds-engine-version",
		"aws.rds-password-variable",
		"aws.rds-publicly-accessible-unset",
		"aws.deletion-protection-disabled",
	} {
		if !slices.Contains(ids, want) {
			t.Errorf("missing %s in %v", want, ids)
		}
	}
	for _, f := range found {
		if f.RuleID == "aws.eip-deprecated-domain" && f.PrimaryLocation().LineStart != 2 {
			t.Errorf("eip finding at line %d, want 2", f.PrimaryLocation().LineStart)
		}
		if f.RuleID == "aws.rds-engine-version" && !strings.Contains(f.Fix, "16.4") {
			t.Errorf("engine version fix = %q", f.Fix)
		}
	}
}

func TestDefaultCatalogRepeatedBlocks(t *testing.T) {
	t.Parallel()

	src := `resource "aws_eip" "nat" {
  domain = "vpc"
}

resource {
}
`
	found := evaluateDefault(t, "x.tf", src, document.FormatIaC)
	var eip []finding.Finding
	for _, f := range found {
		if f.RuleID == "aws.eip-deprecated-domain" {
			eip = append(eip, f)
		}
	}
	if len(eip) != 1 || eip[0].PrimaryLocation().LineStart != 2 {
		t.Fatalf("aws.eip-deprecated-domain findings = %+v, want one at line 2; all: %v", eip, ruleIDs(found))
	}
}

func TestParseCUEAndJSON(t *testing.T) {
	t.Parallel()

	cueSrc := `
rules: [{
	id:       "custom.no-debug"
	severity: "LOW"
	check: {kind: "equals", field: "**.log_level", value: "debug"}
	message: "debug logging enabled"
}]
consistency: [{
	id:       "custom.region"
	keys: ["region"]
	severity: "MEDIUM"
	message:  "regions differ: {{.Values}}"
}]
`
	c, err := Parse("custom.cue", []byte(cueSrc))
	if err != nil {
		t.Fatalf("Parse(cue) error = %v", err)
	}
	if len(c.Rules) != 1 || c.Rules[0].Check.Kind != rules.CheckEquals {
		t.Fatalf("rules = %+v", c.Rules)
	}
	if c.Consistency[0].Comparator != "equal" {
		t.Errorf("comparator default = %q, want equal", c.Consistency[0].Comparator)
	}

	jsonSrc := `{"facts": [{"key": "region", "path": "**.region", "unit": "text"}]}`
	c, err = Parse("custom.json", []byte(jsonSrc))
	if err != nil {
		t.Fatalf("Parse(json) error = %v", err)
	}
	if len(c.Facts) != 1 || c.Facts[0].Unit != document.FamilyText {
		t.Errorf("facts = %+v", c.Facts)
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		data string
		want string
	}{
		{
			name: "unknown severity",
			file: "bad.yaml",
			data: "rules:\n  - id: x\n    severity: URGENT\n    check: {kind: absent, field: a}\n    message: m\n",
			want: "severity",
		},
		{
			name: "unknown field",
			file: "bad.yaml",
			data: "rules:\n  - id: x\n    severity: LOW\n    bogus: 1\n    check: {kind: absent, field: a}\n    message: m\n",
			want: "bogus",
		},
		{
			name: "absent without field",
			file: "bad.yaml",
			data: "rules:\n  - id: x\n    severity: LOW\n    check: {kind: absent}\n    message: m\n",
			want: "field",
		},
		{
			name: "not_below without floor",
			file: "bad.cue",
			data: `consistency: [{id: "v", keys: ["a"], severity: "LOW", comparator: "not_below", message: "m"}]`,
			want: "floor",
		},
		{
			name: "yaml syntax",
			file: "bad.yml",
			data: "rules: [\n",
			want: "bad.yml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tt.file, []byte(tt.data))
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("Parse() error = %v, want ErrInvalidCatalog", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestBuildRejectsBadCheck(t *testing.T) {
	t.Parallel()

	c := &Catalog{Rules: []RuleSpec{{
		ID:       "bad.regex",
		Severity: finding.SeverityLow,
		Check:    rules.Check{Kind: rules.CheckMatches, Pattern: "("},
		Message:  "m",
	}}}
	_, err := c.Build()
	if !errors.Is(err, ErrInvalidCatalog) || !strings.Contains(err.Error(), "bad.regex") {
		t.Errorf("Build() error = %v", err)
	}
}

func TestBuildRejectsUnknownFactUnit(t *testing.T) {
	t.Parallel()

	c := &Catalog{Facts: []facts.FactRule{
		{Key: "retention.logs", Path: "**.retention_period", Unit: document.FamilyDuration},
		{Key: "distance", Path: "**.distance", Unit: "furlongs"},
	}}
	_, err := c.Build()
	if !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("Build() error = %v, want ErrInvalidCatalog", err)
	}
	for _, want := range []string{"fact distance", `"furlongs"`, "duration, size, version"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
	if strings.Contains(err.Error(), "retention.logs") {
		t.Errorf("error %q should not mention the valid fact", err)
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	base := &Catalog{
		Rules: []RuleSpec{{ID: "a", Message: "one"}, {ID: "b", Message: "two"}},
		Facts: []facts.FactRule{{Key: "k1"}},
	}
	override := &Catalog{
		Rules: []RuleSpec{{ID: "a", Message: "replaced"}, {ID: "c", Message: "three"}},
		Facts: []facts.FactRule{{Key: "k2"}},
	}
	got := Merge(base, nil, override)

	var ids, messages []string
	for _, r := range got.Rules {
		ids = append(ids, r.ID)
		messages = append(messages, r.Message)
	}
	if !slices.Equal(ids, []string{"a", "b", "c"}) {
		t.Errorf("ids = %v", ids)
	}
	if messages[0] != "replaced" {
		t.Errorf("rule a message = %q, want replaced", messages[0])
	}
	if len(got.Facts) != 2 {
		t.Errorf("facts = %d, want 2", len(got.Facts))
	}
}

func TestLoadAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "extra.yaml")
	data := "rules:\n  - id: loki.unlimited-streams\n    severity: LOW\n    check: {kind: compare, field: '**.max_streams_per_user', op: eq, threshold: 0}\n    message: downgraded\n"
	testutil.MustWriteFile(t, path, data)

	c, err := LoadAll(true, []string{path})
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	for _, r := range c.Rules {
		if r.ID == "loki.unlimited-streams" && r.Severity != finding.SeverityLow {
			t.Errorf("override not applied: %s", r.Severity)
		}
	}

	only, err := LoadAll(false, []string{path})
	if err != nil {
		t.Fatalf("LoadAll(no default) error = %v", err)
	}
	if len(only.Rules) != 1 {
		t.Errorf("rules = %d, want 1", len(only.Rules))
	}

	if _, err := LoadAll(false, []string{filepath.Join(dir, "missing.yaml")}); !errors.Is(err, ErrInvalidCatalog) {
		t.Errorf("missing file error = %v", err)
	}
}
