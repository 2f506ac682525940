// SPDX-License-Identifier: MPL-2.0

package report

import (
	"bytes"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/finding"
	"github.com/confaudit/confaudit/pkg/types"
)

func loc(doc string, line int) document.Location {
	return document.Location{DocumentID: doc, LineStart: line, LineEnd: line}
}

func mk(rule string, sev finding.Severity, l document.Location, msg string) finding.Finding {
	return finding.New(rule, sev, "reliability", []document.Location{l}, msg, "", "fix it")
}

func TestAggregateSortsBySeverity(t *testing.T) {
	t.Parallel()

	in := []finding.Finding{
		mk("m", finding.SeverityMedium, loc("a", 1), "medium"),
		mk("c1", finding.SeverityCritical, loc("a", 2), "critical one"),
		mk("h", finding.SeverityHigh, loc("a", 3), "high"),
		mk("c2", finding.SeverityCritical, loc("a", 4), "critical two"),
	}
	r := Aggregate(in)

	var got []finding.Severity
	for _, f := range r.Findings {
		got = append(got, f.Severity)
	}
	want := []finding.Severity{finding.SeverityCritical, finding.SeverityCritical, finding.SeverityHigh, finding.SeverityMedium}
	if !slices.Equal(got, want) {
		t.Fatalf("severities = %v, want %v", got, want)
	}
	if r.Findings[0].RuleID != "c1" || r.Findings[1].RuleID != "c2" {
		t.Errorf("critical tie not broken by location: %s, %s", r.Findings[0].RuleID, r.Findings[1].RuleID)
	}
}

func TestAggregateTieBreakers(t *testing.T) {
	t.Parallel()

	in := []finding.Finding{
		mk("z.rule", finding.SeverityHigh, loc("b.yml", 5), "x"),
		mk("a.rule", finding.SeverityHigh, loc("b.yml", 5), "y"),
		mk("k.rule", finding.SeverityHigh, loc("b.yml", 2), "z"),
		mk("k.rule", finding.SeverityHigh, loc("a.yml", 9), "w"),
	}
	r := Aggregate(in)
	var order []string
	for _, f := range r.Findings {
		order = append(order, f.PrimaryLocation().String()+" "+f.RuleID)
	}
	want := []string{"a.yml:9 k.rule", "b.yml:2 k.rule", "b.yml:5 a.rule", "b.yml:5 z.rule"}
	if !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestAggregateDeduplicates(t *testing.T) {
	t.Parallel()

	in := []finding.Finding{
		mk("r", finding.SeverityHigh, loc("a.yml", 3), "same"),
		mk("r", finding.SeverityHigh, loc("a.yml", 7), "same"),
		mk("r", finding.SeverityHigh, loc("a.yml", 3), "different"),
		mk("r", finding.SeverityHigh, loc("b.yml", 3), "same"),
	}
	r := Aggregate(in)
	if r.Summary.Total != 3 || len(r.Findings) != 3 {
		t.Fatalf("findings = %+v, want 3 after merging", r.Findings)
	}
	var merged finding.Finding
	for _, f := range r.Findings {
		if f.Message == "same" && f.DocumentIDs[0] == "a.yml" {
			merged = f
		}
	}
	if len(merged.Locations) != 2 {
		t.Errorf("merged locations = %+v, want union of both", merged.Locations)
	}
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	t.Parallel()

	var in []finding.Finding
	sevs := finding.Severities()
	for i := range 40 {
		in = append(in, mk("rule."+string(rune('a'+i%7)), sevs[i%4], loc("doc"+string(rune('a'+i%5)), i%9+1), "msg"))
	}
	want, err := MarshalJSON(Aggregate(in, WithDocuments([]string{"doca", "docb"})))
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for range 10 {
		shuffled := slices.Clone(in)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, err := MarshalJSON(Aggregate(shuffled, WithDocuments([]string{"docb", "doca"})))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Fatal("report bytes differ for shuffled input")
		}
	}
}

func TestSummaryCounts(t *testing.T) {
	t.Parallel()

	in := []finding.Finding{
		mk("a", finding.SeverityHigh, loc("x", 1), "a"),
		finding.New("b", finding.SeverityLow, "security", []document.Location{loc("x", 2)}, "b", "", ""),
	}
	r := Aggregate(in, WithDocuments([]string{"x", "y"}), WithUnfinished([]string{"z"}))
	if r.Summary.Counts[finding.SeverityHigh] != 1 || r.Summary.Counts[finding.SeverityCritical] != 0 {
		t.Errorf("Counts = %v", r.Summary.Counts)
	}
	if r.Summary.CategoryCounts["security"] != 1 || r.Summary.CategoryCounts["reliability"] != 1 {
		t.Errorf("CategoryCounts = %v", r.Summary.CategoryCounts)
	}
	if !r.Summary.Incomplete || !slices.Equal(r.Summary.UnfinishedDocuments, []string{"z"}) {
		t.Errorf("incomplete summary = %+v", r.Summary)
	}
	if r.ExitCode(finding.SeverityHigh) != 1 || r.ExitCode(finding.SeverityCritical) != 0 {
		t.Error("ExitCode threshold handling is wrong")
	}
}

func TestJSONMatchesSchema(t *testing.T) {
	t.Parallel()

	r := Aggregate([]finding.Finding{mk("a", finding.SeverityHigh, loc("x.yml", 1), "a")}, WithDocuments([]string{"x.yml"}))
	var buf bytes.Buffer
	if err := WriteJSON(&buf, r); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"rule_id": "a"`) {
		t.Errorf("JSON = %s", buf.String())
	}

	empty, err := MarshalJSON(Aggregate(nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateJSON(empty); err != nil {
		t.Errorf("empty report fails schema: %v", err)
	}
	if err := ValidateJSON([]byte(`{"findings": [{"rule_id": "a"}], "summary": {}}`)); err == nil {
		t.Error("ValidateJSON accepted an invalid report")
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	r := Aggregate([]finding.Finding{
		mk("loki.unlimited-streams", finding.SeverityCritical, loc("loki.yml", 4), "max_streams_per_user is 0"),
		mk("prometheus.scrape-timeout-margin", finding.SeverityMedium, loc("prometheus.yml", 2), "margin too small"),
	}, WithDocuments([]string{"loki.yml", "prometheus.yml"}))
	md := RenderMarkdown(r)

	for _, want := range []string{
		"# Configuration Audit Report",
		"| CRITICAL | 1 |",
		"| MEDIUM | 1 |",
		"### CRITICAL",
		"#### loki.unlimited-streams",
		"`loki.yml:4`",
		"- Fix: fix it",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Index(md, "### CRITICAL") > strings.Index(md, "### MEDIUM") {
		t.Error("severity sections out of order")
	}
}

func TestRenderFindingsMarkdown(t *testing.T) {
	t.Parallel()

	if got := RenderFindingsMarkdown(nil); !strings.Contains(got, "No findings.") {
		t.Errorf("empty findings = %q", got)
	}
	got := RenderFindingsMarkdown([]finding.Finding{
		mk("grafana.placeholder-host", finding.SeverityHigh, loc("datasources.yaml", 7), "placeholder host"),
	})
	if strings.Contains(got, "# Configuration Audit Report") || strings.Contains(got, "## Summary") {
		t.Errorf("findings section should not include the report header or summary:\n%s", got)
	}
	if !strings.Contains(got, "#### grafana.placeholder-host") {
		t.Errorf("findings section missing rule heading:\n%s", got)
	}
	if r := Aggregate(nil, WithDocuments([]string{"a"})); r.ExitCode(finding.SeverityLow) != types.ExitSuccess {
		t.Error("empty report should exit with success")
	}
}
