// SPDX-License-Identifier: MPL-2.0

package facts

import (
	"context"
	"errors"
	"testing"

	"github.com/confaudit/confaudit/internal/document"
)

func parse(t *testing.T, id, src string, format document.Format) *document.Document {
	t.Helper()
	doc, err := document.Parse(id, []byte(src), format, "")
	if err != nil {
		t.Fatalf("Parse(%s) error = %v", id, err)
	}
	return doc
}

func TestExtractFromConfig(t *testing.T) {
	t.Parallel()

	doc := parse(t, "loki.yml", "limits_config:\n  retention_period: 2160h\n", document.FormatLog)
	ex, err := NewExtractor([]FactRule{
		{Key: "retention.logs", AppliesTo: []document.Format{document.FormatLog}, Path: "**.retention_period", Unit: document.FamilyDuration},
		{Key: "retention.traces", AppliesTo: []document.Format{document.FormatTracing}, Path: "**.block_retention", Unit: document.FamilyDuration},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := ex.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("facts = %+v, want 1", got)
	}
	f := got[0]
	if f.Key != "retention.logs" || f.Value.String() != "90d" || f.Raw != "2160h" {
		t.Errorf("fact = %+v", f)
	}
	if f.Source != (document.Location{DocumentID: "loki.yml", LineStart: 2, LineEnd: 2}) {
		t.Errorf("source = %+v", f.Source)
	}
	if f.Path != "limits_config.retention_period" {
		t.Errorf("path = %q", f.Path)
	}
}

func TestExtractFromProse(t *testing.T) {
	t.Parallel()

	src := `# Storage

Metrics stay for 15 days retention.
Logs: 180 days retention in S3
with lifecycle rules.
`
	doc := parse(t, "ARCHITECTURE.md", src, document.FormatProse)
	ex, err := NewExtractor([]FactRule{{
		Key:       "retention.logs",
		AppliesTo: []document.Format{document.FormatProse},
		Path:      "*.paragraphs.*",
		Unit:      document.FamilyDuration,
		Pattern:   `(?i)logs?\W+(\d+\s*days?)\s+retention`,
	}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := ex.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("facts = %+v, want 1", got)
	}
	if got[0].Value.String() != "180d" || got[0].Source.LineStart != 4 {
		t.Errorf("fact = %+v", got[0])
	}
}

func TestExtractContextUsesHeading(t *testing.T) {
	t.Parallel()

	src := "## Loki\n\nKeep 30 days retention.\n\n## Tempo\n\nKeep 7 days retention.\n"
	doc := parse(t, "DESIGN.md", src, document.FormatProse)
	ex, err := NewExtractor([]FactRule{{
		Key:     "retention.logs",
		Path:    "*.paragraphs.*",
		Unit:    document.FamilyDuration,
		Pattern: `(\d+ days?) retention`,
		Context: `(?i)loki|logs`,
	}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := ex.Extract(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Value.String() != "30d" {
		t.Fatalf("facts = %+v, want only the Loki section", got)
	}
}

func TestExtractUnnormalizableValue(t *testing.T) {
	t.Parallel()

	doc := parse(t, "tempo.yml", "compactor:\n  block_retention: forever\n", document.FormatTracing)
	ex, err := NewExtractor([]FactRule{{Key: "retention.traces", Path: "**.block_retention", Unit: document.FamilyDuration}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = ex.Extract(context.Background(), doc)
	if !errors.Is(err, ErrExtraction) || !errors.Is(err, ErrUnnormalizable) {
		t.Fatalf("Extract() error = %v, want ErrExtraction wrapping ErrUnnormalizable", err)
	}
	var ee *ExtractionError
	if !errors.As(err, &ee) || ee.Location.LineStart != 2 {
		t.Errorf("ExtractionError = %+v", ee)
	}
}

func TestExtractNullIsAbsent(t *testing.T) {
	t.Parallel()

	ex, err := NewExtractor([]FactRule{
		{Key: "retention.logs", Path: "**.retention_period", Unit: document.FamilyDuration},
		{Key: "streams", Path: "**.max_streams_per_user", Unit: document.FamilyCount},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, value := range []string{"null", "~", "Null", ""} {
		src := "limits_config:\n  retention_period: " + value + "\n  max_streams_per_user: 10000\n"
		got, err := ex.Extract(context.Background(), parse(t, "loki.yml", src, document.FormatLog))
		if err != nil {
			t.Errorf("retention_period: %q: Extract() error = %v, want the field treated as absent", value, err)
			continue
		}
		if len(got) != 1 || got[0].Key != "streams" {
			t.Errorf("retention_period: %q: facts = %+v, want only streams", value, got)
		}
	}
}

func TestExtractUnknownUnit(t *testing.T) {
	t.Parallel()

	doc := parse(t, "a.yml", "x: 3\n", document.FormatLog)
	ex, err := NewExtractor([]FactRule{{Key: "x", Path: "x", Unit: "furlongs"}})
	if err != nil {
		t.Fatalf("NewExtractor() error = %v", err)
	}
	if _, err := ex.Extract(context.Background(), doc); !errors.Is(err, ErrNoNormalizer) {
		t.Fatalf("Extract() error = %v, want ErrNoNormalizer", err)
	}
}

func TestNewExtractorRejectsBadRules(t *testing.T) {
	t.Parallel()

	bad := []FactRule{
		{Path: "a", Unit: document.FamilyText},
		{Key: "k", Path: "a..b", Unit: document.FamilyText},
		{Key: "k", Path: "a", Unit: document.FamilyText, Pattern: "("},
	}
	for _, r := range bad {
		if _, err := NewExtractor([]FactRule{r}); err == nil {
			t.Errorf("NewExtractor(%+v) succeeded, want error", r)
		}
	}
}

func TestExtractCancelled(t *testing.T) {
	t.Parallel()

	doc := parse(t, "a.yml", "x: 3\n", document.FormatLog)
	ex, _ := NewExtractor([]FactRule{{Key: "x", Path: "x", Unit: document.FamilyCount}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ex.Extract(ctx, doc); !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract() error = %v, want context.Canceled", err)
	}
}
