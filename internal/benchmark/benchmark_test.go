// SPDX-License-Identifier: MPL-2.0

package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/confaudit/confaudit/internal/audit"
	"github.com/confaudit/confaudit/internal/catalog"
	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/facts"
	"github.com/confaudit/confaudit/internal/kb"
	"github.com/confaudit/confaudit/internal/rules"
)

const (
	terraformDoc = `terraform {
  required_version = ">= 1.5.0"
  required_providers {
    aws = {
      source  = "hashicorp/aws"
      version = "~> 5.40"
    }
  }
}

resource "aws_eip" "nat" {
  domain = "vpc"
}

resource "aws_db_instance" "main" {
  engine              = "postgres"
  engine_version      = "15.4"
  deletion_protection = false
  password            = var.db_password
}
`

	prometheusDoc = `global:
  scrape_interval: 30s
  scrape_timeout: 10s
storage:
  tsdb:
    retention:
      time: 15d
scrape_configs:
  - job_name: node
    scrape_interval: 15s
    scrape_timeout: 10s
    static_configs:
      - targets: ["node-1:9100", "node-2:9100"]
    relabel_configs:
      - source_labels: [__address__]
        target_label: instance
        replacement: ${1}
`

	lokiDoc = `auth_enabled: false
limits_config:
  retention_period: 2160h
  max_streams_per_user: 0
ingester:
  wal:
    replay_memory_ceiling: 4GB
schema_config:
  configs:
    - from: "2023-01-01"
      store: tsdb
      schema: v12
`

	architectureDoc = `# Observability Architecture

## Logging

Loki keeps logs with 180 days retention in S3.

## Metrics

Prometheus v2.50+ scrapes every host. Metrics have 15-day retention.

## Tracing

Tempo stores traces with 14 days retention.
`
)

func defaultSet(b *testing.B) *catalog.Set {
	b.Helper()
	c, err := catalog.Default()
	if err != nil {
		b.Fatalf("catalog.Default() error = %v", err)
	}
	set, err := c.Build()
	if err != nil {
		b.Fatalf("Build() error = %v", err)
	}
	return set
}

func mustParse(b *testing.B, id, data string, format document.Format) *document.Document {
	b.Helper()
	doc, err := document.Parse(id, []byte(data), format, "")
	if err != nil {
		b.Fatalf("Parse(%s) error = %v", id, err)
	}
	return doc
}

// BenchmarkCatalogBuild covers CUE validation of the embedded catalog and
// compilation of every rule.
func BenchmarkCatalogBuild(b *testing.B) {
	for b.Loop() {
		c, err := catalog.Default()
		if err != nil {
			b.Fatalf("catalog.Default() error = %v", err)
		}
		if _, err := c.Build(); err != nil {
			b.Fatalf("Build() error = %v", err)
		}
	}
}

func BenchmarkParse(b *testing.B) {
	docs := []struct {
		id     string
		data   string
		format document.Format
	}{
		{"main.tf", terraformDoc, document.FormatIaC},
		{"prometheus.yml", prometheusDoc, document.FormatTimeSeries},
		{"loki.yaml", lokiDoc, document.FormatLog},
		{"architecture.md", architectureDoc, document.FormatProse},
	}
	for _, d := range docs {
		b.Run(d.id, func(b *testing.B) {
			data := []byte(d.data)
			b.SetBytes(int64(len(data)))
			for b.Loop() {
				if _, err := document.Parse(d.id, data, d.format, ""); err != nil {
					b.Fatalf("Parse() error = %v", err)
				}
			}
		})
	}
}

// BenchmarkExtractProse exercises the prose pattern fact rules, the most
// expensive extraction path.
func BenchmarkExtractProse(b *testing.B) {
	set := defaultSet(b)
	extractor, err := facts.NewExtractor(set.Facts)
	if err != nil {
		b.Fatalf("NewExtractor() error = %v", err)
	}
	doc := mustParse(b, "architecture.md", architectureDoc, document.FormatProse)
	ctx := context.Background()

	for b.Loop() {
		if _, err := extractor.Extract(ctx, doc); err != nil {
			b.Fatalf("Extract() error = %v", err)
		}
	}
}

func BenchmarkEvaluate(b *testing.B) {
	set := defaultSet(b)
	table, err := kb.Default()
	if err != nil {
		b.Fatalf("kb.Default() error = %v", err)
	}
	engine, err := rules.NewEngine(set.Rules, rules.WithKnowledgeBase(table))
	if err != nil {
		b.Fatalf("NewEngine() error = %v", err)
	}
	docs := []*document.Document{
		mustParse(b, "main.tf", terraformDoc, document.FormatIaC),
		mustParse(b, "prometheus.yml", prometheusDoc, document.FormatTimeSeries),
		mustParse(b, "loki.yaml", lokiDoc, document.FormatLog),
	}
	ctx := context.Background()

	for b.Loop() {
		for _, doc := range docs {
			if _, err := engine.Evaluate(ctx, doc); err != nil {
				b.Fatalf("Evaluate(%s) error = %v", doc.ID, err)
			}
		}
	}
}

// BenchmarkAudit runs the whole pipeline over a mixed set of documents,
// replicated to keep every worker busy.
func BenchmarkAudit(b *testing.B) {
	set := defaultSet(b)
	table, err := kb.Default()
	if err != nil {
		b.Fatalf("kb.Default() error = %v", err)
	}

	var inputs []audit.Input
	for i := range 8 {
		inputs = append(inputs,
			audit.Input{ID: fmt.Sprintf("env%d/main.tf", i), Format: document.FormatIaC, Data: []byte(terraformDoc)},
			audit.Input{ID: fmt.Sprintf("env%d/prometheus.yml", i), Format: document.FormatTimeSeries, Data: []byte(prometheusDoc)},
			audit.Input{ID: fmt.Sprintf("env%d/loki.yaml", i), Format: document.FormatLog, Data: []byte(lokiDoc)},
			audit.Input{ID: fmt.Sprintf("env%d/architecture.md", i), Format: document.FormatProse, Data: []byte(architectureDoc)},
		)
	}

	for _, workers := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			for b.Loop() {
				rep, err := audit.Run(b.Context(), audit.Options{
					Inputs:     inputs,
					Catalog:    set,
					KB:         table,
					Workers:    workers,
					BestEffort: true,
				})
				if err != nil {
					b.Fatalf("Run() error = %v", err)
				}
				if rep.Summary.Total == 0 {
					b.Fatal("audit produced no findings")
				}
			}
		})
	}
}

// BenchmarkParseLargeYAML measures parser scaling on a long scrape config.
func BenchmarkParseLargeYAML(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("scrape_configs:\n")
	for i := range 500 {
		fmt.Fprintf(&sb, "  - job_name: job-%d\n    scrape_interval: 30s\n    scrape_timeout: 10s\n    static_configs:\n      - targets: [\"host-%d:9100\"]\n", i, i)
	}
	data := []byte(sb.String())
	b.SetBytes(int64(len(data)))

	for b.Loop() {
		if _, err := document.Parse("prometheus.yml", data, document.FormatTimeSeries, ""); err != nil {
			b.Fatalf("Parse() error = %v", err)
		}
	}
}
