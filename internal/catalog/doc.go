// SPDX-License-Identifier: MPL-2.0

// Package catalog loads rule, fact-rule and consistency-rule catalogs.
//
// A catalog is plain data. It can be written in CUE, YAML or JSON; every
// form is validated against the embedded #Catalog schema before decoding.
// The built-in catalog covers Terraform on AWS and a Prometheus, Loki,
// Tempo, OpenTelemetry Collector and Grafana observability stack.
package catalog
