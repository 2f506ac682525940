// SPDX-License-Identifier: MPL-2.0

// Package document normalizes heterogeneous configuration and prose files into a
// single located tree.
//
// Every syntax adapter (YAML/JSON, HCL, Markdown, TOML, INI) produces the same
// Node shape: mappings keep declaration order, sequences keep element order, and
// every node carries a Location with the document ID and a 1-based line range.
// When a format has no native line tracking the adapter maps byte offsets or key
// positions back to lines on a best-effort basis.
//
// A Document is immutable once Parse returns it. Facts are attached through
// WithFacts, which returns a copy.
package document
