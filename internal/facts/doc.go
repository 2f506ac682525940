// SPDX-License-Identifier: MPL-2.0

// Package facts extracts normalized, comparable facts from documents.
//
// A FactRule names a fact key, the nodes that carry it, and the unit family
// used to normalize the raw value. Normalization maps equivalent spellings to
// one canonical Value ("180 days", "4320h" and 15552000 seconds compare
// equal), which is what makes cross-document consistency checks possible.
package facts
