// SPDX-License-Identifier: MPL-2.0

// Package audit runs a full configuration audit: it reads and parses every
// input on a bounded worker pool, extracts facts, evaluates single-document
// rules, waits for all documents, checks cross-document consistency, and
// aggregates the findings into a report.
//
// Every recoverable failure (unreadable file, parse error, unnormalizable
// fact, failing rule or comparator) is reported as a finding. Run only fails
// when no input could be read at all.
package audit
