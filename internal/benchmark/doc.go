// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for the audit hot paths, used to
// generate PGO profiles:
//   - catalog schema validation and rule compilation
//   - document parsing per syntax
//   - fact extraction and rule evaluation
//   - the end-to-end audit over a mixed document set
//
// To generate a profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
