// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and the catalog of run-level
// issues shown to users.
//
// An ActionableError says what was being attempted, on which resource, and
// how to fix it. When it carries an issue Id, the CLI renders that issue's
// Markdown guidance with glamour below the error.
package issue
