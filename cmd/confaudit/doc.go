// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the confaudit command tree: audit, rules list,
// kb show and config show.
package cmd
