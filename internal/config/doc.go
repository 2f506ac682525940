// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// The configuration file is looked up in this order: an explicit --config path,
// config.cue in the platform config directory ($XDG_CONFIG_HOME/confaudit on Linux,
// ~/Library/Application Support/confaudit on macOS, %APPDATA%\confaudit on Windows),
// and confaudit.cue in the working directory. Files are validated against the
// embedded #Config schema (config_schema.cue) before being merged over the defaults.
// CONFAUDIT_* environment variables override file values.
package config
