// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE parsing utilities.
//
// Rule catalogs and the configuration file are validated against embedded CUE
// schemas with the same three steps:
//
//  1. Compile the embedded schema
//  2. Compile (or encode) user data and unify it with the schema
//  3. Validate and decode to a Go struct
//
// # Usage
//
//	//go:embed catalog_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[Catalog](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Catalog",
//	    cueutil.WithFilename("rules.cue"),
//	)
//	if err != nil {
//	    return nil, err  // Error includes CUE path for debugging
//	}
//	return result.Value, nil
//
// Catalogs written in YAML or JSON are decoded to plain Go values first and
// validated through DecodeValue, so every catalog syntax gets the same
// schema errors.
package cueutil
