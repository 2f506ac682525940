// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ParseResult contains the result of a successful CUE parse operation.
type ParseResult[T any] struct {
	// Value is the decoded Go struct.
	Value *T

	// Unified is the unified CUE value, available for callers that need
	// defaults or extra fields after decoding.
	Unified cue.Value
}

// ParseAndDecode compiles CUE source data, unifies it with the definition at
// schemaPath inside schema, validates, and decodes the result into T.
func ParseAndDecode[T any](schema, data []byte, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	filename := options.displayName()

	// Early size check so oversized files are rejected before compilation.
	if err := CheckFileSize(data, options.maxFileSize, filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	schemaRoot, err := lookupSchema(ctx, schema, schemaPath)
	if err != nil {
		return nil, err
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), filename)
	}
	return validateAndDecode[T](schemaRoot.Unify(userValue), filename, options)
}

// DecodeValue validates an already-decoded Go value (typically the result of
// unmarshaling YAML or JSON into any) against the definition at schemaPath
// and decodes it into T.
func DecodeValue[T any](schema []byte, data any, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	filename := options.displayName()

	ctx := cuecontext.New()
	schemaRoot, err := lookupSchema(ctx, schema, schemaPath)
	if err != nil {
		return nil, err
	}

	userValue := ctx.Encode(data)
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), filename)
	}
	return validateAndDecode[T](schemaRoot.Unify(userValue), filename, options)
}

func lookupSchema(ctx *cue.Context, schema []byte, schemaPath string) (cue.Value, error) {
	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}
	root := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if root.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, root.Err())
	}
	return root, nil
}

func validateAndDecode[T any](unified cue.Value, filename string, options parseOptions) (*ParseResult[T], error) {
	if err := unified.Validate(cue.Concrete(options.concrete)); err != nil {
		return nil, FormatError(err, filename)
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, filename)
	}
	return &ParseResult[T]{Value: &result, Unified: unified}, nil
}
