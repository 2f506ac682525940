// SPDX-License-Identifier: MPL-2.0

package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/confaudit/confaudit/internal/finding"
)

const schemaURL = "https://confaudit.dev/schemas/report.json"

//go:embed report_schema.json
var schemaData string

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaData)); err != nil {
		return nil, fmt.Errorf("add report schema: %w", err)
	}
	return compiler.Compile(schemaURL)
})

// MarshalJSON renders the report as indented JSON. Map keys are emitted in
// sorted order, so identical reports produce identical bytes.
func MarshalJSON(r *Report) ([]byte, error) {
	if r == nil {
		return nil, errors.New("report is nil")
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(normalized(r)); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteJSON writes the report as JSON after validating it against the
// report schema.
func WriteJSON(w io.Writer, r *Report) error {
	if w == nil {
		return errors.New("writer is nil")
	}
	data, err := MarshalJSON(r)
	if err != nil {
		return err
	}
	if err := ValidateJSON(data); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ValidateJSON checks a JSON report against the embedded schema.
func ValidateJSON(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("report does not match schema: %w", err)
	}
	return nil
}

// normalized replaces nil slices with empty ones so the JSON shape is stable.
func normalized(r *Report) *Report {
	cp := *r
	if cp.Findings == nil {
		cp.Findings = []finding.Finding{}
	}
	if cp.Summary.Documents == nil {
		cp.Summary.Documents = []string{}
	}
	if cp.Summary.UnfinishedDocuments == nil {
		cp.Summary.UnfinishedDocuments = []string{}
	}
	if cp.Summary.Counts == nil {
		cp.Summary.Counts = CountBySeverity(nil)
	}
	if cp.Summary.CategoryCounts == nil {
		cp.Summary.CategoryCounts = map[string]int{}
	}
	return &cp
}
