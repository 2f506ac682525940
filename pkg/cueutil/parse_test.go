// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Limits: {
	name:     string & !=""
	workers?: int & >=1
	tags?: [...string]
}
`

type limits struct {
	Name    string   `json:"name"`
	Workers int      `json:"workers"`
	Tags    []string `json:"tags"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	result, err := ParseAndDecode[limits]([]byte(testSchema), []byte(`name: "loki"
workers: 4
tags: ["a", "b"]
`), "#Limits", WithFilename("limits.cue"))
	if err != nil {
		t.Fatalf("ParseAndDecode() error = %v", err)
	}
	if result.Value.Name != "loki" || result.Value.Workers != 4 || len(result.Value.Tags) != 2 {
		t.Errorf("Value = %+v", result.Value)
	}
	if !result.Unified.Exists() {
		t.Error("Unified value should exist")
	}
}

func TestParseAndDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "schema violation", data: `name: "x", workers: 0`, want: "limits.cue: workers"},
		{name: "closed definition", data: `name: "x", extra: 1`, want: "extra"},
		{name: "syntax error", data: `name: "x`, want: "limits.cue"},
		{name: "missing required field", data: `workers: 2`, want: "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseAndDecode[limits]([]byte(testSchema), []byte(tt.data), "#Limits", WithFilename("limits.cue"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestParseAndDecodeSizeLimit(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[limits]([]byte(testSchema), []byte(`name: "abcdefgh"`), "#Limits", WithMaxFileSize(4))
	if err == nil || !strings.Contains(err.Error(), "<input>") {
		t.Fatalf("error = %v, want size error naming <input>", err)
	}
}

func TestDecodeValue(t *testing.T) {
	t.Parallel()

	data := map[string]any{"name": "tempo", "workers": 2, "tags": []any{"x"}}
	result, err := DecodeValue[limits]([]byte(testSchema), data, "#Limits", WithFilename("limits.yaml"))
	if err != nil {
		t.Fatalf("DecodeValue() error = %v", err)
	}
	if result.Value.Name != "tempo" || result.Value.Workers != 2 {
		t.Errorf("Value = %+v", result.Value)
	}

	_, err = DecodeValue[limits]([]byte(testSchema), map[string]any{"name": "tempo", "workers": "many"}, "#Limits", WithFilename("limits.yaml"))
	if err == nil || !strings.Contains(err.Error(), "limits.yaml: workers") {
		t.Errorf("DecodeValue() error = %v, want path-qualified error", err)
	}
}

func TestNonConcreteValidation(t *testing.T) {
	t.Parallel()

	schema := `#Opt: { name?: string, level?: "debug" | "info" }`
	type opt struct {
		Name string `json:"name"`
	}
	if _, err := ParseAndDecode[opt]([]byte(schema), []byte(`name: "x"`), "#Opt", WithConcrete(false)); err != nil {
		t.Errorf("ParseAndDecode() error = %v", err)
	}
}
