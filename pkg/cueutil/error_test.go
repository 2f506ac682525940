// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	if err := FormatError(nil, "rules.cue"); err != nil {
		t.Errorf("FormatError(nil) = %v, want nil", err)
	}

	originalErr := errors.New("some error")
	err := FormatError(originalErr, "rules.cue")
	if !errors.Is(err, originalErr) {
		t.Errorf("non-CUE error should be wrapped, got: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "rules.cue: ") {
		t.Errorf("error should start with the file path, got: %v", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     []string
		expected string
	}{
		{name: "empty path", path: []string{}, expected: ""},
		{name: "single element", path: []string{"workers"}, expected: "workers"},
		{name: "nested path", path: []string{"ui", "verbose"}, expected: "ui.verbose"},
		{name: "array index", path: []string{"rules", "0", "severity"}, expected: "rules[0].severity"},
		{name: "multiple indices", path: []string{"rules", "2", "check", "fields", "1"}, expected: "rules[2].check.fields[1]"},
		{name: "leading number", path: []string{"0", "id"}, expected: "0.id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if result := formatPath(tt.path); result != tt.expected {
				t.Errorf("formatPath(%v) = %q, want %q", tt.path, result, tt.expected)
			}
		})
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := CheckFileSize(make([]byte, 100), 100, "rules.cue"); err != nil {
		t.Errorf("data at exact limit: %v", err)
	}
	if err := CheckFileSize(nil, 100, "rules.cue"); err != nil {
		t.Errorf("empty data: %v", err)
	}

	err := CheckFileSize(make([]byte, 101), 100, "rules.cue")
	if err == nil {
		t.Fatal("expected error for oversized data")
	}
	for _, want := range []string{"rules.cue", "101", "100"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err, want)
		}
	}
}
