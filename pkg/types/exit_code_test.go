// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestExitCodeValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		value     ExitCode
		wantValid bool
	}{
		{name: "success", value: ExitSuccess, wantValid: true},
		{name: "findings", value: ExitFindings, wantValid: true},
		{name: "fatal", value: ExitFatal, wantValid: true},
		{name: "255 is valid", value: 255, wantValid: true},
		{name: "negative is invalid", value: -1, wantValid: false},
		{name: "256 is invalid", value: 256, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.value.Validate()
			if (err == nil) != tt.wantValid {
				t.Errorf("ExitCode(%d).Validate() error = %v, wantValid %v", tt.value, err, tt.wantValid)
			}
			if !tt.wantValid && !errors.Is(err, ErrInvalidExitCode) {
				t.Errorf("error does not wrap ErrInvalidExitCode: %v", err)
			}
		})
	}
}

func TestExitCodeHelpers(t *testing.T) {
	t.Parallel()

	if !ExitSuccess.IsSuccess() || ExitFindings.IsSuccess() {
		t.Error("IsSuccess() is wrong")
	}
	if got := ExitFindings.Max(ExitFatal); got != ExitFatal {
		t.Errorf("Max() = %d, want %d", got, ExitFatal)
	}
	if got := ExitFatal.String(); got != "2" {
		t.Errorf("String() = %q, want \"2\"", got)
	}
}
