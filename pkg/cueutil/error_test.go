// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	t.Run("nil error returns nil", func(t *testing.T) {
		t.Parallel()

		if err := FormatError(nil, "test.cue"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("non-CUE error is wrapped with filepath", func(t *testing.T) {
		t.Parallel()

		original := errors.New("some error")
		err := FormatError(original, "test.cue")
		if !errors.Is(err, original) {
			t.Errorf("error should wrap the original, got: %v", err)
		}
		if !strings.HasPrefix(err.Error(), "test.cue: ") {
			t.Errorf("error should start with filepath, got: %v", err)
		}
	})
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     []string
		expected string
	}{
		{"empty path", []string{}, ""},
		{"single element", []string{"launcher"}, "launcher"},
		{"nested path", []string{"process", "inherit_env"}, "process.inherit_env"},
		{"array index", []string{"answers", "0", "reply"}, "answers[0].reply"},
		{"nested arrays", []string{"items", "0", "values", "1"}, "items[0].values[1]"},
		{"leading number is a field", []string{"0", "x"}, "0.x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := formatPath(tt.path); got != tt.expected {
				t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"within limit", 11, false},
		{"exact limit", 100, false},
		{"empty", 0, false},
		{"exceeds limit", 101, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckFileSize(make([]byte, tt.size), 100, "test.cue")
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckFileSize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var sizeErr *FileSizeError
			if !errors.As(err, &sizeErr) || !errors.Is(err, ErrFileTooLarge) {
				t.Fatalf("error = %v, want *FileSizeError", err)
			}
			if sizeErr.Size != 101 || sizeErr.Max != 100 {
				t.Errorf("FileSizeError = %+v", sizeErr)
			}
		})
	}
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()

	single := &ValidationErrors{FilePath: "config.cue", Errors: []*ValidationError{
		{FilePath: "config.cue", CUEPath: "launcher", Message: "conflicting values"},
	}}
	if got, want := single.Error(), "config.cue: launcher: conflicting values"; got != want {
		t.Errorf("single Error() = %q, want %q", got, want)
	}

	multi := &ValidationErrors{FilePath: "config.cue", Errors: []*ValidationError{
		{FilePath: "config.cue", CUEPath: "launcher", Message: "bad"},
		{FilePath: "config.cue", Message: "syntax error"},
	}}
	want := "config.cue: validation failed:\n  launcher: bad\n  syntax error"
	if got := multi.Error(); got != want {
		t.Errorf("multi Error() = %q, want %q", got, want)
	}
	if !errors.Is(multi, ErrValidation) {
		t.Error("ValidationErrors should wrap ErrValidation")
	}
}
