// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// MustMkdirAll creates a directory along with any necessary parents.
// The test fails immediately if the operation fails.
func MustMkdirAll(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}

// MustWriteFile writes content to path, creating parent directories.
// The test fails immediately if the write fails.
func MustWriteFile(t testing.TB, path, content string) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// MustReadFile returns the content of path.
// The test fails immediately if the read fails.
func MustReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// WriteTree creates files under root. Keys are slash-separated paths
// relative to root. It returns the created paths in sorted order.
func WriteTree(t testing.TB, root string, files map[string]string) []string {
	t.Helper()
	paths := make([]string, 0, len(files))
	for rel, content := range files {
		if strings.HasPrefix(rel, "/") || strings.Contains(rel, "..") {
			t.Fatalf("WriteTree: path %q must be relative and stay under root", rel)
		}
		p := filepath.Join(root, filepath.FromSlash(rel))
		MustWriteFile(t, p, content)
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}
