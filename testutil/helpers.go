package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// MkSubdir creates a subdirectory under parent and returns its path.
func MkSubdir(t *testing.T, parent, name string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}
	return dir
}
