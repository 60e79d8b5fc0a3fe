package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteArtifact creates a file with the given content under dir and returns
// its path for use as an artifact reference.
func WriteArtifact(t testing.TB, dir, name string, size int) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write artifact %s: %v", path, err)
	}
	return path
}
