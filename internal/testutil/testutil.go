// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lherron/ttags/internal/db"
)

// TempDB creates a migrated SQLite database for testing
func TempDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if _, err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// Isolate points HOME at a fresh temp dir, unsets every TTAGS_ variable and
// moves the test into HOME. Everything is restored when the test ends.
// It returns the home dir.
func Isolate(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "TTAGS_") {
			// Setenv registers the restore, Unsetenv makes it absent
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}
	t.Chdir(home)
	return home
}

// WriteFile writes content to path, creating parent directories
func WriteFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}
