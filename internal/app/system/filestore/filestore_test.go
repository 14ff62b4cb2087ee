package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPutDeleteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir, "/files/avatars/")
	ctx := context.Background()

	if err := l.Put(ctx, "avatars/a1.png", strings.NewReader("pixels"), nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "avatars", "a1.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "pixels" {
		t.Errorf("stored bytes = %q", data)
	}

	if got, want := l.URL("avatars/a1.png"), "/files/avatars/avatars/a1.png"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}

	if err := l.Delete(ctx, "avatars/a1.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "avatars", "a1.png")); !os.IsNotExist(err) {
		t.Errorf("object still present after delete: %v", err)
	}

	// Deleting again is not an error.
	if err := l.Delete(ctx, "avatars/a1.png"); err != nil {
		t.Errorf("repeat delete: %v", err)
	}
}

func TestPutRefusesEscapingPaths(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir, "/files")

	if err := l.Put(context.Background(), "../outside.txt", strings.NewReader("x"), nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "outside.txt")); err != nil {
		t.Errorf("escaping path was not confined to the root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "outside.txt")); !os.IsNotExist(err) {
		t.Errorf("object written outside the root")
	}
}
