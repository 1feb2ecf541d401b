package sha256

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashFileDeterministic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Showcase.png")
	if err := os.WriteFile(path, []byte("hello world"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	h := New()
	got, err := h.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	again, err := h.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() repeat error = %v", err)
	}
	if again != got {
		t.Fatalf("expected deterministic hash, got %s vs %s", got, again)
	}
}

func TestHashFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := New().HashFile(filepath.Join(t.TempDir(), "absent.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
