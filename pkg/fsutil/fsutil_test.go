package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomicCreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.bin")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("expected replaced content, got %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, got %d entries", len(entries))
	}
}

func TestIsWithin(t *testing.T) {
	root := filepath.Join("/data", "photos")

	cases := []struct {
		path string
		want bool
	}{
		{root, true},
		{filepath.Join(root, "out"), true},
		{filepath.Join(root, "a", "b"), true},
		{filepath.Join("/data", "photos-out"), false},
		{"/data", false},
		{filepath.Join("/data", "..photos"), false},
	}

	for _, tc := range cases {
		if got := IsWithin(tc.path, root); got != tc.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tc.path, root, got, tc.want)
		}
	}
}
