package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("stream reset") }

func TestWriteAtomic(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "Artist", "Song.mp3")

	n, err := WriteAtomic(dst, strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7 bytes written, got %d", n)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("content mismatch: %q", got)
	}
	if _, err := os.Stat(dst + PartSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected part file to be gone, stat err=%v", err)
	}
}

func TestWriteAtomicFailureLeavesNothing(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "Song.mp3")

	if _, err := WriteAtomic(dst, failingReader{}); err == nil {
		t.Fatal("expected error from failing reader")
	}
	for _, p := range []string{dst, dst + PartSuffix} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s to be absent, stat err=%v", p, err)
		}
	}
}

func TestLinkOrCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cache", "t1.mp3")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out", "Artist", "Song.mp3")

	if err := LinkOrCopy(src, dst); err != nil {
		t.Fatalf("LinkOrCopy: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "audio" {
		t.Fatalf("content mismatch: %q", got)
	}

	// Calling again on the same pair is a no-op.
	if err := LinkOrCopy(src, dst); err != nil {
		t.Fatalf("second LinkOrCopy: %v", err)
	}
	if !Exists(dst) {
		t.Fatal("expected destination to exist")
	}
}

func TestLinkOrCopyMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := LinkOrCopy(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "nested", "dst.txt")
	if err := os.WriteFile(src, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}
}
