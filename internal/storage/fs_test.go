package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempWorkdir(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempWorkdir(t)
	content := []byte("Name: test\n\n2019\n")
	if err := s.Write("test.egret", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("test.egret")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempWorkdir(t)
	if err := s.Write("a/b/c.egret", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.egret")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteKeepsPermissions(t *testing.T) {
	s := tempWorkdir(t)
	if err := s.Write("perm.egret", []byte("v1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	abs := filepath.Join(s.root, "perm.egret")
	if err := os.Chmod(abs, 0o600); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	if err := s.Write("perm.egret", []byte("v2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("mode = %o, want 600", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempWorkdir(t)
	_ = s.Write("del.egret", []byte("bye"))
	if err := s.Delete("del.egret"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.egret"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestMove(t *testing.T) {
	s := tempWorkdir(t)
	_ = s.Write("old.egret", []byte("data"))
	if err := s.Move("old.egret", "archive/new.egret"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("archive/new.egret")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.egret"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempWorkdir(t)
	_ = s.Write("a.egret", []byte("a"))
	_ = s.Write("sub/b.egret", []byte("b"))
	_ = s.Write("readme.txt", []byte("not a project"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempWorkdir(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.egret",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	// Verify that if we read during a write the old content is intact
	// (the rename is atomic on POSIX).
	s := tempWorkdir(t)
	original := []byte("original content")
	_ = s.Write("atomic.egret", original)

	// Overwrite with new content.
	updated := []byte("updated content")
	if err := s.Write("atomic.egret", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.egret")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".egret-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/egret-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "egret-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
