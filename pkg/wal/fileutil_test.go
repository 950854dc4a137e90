package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileRotator_WriteAndFlush(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	fr := NewFileRotator(path, 0)
	if err := fr.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer fr.Close()

	if _, err := fr.Writer().Write([]byte("test data")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := fr.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != "test data" {
		t.Errorf("Content = %q, want %q", string(content), "test data")
	}
}

func TestFileRotator_RotateMovesFileAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")
	archive := filepath.Join(dir, "test.log.old")

	fr := NewFileRotator(path, 1024)
	if err := fr.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer fr.Close()

	// Buffered bytes must reach the archived file
	fr.Writer().Write([]byte("before rotation"))

	if err := fr.Rotate(archive); err != nil {
		t.Fatalf("Rotate() failed: %v", err)
	}

	archived, err := os.ReadFile(archive)
	if err != nil {
		t.Fatalf("ReadFile archive failed: %v", err)
	}
	if string(archived) != "before rotation" {
		t.Errorf("archive = %q, want %q", archived, "before rotation")
	}

	if size, _ := FileSize(path); size != 0 {
		t.Errorf("Expected fresh file of size 0, got %d", size)
	}

	fr.Writer().Write([]byte("after rotation"))
	fr.Flush()

	content, _ := os.ReadFile(path)
	if string(content) != "after rotation" {
		t.Errorf("Content = %q, want %q", content, "after rotation")
	}
}

func TestFileRotator_RotateWithoutOpen(t *testing.T) {
	fr := NewFileRotator(filepath.Join(t.TempDir(), "x.log"), 0)
	if err := fr.Rotate("elsewhere"); err == nil {
		t.Error("Rotate on unopened rotator should fail")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	newDir := filepath.Join(dir, "nested", "path")

	if err := EnsureDir(newDir); err != nil {
		t.Fatalf("EnsureDir() failed: %v", err)
	}
	if !FileExists(newDir) {
		t.Error("Directory should exist after EnsureDir()")
	}
	if err := EnsureDir(newDir); err != nil {
		t.Fatalf("EnsureDir() failed on existing dir: %v", err)
	}
	if err := SyncDir(newDir); err != nil {
		t.Errorf("SyncDir() failed: %v", err)
	}
}

func TestFileSize_NonExistent(t *testing.T) {
	if _, err := FileSize("/nonexistent/path/file.txt"); err == nil {
		t.Error("FileSize should return error for non-existent file")
	}
}
