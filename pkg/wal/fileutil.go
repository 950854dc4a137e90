package wal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// FileRotator owns an append-only file and can move it aside atomically.
type FileRotator struct {
	path       string
	file       *os.File
	writer     *bufio.Writer
	bufferSize int
}

// NewFileRotator creates a new file rotator for the given path.
// bufferSize controls the bufio.Writer buffer size (0 = default).
func NewFileRotator(path string, bufferSize int) *FileRotator {
	return &FileRotator{
		path:       path,
		bufferSize: bufferSize,
	}
}

// Open opens or creates the file for appending.
func (fr *FileRotator) Open() error {
	file, err := os.OpenFile(fr.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", fr.path, err)
	}

	fr.file = file
	fr.writer = fr.newWriter(file)
	return nil
}

func (fr *FileRotator) newWriter(file *os.File) *bufio.Writer {
	if fr.bufferSize > 0 {
		return bufio.NewWriterSize(file, fr.bufferSize)
	}
	return bufio.NewWriter(file)
}

// File returns the underlying file handle.
func (fr *FileRotator) File() *os.File {
	return fr.file
}

// Writer returns the buffered writer.
func (fr *FileRotator) Writer() *bufio.Writer {
	return fr.writer
}

// Flush flushes the buffered writer.
func (fr *FileRotator) Flush() error {
	if fr.writer == nil {
		return nil
	}
	return fr.writer.Flush()
}

// Sync flushes the buffer and syncs the file to disk.
func (fr *FileRotator) Sync() error {
	if err := fr.Flush(); err != nil {
		return err
	}
	if fr.file == nil {
		return nil
	}
	return fr.file.Sync()
}

// Close flushes, syncs, and closes the file.
func (fr *FileRotator) Close() error {
	if fr.file == nil {
		return nil
	}
	syncErr := fr.Sync()
	closeErr := fr.file.Close()
	fr.file = nil
	fr.writer = nil
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// Rotate moves the current file to archivePath with a rename and opens a
// fresh empty file at the original path. The rename is the commit point:
// once it succeeds the archived file holds every byte written before the
// call. If opening the new file fails the rotator is left without a file.
func (fr *FileRotator) Rotate(archivePath string) error {
	if fr.file == nil {
		return fmt.Errorf("no file to rotate")
	}

	if err := fr.Close(); err != nil {
		return fmt.Errorf("failed to close before rotate: %w", err)
	}

	if err := os.Rename(fr.path, archivePath); err != nil {
		// The old file is still in place; reopen it so appends can continue.
		if reopenErr := fr.Open(); reopenErr != nil {
			return fmt.Errorf("failed to rename file: %w (reopen error: %v)", err, reopenErr)
		}
		return fmt.Errorf("failed to rename file: %w", err)
	}

	if err := SyncDir(filepath.Dir(fr.path)); err != nil {
		return fmt.Errorf("failed to sync directory after rename: %w", err)
	}

	return fr.Open()
}

// SyncDir fsyncs a directory so renames and removals inside it are durable.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FileSize returns the size of a file in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
