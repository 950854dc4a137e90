// Package wal implements the write-ahead log that makes MemTable contents
// durable until they are flushed to an SSTable.
//
// File format: a sequence of records, each a big-endian uint32 payload
// length followed by the payload (an encoded command.Command). There is no
// header or trailer.
package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dd0wney/cluso-kv/pkg/command"
)

const (
	// FileName is the canonical log that receives appends
	FileName = "wal.log"
	// PendingFileName holds the history of a frozen MemTable until its flush completes
	PendingFileName = "wal.log.pending"
	// CorruptSuffix precedes the millisecond timestamp of a quarantined log
	CorruptSuffix = ".corrupt-"

	recordHeaderSize = 4

	// MaxRecordSize bounds a single record's payload
	MaxRecordSize = 64 << 20
)

var (
	// ErrCorrupt marks a record that is torn or cannot be decoded
	ErrCorrupt = errors.New("corrupted WAL record")
	// ErrTornTail marks a record cut short by the end of the log. Errors
	// wrapping it also wrap ErrCorrupt.
	ErrTornTail = errors.New("torn WAL tail")
	// ErrRecordTooLarge is returned by Append for a payload over MaxRecordSize
	ErrRecordTooLarge = errors.New("WAL record too large")
	// ErrClosed is returned by operations on a closed WAL
	ErrClosed = errors.New("WAL is closed")
	// ErrPendingExists is returned by Rotate while an earlier rotation is still unflushed
	ErrPendingExists = errors.New("pending WAL already exists")
)

// Options configures a WAL
type Options struct {
	// SyncWrites fsyncs after every append
	SyncWrites bool
	// BufferSize is the write buffer size (0 = bufio default)
	BufferSize int
}

// DefaultOptions returns options that fsync every append
func DefaultOptions() Options {
	return Options{SyncWrites: true}
}

// WAL is a Write-Ahead Log for durability
type WAL struct {
	mu      sync.Mutex
	dir     string
	opts    Options
	rotator *FileRotator
	size    int64
	closed  bool
	broken  error // first failed write; the file tail is unknown after it
	scratch []byte
}

// Open opens or creates the canonical log in dir for appending.
func Open(dir string, opts Options) (*WAL, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	w := &WAL{
		dir:     dir,
		opts:    opts,
		rotator: NewFileRotator(filepath.Join(dir, FileName), opts.BufferSize),
	}

	if err := w.rotator.Open(); err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}

	info, err := w.rotator.File().Stat()
	if err != nil {
		w.rotator.Close()
		return nil, fmt.Errorf("failed to stat WAL file: %w", err)
	}
	w.size = info.Size()

	return w, nil
}

// Path returns the canonical log path
func (w *WAL) Path() string {
	return filepath.Join(w.dir, FileName)
}

// PendingPath returns the path a rotated log is moved to
func (w *WAL) PendingPath() string {
	return filepath.Join(w.dir, PendingFileName)
}

// Size returns the number of bytes in the canonical log
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Append writes one record and returns the number of bytes it occupies.
// The record is handed to the OS before Append returns, and fsynced when
// SyncWrites is set.
func (w *WAL) Append(cmd command.Command) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}
	if w.broken != nil {
		return 0, fmt.Errorf("WAL unusable after failed write: %w", w.broken)
	}
	if w.rotator.File() == nil {
		return 0, fmt.Errorf("WAL has no open file after a failed rotation")
	}

	buf := append(w.scratch[:0], 0, 0, 0, 0)
	buf, err := command.AppendEncoded(buf, cmd)
	if err != nil {
		return 0, err
	}
	payloadLen := len(buf) - recordHeaderSize
	if payloadLen > MaxRecordSize {
		return 0, fmt.Errorf("%w: %d bytes, limit is %d", ErrRecordTooLarge, payloadLen, MaxRecordSize)
	}
	binary.BigEndian.PutUint32(buf[:recordHeaderSize], uint32(payloadLen))
	w.scratch = buf

	if _, err := w.rotator.Writer().Write(buf); err != nil {
		w.broken = err
		return 0, fmt.Errorf("failed to write WAL record: %w", err)
	}

	if err := w.rotator.Flush(); err != nil {
		w.broken = err
		return 0, fmt.Errorf("failed to flush WAL: %w", err)
	}

	if w.opts.SyncWrites {
		if err := w.rotator.File().Sync(); err != nil {
			w.broken = err
			return 0, fmt.Errorf("failed to sync WAL: %w", err)
		}
	}

	w.size += int64(len(buf))
	return len(buf), nil
}

// Replay reads the canonical log from the start and calls handler for each
// command in write order. It returns the offset just past the last good
// record; on corruption the error wraps ErrCorrupt and the offset marks
// where the valid prefix ends.
func (w *WAL) Replay(handler func(command.Command) error) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}

	if err := w.rotator.Flush(); err != nil {
		return 0, err
	}

	section := io.NewSectionReader(w.rotator.File(), 0, w.size)
	return replay(NewSizedReader(section, w.size), handler)
}

// ReplayFile replays a log that is not open for appending, such as the
// pending log left behind by an interrupted flush.
func ReplayFile(path string, handler func(command.Command) error) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}

	return replay(NewSizedReader(file, info.Size()), handler)
}

// TruncateTo discards everything after offset. It is used to cut a torn
// tail so later appends remain readable.
func (w *WAL) TruncateTo(offset int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if offset < 0 || offset > w.size {
		return fmt.Errorf("truncate offset %d outside [0, %d]", offset, w.size)
	}

	if err := w.rotator.Flush(); err != nil {
		return err
	}
	if err := w.rotator.File().Truncate(offset); err != nil {
		return fmt.Errorf("failed to truncate WAL: %w", err)
	}
	if err := w.rotator.File().Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL: %w", err)
	}

	w.size = offset
	return nil
}

// Rotate renames the canonical log to the pending name and starts a fresh
// canonical log. Only one pending log may exist at a time.
func (w *WAL) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	pending := w.PendingPath()
	if FileExists(pending) {
		return ErrPendingExists
	}

	if err := w.rotator.Rotate(pending); err != nil {
		return fmt.Errorf("failed to rotate WAL: %w", err)
	}

	w.size = 0
	return nil
}

// Quarantine moves the canonical log aside under a CorruptSuffix name and
// starts an empty canonical log. The old bytes are kept for inspection.
func (w *WAL) Quarantine() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return "", ErrClosed
	}

	aside := quarantinePath(w.Path())
	if err := w.rotator.Rotate(aside); err != nil {
		return "", fmt.Errorf("failed to quarantine WAL: %w", err)
	}

	w.size = 0
	w.broken = nil
	return aside, nil
}

// QuarantineFile renames a log that is not open for appending, such as a
// damaged pending log, under a CorruptSuffix name.
func QuarantineFile(path string) (string, error) {
	aside := quarantinePath(path)
	if err := os.Rename(path, aside); err != nil {
		return "", fmt.Errorf("failed to quarantine %s: %w", path, err)
	}
	if err := SyncDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	return aside, nil
}

// IsQuarantined reports whether name is a log moved aside by Quarantine
func IsQuarantined(name string) bool {
	return strings.HasPrefix(name, FileName+CorruptSuffix) ||
		strings.HasPrefix(name, PendingFileName+CorruptSuffix)
}

func quarantinePath(path string) string {
	return fmt.Sprintf("%s%s%d", path, CorruptSuffix, time.Now().UnixMilli())
}

// HasPending reports whether a pending log exists on disk
func (w *WAL) HasPending() bool {
	return FileExists(w.PendingPath())
}

// RemovePending deletes the pending log once its contents are safely in an
// SSTable. A missing pending log is not an error.
func (w *WAL) RemovePending() error {
	if err := os.Remove(w.PendingPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove pending WAL: %w", err)
	}
	return SyncDir(w.dir)
}

// Close flushes and closes the log. Closing twice is a no-op.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	return w.rotator.Close()
}
