package lsm

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrClosed         = errors.New("store is closed")
	ErrEngineFailed   = errors.New("store failed and must be reopened")
	ErrMemTableFrozen = errors.New("memtable is frozen")
	ErrCorruptTable   = errors.New("corrupt SSTable")
)

// OpError provides structured error information for store operations.
type OpError struct {
	Op   string // Operation that failed (e.g., "append", "flush")
	Key  string // Key involved, if any
	Path string // File involved, if any
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	switch {
	case e.Key != "" && e.Path != "":
		return fmt.Sprintf("%s %q (%s): %v", e.Op, e.Key, e.Path, e.Err)
	case e.Key != "":
		return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying cause for error chain support.
func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op, key, path string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Key: key, Path: path, Err: err}
}

// corruptf builds an error wrapping ErrCorruptTable
func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptTable, fmt.Sprintf(format, args...))
}
