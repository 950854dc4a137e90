// Package command defines the mutations stored by the engine and the binary
// codec used to persist them in the write-ahead log and in SSTable partitions.
package command

import "fmt"

// Kind tags a Command as an append or a delete.
type Kind uint8

const (
	// KindAppend sets a key to a value
	KindAppend Kind = iota + 1
	// KindDelete records a tombstone for a key
	KindDelete
)

// String returns the string representation of a kind
func (k Kind) String() string {
	switch k {
	case KindAppend:
		return "APPEND"
	case KindDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k == KindAppend || k == KindDelete
}

// Command is one logical mutation. Value is only meaningful for KindAppend.
type Command struct {
	Kind  Kind
	Key   string
	Value string
}

// Append returns a command that sets key to value
func Append(key, value string) Command {
	return Command{Kind: KindAppend, Key: key, Value: value}
}

// Delete returns a tombstone for key
func Delete(key string) Command {
	return Command{Kind: KindDelete, Key: key}
}

// IsTombstone reports whether the command deletes its key
func (c Command) IsTombstone() bool {
	return c.Kind == KindDelete
}

// Resolve interprets the command for a reader: the value and true for an
// append, the empty string and false for a tombstone.
func (c Command) Resolve() (string, bool) {
	switch c.Kind {
	case KindAppend:
		return c.Value, true
	case KindDelete:
		return "", false
	default:
		return "", false
	}
}

func (c Command) String() string {
	if c.Kind == KindAppend {
		return fmt.Sprintf("%s(%q=%q)", c.Kind, c.Key, c.Value)
	}
	return fmt.Sprintf("%s(%q)", c.Kind, c.Key)
}
