package lsm

import (
	"sort"
	"sync"

	"github.com/dd0wney/cluso-kv/pkg/command"
)

// MemTable is an in-memory write buffer holding the latest command per key.
// It never interprets tombstones; a Delete is stored like any other command.
type MemTable struct {
	mu     sync.RWMutex
	data   map[string]command.Command
	keys   []string // Sorted lazily for iteration
	size   int      // Approximate size in bytes
	sorted bool
	frozen bool
}

// NewMemTable creates an empty, live MemTable
func NewMemTable() *MemTable {
	return &MemTable{
		data:   make(map[string]command.Command),
		keys:   make([]string, 0),
		sorted: true,
	}
}

// Put records cmd as the latest command for its key
func (mt *MemTable) Put(cmd command.Command) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.frozen {
		return ErrMemTableFrozen
	}

	if existing, exists := mt.data[cmd.Key]; exists {
		mt.size -= len(existing.Value)
	} else {
		mt.keys = append(mt.keys, cmd.Key)
		mt.sorted = false
		mt.size += len(cmd.Key)
	}
	mt.size += len(cmd.Value)

	mt.data[cmd.Key] = cmd
	return nil
}

// Get returns the latest command for key, tombstones included
func (mt *MemTable) Get(key string) (command.Command, bool) {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	cmd, ok := mt.data[key]
	return cmd, ok
}

// Len returns the number of distinct keys
func (mt *MemTable) Len() int {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return len(mt.data)
}

// Bytes returns the approximate size of keys and values in bytes
func (mt *MemTable) Bytes() int {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.size
}

// Freeze makes the table read-only
func (mt *MemTable) Freeze() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.frozen = true
}

// Frozen reports whether Freeze has been called
func (mt *MemTable) Frozen() bool {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.frozen
}

// Entries returns all commands in ascending key order
func (mt *MemTable) Entries() []command.Command {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if !mt.sorted {
		sort.Strings(mt.keys)
		mt.sorted = true
	}

	entries := make([]command.Command, 0, len(mt.keys))
	for _, key := range mt.keys {
		entries = append(entries, mt.data[key])
	}
	return entries
}
