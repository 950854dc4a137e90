package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/wal"
)

// prepareFlushLocked decides whether the calling writer must run a flush.
// While a flush is running it never freezes again; the flushing goroutine
// re-checks the live MemTable when it finishes. A snapshot left frozen by a
// failed flush is retried.
func (s *KVStore) prepareFlushLocked() (bool, error) {
	if s.flushing {
		return false, nil
	}

	if s.frozen == nil {
		if s.live.Len() < s.opts.MemTableThreshold {
			return false, nil
		}
		if err := s.freezeLocked(); err != nil {
			return false, err
		}
	}

	s.beginFlushLocked()
	return true, nil
}

// freezeLocked swaps the live MemTable for an empty one and rotates the WAL
// so the pending log holds exactly the frozen snapshot's history.
func (s *KVStore) freezeLocked() error {
	if s.frozen != nil {
		return fmt.Errorf("freeze with a snapshot already frozen")
	}

	if err := s.wal.Rotate(); err != nil {
		return s.failLocked("rotate WAL", err)
	}

	s.live.Freeze()
	s.frozen = s.live
	s.live = NewMemTable()

	s.log.Debug("memtable frozen", logging.Count(s.frozen.Len()))
	return nil
}

func (s *KVStore) beginFlushLocked() {
	s.flushing = true
	s.flushDone = make(chan struct{})
}

func (s *KVStore) endFlushLocked() {
	s.flushing = false
	close(s.flushDone)
}

// failLocked poisons the store; every later operation returns the error
func (s *KVStore) failLocked(what string, cause error) error {
	if s.failed == nil {
		s.failed = fmt.Errorf("%w: %s: %w", ErrEngineFailed, what, cause)
		s.log.Error("store failed", logging.Operation(what), logging.Error(cause))
	}
	return s.failed
}

// runFlush writes the frozen snapshot to a new SSTable outside the lock,
// publishes it, and repeats while the live MemTable has reached the
// threshold again in the meantime. The caller must have called
// beginFlushLocked.
func (s *KVStore) runFlush() error {
	for {
		s.mu.Lock()
		frozen := s.frozen
		id := s.nextTableIDLocked()
		s.mu.Unlock()

		sst, buildErr := s.buildTable(frozen, id)

		s.mu.Lock()
		if buildErr != nil {
			s.stats.failedFlushes.Add(1)
			s.endFlushLocked()
			s.mu.Unlock()
			return opError("flush", "", SSTablePath(s.opts.Dir, id), buildErr)
		}

		s.tables = append([]*SSTable{sst}, s.tables...)
		s.frozen = nil
		s.stats.flushes.Add(1)

		if err := s.wal.RemovePending(); err != nil {
			err = s.failLocked("remove pending WAL", err)
			s.endFlushLocked()
			s.mu.Unlock()
			return err
		}

		again := false
		var err error
		if !s.closed && s.failed == nil && s.live.Len() >= s.opts.MemTableThreshold {
			err = s.freezeLocked()
			again = err == nil
		}
		s.updateGaugesLocked()
		if !again {
			s.endFlushLocked()
		}
		s.mu.Unlock()

		if !again {
			return err
		}
	}
}

// buildTable writes mt to the SSTable with the given id and makes the new
// directory entry durable.
func (s *KVStore) buildTable(mt *MemTable, id int64) (*SSTable, error) {
	path := SSTablePath(s.opts.Dir, id)
	timer := logging.StartTimer(s.log, "memtable flushed", logging.Table(filepath.Base(path)))
	start := time.Now()

	if s.beforeBuild != nil {
		s.beforeBuild(path)
	}

	sst, err := BuildSSTable(path, mt.Entries(), s.tableOpts)
	if err == nil {
		if err = wal.SyncDir(s.opts.Dir); err != nil {
			_ = sst.Close()
			_ = os.Remove(path)
		}
	}

	s.metrics.RecordFlush(err, time.Since(start))
	if err != nil {
		timer.EndError(err)
		return nil, err
	}

	timer.End(logging.Count(mt.Len()), logging.Int("partitions", sst.Partitions()))
	return sst, nil
}

// nextTableIDLocked returns a millisecond timestamp id greater than any id
// already used in the directory.
func (s *KVStore) nextTableIDLocked() int64 {
	id := time.Now().UnixMilli()
	if id <= s.lastTableID {
		id = s.lastTableID + 1
	}
	s.lastTableID = id
	return id
}
