package lsm

import (
	"errors"
	"time"

	"github.com/dd0wney/cluso-kv/pkg/command"
	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/wal"
)

// Append stores value under key
func (s *KVStore) Append(key, value string) error {
	return s.write("append", command.Append(key, value))
}

// Delete records a tombstone for key
func (s *KVStore) Delete(key string) error {
	return s.write("delete", command.Delete(key))
}

// write logs cmd, applies it to the live MemTable and, when the MemTable
// reaches the threshold, freezes it and flushes it in this goroutine.
func (s *KVStore) write(op string, cmd command.Command) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperation(op, err, time.Since(start)) }()

	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return opError(op, cmd.Key, "", err)
	}

	n, err := s.wal.Append(cmd)
	if err != nil {
		// The log tail is unknown after a failed write
		if !errors.Is(err, wal.ErrRecordTooLarge) {
			s.log.Warn("WAL append failed", logging.Operation(op), logging.Key(cmd.Key), logging.Error(err))
			err = s.failLocked("append WAL", err)
		}
		s.mu.Unlock()
		return opError(op, cmd.Key, s.wal.Path(), err)
	}
	s.metrics.RecordWALWrite(n)

	if err := s.live.Put(cmd); err != nil {
		s.mu.Unlock()
		return opError(op, cmd.Key, "", err)
	}
	s.stats.writes.Add(1)

	flush, err := s.prepareFlushLocked()
	s.updateGaugesLocked()
	s.mu.Unlock()

	if err != nil {
		return opError(op, cmd.Key, "", err)
	}
	if flush {
		return s.runFlush()
	}
	return nil
}

// Fetch returns the value stored under key. A deleted or unknown key gives
// found == false with a nil error.
func (s *KVStore) Fetch(key string) (value string, found bool, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperation("fetch", err, time.Since(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.usableLocked(); err != nil {
		return "", false, opError("fetch", key, "", err)
	}
	s.stats.reads.Add(1)

	if cmd, ok := s.live.Get(key); ok {
		value, found = cmd.Resolve()
		return value, found, nil
	}

	if s.frozen != nil {
		if cmd, ok := s.frozen.Get(key); ok {
			value, found = cmd.Resolve()
			return value, found, nil
		}
	}

	for _, sst := range s.tables {
		cmd, ok, err := sst.Query(key)
		if err != nil {
			return "", false, opError("fetch", key, sst.Path(), err)
		}
		if ok {
			value, found = cmd.Resolve()
			return value, found, nil
		}
	}

	return "", false, nil
}

// Sync flushes the live MemTable to an SSTable even if it is below the
// threshold, retrying a previously failed flush first. It waits for a flush
// already in progress.
func (s *KVStore) Sync() error {
	retried := false
	for {
		s.mu.Lock()
		if err := s.usableLocked(); err != nil {
			s.mu.Unlock()
			return opError("sync", "", "", err)
		}

		if s.flushing {
			done := s.flushDone
			s.mu.Unlock()
			<-done
			continue
		}

		retry := s.frozen != nil && !retried
		if s.frozen == nil {
			if s.live.Len() == 0 {
				s.mu.Unlock()
				return nil
			}
			if err := s.freezeLocked(); err != nil {
				s.mu.Unlock()
				return opError("sync", "", "", err)
			}
		}

		s.beginFlushLocked()
		s.mu.Unlock()
		if err := s.runFlush(); err != nil || !retry {
			return err
		}
		// The retried snapshot is out; the live MemTable still needs a pass
		retried = true
	}
}

// Stats returns a snapshot of store statistics
func (s *KVStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		StoreID:       s.storeID,
		Writes:        s.stats.writes.Load(),
		Reads:         s.stats.reads.Load(),
		Flushes:       s.stats.flushes.Load(),
		FailedFlushes: s.stats.failedFlushes.Load(),
		Tables:        len(s.tables),
		LiveEntries:   s.live.Len(),
		Flushing:      s.flushing,
	}
	if s.frozen != nil {
		st.FrozenEntries = s.frozen.Len()
	}
	if !s.closed {
		st.WALBytes = s.wal.Size()
	}
	st.CacheHits, st.CacheMisses, _ = s.cache.Stats()
	return st
}

// Tables describes the published SSTables, newest first
func (s *KVStore) Tables() []TableInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]TableInfo, 0, len(s.tables))
	for _, sst := range s.tables {
		infos = append(infos, sst.Info())
	}
	return infos
}

// Dir returns the data directory
func (s *KVStore) Dir() string {
	return s.opts.Dir
}

// Close waits for a running flush and releases the WAL and all SSTables.
// Calling Close again returns nil.
func (s *KVStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var done chan struct{}
	if s.flushing {
		done = s.flushDone
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.closeResourcesLocked()
	if err != nil {
		s.log.Error("close failed", logging.Error(err))
		return opError("close", "", s.opts.Dir, err)
	}
	s.log.Info("store closed", logging.Int("tables", len(s.tables)))
	return nil
}

// usableLocked reports why the store cannot serve requests, if it cannot
func (s *KVStore) usableLocked() error {
	if s.closed {
		return ErrClosed
	}
	return s.failed
}

func (s *KVStore) updateGaugesLocked() {
	frozen := 0
	if s.frozen != nil {
		frozen = s.frozen.Len()
	}
	s.metrics.UpdateStoreGauges(s.live.Len(), frozen, len(s.tables))
}
