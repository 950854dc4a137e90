package lsm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/cluso-kv/pkg/command"
	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/wal"
)

// Open opens the store in opts.Dir, creating the directory if needed, and
// recovers SSTables and WAL contents left by a previous run.
func Open(opts Options) (*KVStore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, opError("open", "", opts.Dir, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	s := &KVStore{
		live:    NewMemTable(),
		opts:    opts,
		storeID: uuid.NewString(),
		metrics: opts.Metrics,
	}
	s.log = logger.With(logging.Component("lsm"), logging.String("store_id", s.storeID))
	s.cache = NewPartitionCache(opts.PartitionCacheSize)
	s.tableOpts = TableOptions{
		PartitionSize: opts.PartitionSize,
		Compression:   opts.Compression,
		UseMmap:       opts.UseMmap,
		Cache:         s.cache,
		Metrics:       opts.Metrics,
	}

	if err := s.recover(); err != nil {
		s.mu.Lock()
		_ = s.closeResourcesLocked()
		s.mu.Unlock()
		return nil, opError("open", "", opts.Dir, err)
	}

	s.mu.Lock()
	s.updateGaugesLocked()
	s.mu.Unlock()

	// A recovered MemTable may already be over the threshold
	if s.live.Len() >= opts.MemTableThreshold {
		if err := s.Sync(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	return s, nil
}

// recover restores SSTables, completes an interrupted flush and replays the
// canonical WAL. Unreadable tables and unexpected files are logged and
// skipped.
func (s *KVStore) recover() error {
	timer := logging.StartTimer(s.log, "store opened", logging.Path(s.opts.Dir))

	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		return err
	}

	var tablePaths []string
	visible := 0
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		visible++

		switch {
		case name == wal.FileName || name == wal.PendingFileName:
		case wal.IsQuarantined(name):
			s.log.Warn("quarantined WAL awaits inspection", logging.Path(name))
		case entry.IsDir():
			s.log.Warn("ignoring directory in data dir", logging.Path(name))
			s.metrics.RecordSkippedFile()
		default:
			id, ok := ParseSSTableName(name)
			if !ok {
				s.log.Warn("ignoring unexpected file", logging.Path(name))
				s.metrics.RecordSkippedFile()
				continue
			}
			s.lastTableID = max(s.lastTableID, id)
			tablePaths = append(tablePaths, filepath.Join(s.opts.Dir, name))
		}
	}

	if visible == 0 {
		s.wal, err = wal.Open(s.opts.Dir, s.walOptions())
		if err != nil {
			return err
		}
		timer.End(logging.Bool("fresh", true))
		return nil
	}

	s.tables = s.restoreTables(tablePaths)

	s.wal, err = wal.Open(s.opts.Dir, s.walOptions())
	if err != nil {
		return err
	}

	if s.wal.HasPending() {
		if err := s.recoverPending(); err != nil {
			return err
		}
	}

	replayed, err := s.replayWAL()
	if err != nil {
		return err
	}
	s.metrics.RecordRecovery("wal", replayed)

	sort.Slice(s.tables, func(i, j int) bool {
		return s.tables[i].ID() > s.tables[j].ID()
	})

	timer.End(logging.Int("tables", len(s.tables)), logging.Count(replayed))
	return nil
}

// replayWAL loads the canonical log into the live MemTable. A torn tail is
// cut off. Damage before the end of the log is never truncated: the log is
// quarantined with every byte intact and the readable prefix is written to
// a fresh log so it stays durable.
func (s *KVStore) replayWAL() (int, error) {
	replayed := 0
	good, err := s.wal.Replay(func(cmd command.Command) error {
		replayed++
		return s.live.Put(cmd)
	})

	switch {
	case err == nil:
		return replayed, nil
	case !errors.Is(err, wal.ErrCorrupt):
		return replayed, fmt.Errorf("replay WAL: %w", err)
	case errors.Is(err, wal.ErrTornTail):
		s.log.Warn("truncating torn WAL tail",
			logging.Offset(good),
			logging.Int64("size", s.wal.Size()),
			logging.Error(err))
		return replayed, s.wal.TruncateTo(good)
	}

	aside, qerr := s.wal.Quarantine()
	if qerr != nil {
		return replayed, fmt.Errorf("quarantine damaged WAL: %w", qerr)
	}
	s.log.Error("WAL damaged before its end; moved aside",
		logging.Path(aside),
		logging.Offset(good),
		logging.Count(replayed),
		logging.Error(err))
	s.metrics.RecordSkippedFile()

	for _, cmd := range s.live.Entries() {
		if _, err := s.wal.Append(cmd); err != nil {
			return replayed, fmt.Errorf("rewrite recovered WAL prefix: %w", err)
		}
	}
	return replayed, nil
}

// restoreTables opens tables in parallel; failures are logged and skipped
func (s *KVStore) restoreTables(paths []string) []*SSTable {
	restored := make([]*SSTable, len(paths))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			sst, err := OpenSSTable(path, s.tableOpts)
			if err != nil {
				s.log.Warn("skipping unreadable SSTable", logging.Table(filepath.Base(path)), logging.Error(err))
				s.metrics.RecordSkippedFile()
				return nil
			}
			restored[i] = sst
			return nil
		})
	}
	_ = g.Wait()

	tables := make([]*SSTable, 0, len(restored))
	for _, sst := range restored {
		if sst != nil {
			tables = append(tables, sst)
		}
	}
	return tables
}

// recoverPending finishes a flush interrupted after WAL rotation: the
// pending log is written to its own SSTable, which is newer than every
// restored table, and then removed.
func (s *KVStore) recoverPending() error {
	pending := NewMemTable()
	replayed := 0
	damaged := false
	good, err := wal.ReplayFile(s.wal.PendingPath(), func(cmd command.Command) error {
		replayed++
		return pending.Put(cmd)
	})
	switch {
	case err == nil:
	case !errors.Is(err, wal.ErrCorrupt):
		return fmt.Errorf("replay pending WAL: %w", err)
	case errors.Is(err, wal.ErrTornTail):
		s.log.Warn("pending WAL has a torn tail", logging.Offset(good), logging.Error(err))
	default:
		damaged = true
	}
	s.metrics.RecordRecovery("pending", replayed)

	if pending.Len() > 0 {
		pending.Freeze()
		sst, err := s.buildTable(pending, s.nextTableIDLocked())
		if err != nil {
			return fmt.Errorf("flush pending WAL: %w", err)
		}
		s.tables = append(s.tables, sst)
		s.stats.flushes.Add(1)
	}

	if damaged {
		aside, qerr := wal.QuarantineFile(s.wal.PendingPath())
		if qerr != nil {
			return fmt.Errorf("quarantine damaged pending WAL: %w", qerr)
		}
		s.log.Error("pending WAL damaged before its end; moved aside",
			logging.Path(aside),
			logging.Offset(good),
			logging.Count(replayed),
			logging.Error(err))
		s.metrics.RecordSkippedFile()
		return nil
	}

	if err := s.wal.RemovePending(); err != nil {
		return err
	}
	s.log.Info("recovered interrupted flush", logging.Count(replayed))
	return nil
}

func (s *KVStore) walOptions() wal.Options {
	opts := wal.DefaultOptions()
	opts.SyncWrites = s.opts.SyncWrites
	return opts
}

// closeResourcesLocked closes the WAL and all tables, returning the first error
func (s *KVStore) closeResourcesLocked() error {
	var g errgroup.Group
	if s.wal != nil {
		g.Go(s.wal.Close)
	}
	for _, sst := range s.tables {
		g.Go(sst.Close)
	}
	return g.Wait()
}
