package wal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dd0wney/cluso-kv/pkg/command"
)

func openTestWAL(t *testing.T, dir string) *WAL {
	t.Helper()
	w, err := Open(dir, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to open WAL: %v", err)
	}
	return w
}

func collect(t *testing.T, w *WAL) []command.Command {
	t.Helper()
	var out []command.Command
	if _, err := w.Replay(func(c command.Command) error {
		out = append(out, c)
		return nil
	}); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	return out
}

func TestWAL_AppendAndReplay(t *testing.T) {
	w := openTestWAL(t, t.TempDir())
	defer w.Close()

	cmds := []command.Command{
		command.Append("a", "1"),
		command.Append("b", "2"),
		command.Delete("a"),
	}

	var total int
	for _, c := range cmds {
		n, err := w.Append(c)
		if err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
		total += n
	}

	if w.Size() != int64(total) {
		t.Errorf("Size() = %d, want %d", w.Size(), total)
	}

	got := collect(t, w)
	if len(got) != len(cmds) {
		t.Fatalf("Expected %d commands, got %d", len(cmds), len(got))
	}
	for i := range cmds {
		if got[i] != cmds[i] {
			t.Errorf("command %d = %v, want %v", i, got[i], cmds[i])
		}
	}

	// Appends continue after a replay
	if _, err := w.Append(command.Append("c", "3")); err != nil {
		t.Fatalf("Append after replay failed: %v", err)
	}
	if got := collect(t, w); len(got) != 4 {
		t.Errorf("Expected 4 commands after second append, got %d", len(got))
	}
}

func TestWAL_RecordLayout(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir)

	cmd := command.Append("key", "value")
	if _, err := w.Append(cmd); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	w.Close()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	payload, _ := command.Encode(cmd)
	if got := binary.BigEndian.Uint32(data[:4]); int(got) != len(payload) {
		t.Errorf("length prefix = %d, want %d", got, len(payload))
	}
	if !bytes.Equal(data[4:], payload) {
		t.Error("payload does not match encoded command")
	}
}

func TestWAL_ReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir)
	for i := 0; i < 10; i++ {
		if _, err := w.Append(command.Append(fmt.Sprintf("k%d", i), "v")); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	w.Close()

	w2 := openTestWAL(t, dir)
	defer w2.Close()
	if got := collect(t, w2); len(got) != 10 {
		t.Errorf("Expected 10 commands after reopen, got %d", len(got))
	}
}

func TestWAL_TruncatedRecordIsCorruption(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir)
	w.Append(command.Append("a", "1"))
	w.Append(command.Append("b", "2"))
	goodSize := w.Size()
	w.Close()

	// Length prefix promising more bytes than exist
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 100)
	f.Write(hdr[:])
	f.Write([]byte("short"))
	f.Close()

	w2 := openTestWAL(t, dir)
	defer w2.Close()

	var replayed int
	offset, err := w2.Replay(func(command.Command) error {
		replayed++
		return nil
	})
	if !errors.Is(err, ErrCorrupt) || !errors.Is(err, ErrTornTail) {
		t.Fatalf("Expected a torn-tail ErrCorrupt, got %v", err)
	}
	if replayed != 2 {
		t.Errorf("Expected the 2 good records to replay, got %d", replayed)
	}
	if offset != goodSize {
		t.Errorf("good offset = %d, want %d", offset, goodSize)
	}

	// Cutting the torn tail makes the log readable again
	if err := w2.TruncateTo(offset); err != nil {
		t.Fatalf("TruncateTo failed: %v", err)
	}
	if _, err := w2.Append(command.Delete("a")); err != nil {
		t.Fatalf("Append after truncate failed: %v", err)
	}
	if got := collect(t, w2); len(got) != 3 {
		t.Errorf("Expected 3 commands after truncate+append, got %d", len(got))
	}
}

func TestReader_TornHeader(t *testing.T) {
	payload, _ := command.Encode(command.Append("k", "v"))
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(payload)))
	buf.Write(payload)
	buf.Write([]byte{0, 0}) // half a length prefix

	rd := NewReader(&buf)
	if _, err := rd.Next(); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if _, err := rd.Next(); !errors.Is(err, ErrTornTail) {
		t.Errorf("Expected ErrTornTail for torn header, got %v", err)
	}
}

func TestReader_EmptyStream(t *testing.T) {
	rd := NewReader(bytes.NewReader(nil))
	if _, err := rd.Next(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestReader_UndecodablePayload(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(6))
	buf.Write([]byte("garbge"))

	rd := NewSizedReader(&buf, int64(buf.Len()))
	_, err := rd.Next()
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}
	if errors.Is(err, ErrTornTail) {
		t.Errorf("complete record with a bad payload reported as torn tail: %v", err)
	}
}

// TestWAL_DamagedMiddleRecord tests that a checksum failure before intact
// records is not mistaken for a torn tail
func TestWAL_DamagedMiddleRecord(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir)
	first, _ := w.Append(command.Append("a", "1"))
	for _, k := range []string{"b", "c", "d"} {
		w.Append(command.Append(k, "v"))
	}
	size := w.Size()
	w.Close()

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	data[first+recordHeaderSize+2] ^= 0xff // key byte of the second record
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	w2 := openTestWAL(t, dir)
	defer w2.Close()

	replayed := 0
	good, err := w2.Replay(func(command.Command) error {
		replayed++
		return nil
	})
	if !errors.Is(err, ErrCorrupt) || errors.Is(err, ErrTornTail) {
		t.Fatalf("Expected mid-log corruption, got %v", err)
	}
	if replayed != 1 || good != int64(first) {
		t.Errorf("replayed %d records up to %d, want 1 up to %d", replayed, good, first)
	}

	aside, err := w2.Quarantine()
	if err != nil {
		t.Fatalf("Quarantine failed: %v", err)
	}
	if !IsQuarantined(filepath.Base(aside)) {
		t.Errorf("%s not recognised as quarantined", aside)
	}
	if kept, _ := FileSize(aside); kept != size {
		t.Errorf("quarantined log holds %d bytes, want %d", kept, size)
	}
	if w2.Size() != 0 {
		t.Errorf("fresh log size = %d", w2.Size())
	}
	if _, err := w2.Append(command.Append("e", "5")); err != nil {
		t.Fatalf("Append after quarantine failed: %v", err)
	}
	if got := collect(t, w2); len(got) != 1 {
		t.Errorf("Expected 1 command in fresh log, got %d", len(got))
	}
}

// TestWAL_FailedWriteIsSticky tests that a WAL refuses appends once a write
// has failed, since the file tail is no longer known
func TestWAL_FailedWriteIsSticky(t *testing.T) {
	w := openTestWAL(t, t.TempDir())
	if _, err := w.Append(command.Append("a", "1")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	size := w.Size()

	w.rotator.File().Close()

	if _, err := w.Append(command.Append("b", "2")); err == nil {
		t.Fatal("Expected Append on a closed file to fail")
	}
	_, err := w.Append(command.Append("c", "3"))
	if !errors.Is(err, os.ErrClosed) {
		t.Errorf("Expected the first failure to be reported again, got %v", err)
	}
	if w.Size() != size {
		t.Errorf("size = %d after failed appends, want %d", w.Size(), size)
	}
	w.Close()
}

func TestQuarantineFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, PendingFileName)
	if err := os.WriteFile(path, []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}

	aside, err := QuarantineFile(path)
	if err != nil {
		t.Fatalf("QuarantineFile failed: %v", err)
	}
	if FileExists(path) || !FileExists(aside) {
		t.Error("file not moved aside")
	}
	if !IsQuarantined(filepath.Base(aside)) {
		t.Errorf("%s not recognised as quarantined", aside)
	}
	if IsQuarantined(FileName) || IsQuarantined(PendingFileName) {
		t.Error("live logs reported as quarantined")
	}
}

func TestWAL_RecordTooLarge(t *testing.T) {
	w := openTestWAL(t, t.TempDir())
	defer w.Close()

	big := string(make([]byte, MaxRecordSize+1))
	if _, err := w.Append(command.Append("k", big)); !errors.Is(err, ErrRecordTooLarge) {
		t.Errorf("Expected ErrRecordTooLarge, got %v", err)
	}
	if _, err := w.Append(command.Append("k", "small")); err != nil {
		t.Errorf("Append after rejected record failed: %v", err)
	}
}

func TestWAL_Rotate(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir)
	defer w.Close()

	w.Append(command.Append("old", "1"))
	if err := w.Rotate(); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	if !w.HasPending() {
		t.Fatal("pending log missing after rotate")
	}
	if w.Size() != 0 {
		t.Errorf("Size after rotate = %d, want 0", w.Size())
	}

	w.Append(command.Append("new", "2"))

	var pending []command.Command
	if _, err := ReplayFile(w.PendingPath(), func(c command.Command) error {
		pending = append(pending, c)
		return nil
	}); err != nil {
		t.Fatalf("ReplayFile failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Key != "old" {
		t.Errorf("pending log = %v, want [old]", pending)
	}

	live := collect(t, w)
	if len(live) != 1 || live[0].Key != "new" {
		t.Errorf("live log = %v, want [new]", live)
	}

	// A second rotation must not clobber the unflushed pending log
	if err := w.Rotate(); !errors.Is(err, ErrPendingExists) {
		t.Errorf("second Rotate = %v, want ErrPendingExists", err)
	}

	if err := w.RemovePending(); err != nil {
		t.Fatalf("RemovePending failed: %v", err)
	}
	if w.HasPending() {
		t.Error("pending log still present after RemovePending")
	}
	if err := w.RemovePending(); err != nil {
		t.Errorf("RemovePending on missing file = %v, want nil", err)
	}
	if err := w.Rotate(); err != nil {
		t.Errorf("Rotate after RemovePending failed: %v", err)
	}
}

func TestWAL_CloseIdempotent(t *testing.T) {
	w := openTestWAL(t, t.TempDir())

	if err := w.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if _, err := w.Append(command.Append("k", "v")); !errors.Is(err, ErrClosed) {
		t.Errorf("Append after Close = %v, want ErrClosed", err)
	}
}

func BenchmarkWAL_AppendNoSync(b *testing.B) {
	w, err := Open(b.TempDir(), Options{})
	if err != nil {
		b.Fatalf("Open failed: %v", err)
	}
	defer w.Close()

	cmd := command.Append("benchmark-key", "benchmark-value")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := w.Append(cmd); err != nil {
			b.Fatal(err)
		}
	}
}
