package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"WARNING", WarnLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"invalid", InfoLevel}, // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFieldConstructors(t *testing.T) {
	t.Run("Duration", func(t *testing.T) {
		f := Duration("timeout", 5*time.Second)
		if f.Key != "timeout" || f.Value != "5s" {
			t.Errorf("Duration() = %+v", f)
		}
	})

	t.Run("Error", func(t *testing.T) {
		f := Error(errors.New("disk full"))
		if f.Key != "error" || f.Value != "disk full" {
			t.Errorf("Error() = %+v", f)
		}
	})

	t.Run("Error_nil", func(t *testing.T) {
		f := Error(nil)
		if f.Key != "error" || f.Value != nil {
			t.Errorf("Error(nil) = %+v", f)
		}
	})

	t.Run("Key", func(t *testing.T) {
		f := Key("user:1")
		if f.Key != "key" || f.Value != "user:1" {
			t.Errorf("Key() = %+v", f)
		}
	})

	t.Run("Operation", func(t *testing.T) {
		f := Operation("rotate WAL")
		if f.Key != "operation" || f.Value != "rotate WAL" {
			t.Errorf("Operation() = %+v", f)
		}
	})

	t.Run("Offset", func(t *testing.T) {
		f := Offset(13)
		if f.Key != "offset" || f.Value != int64(13) {
			t.Errorf("Offset() = %+v", f)
		}
	})

	t.Run("Table", func(t *testing.T) {
		f := Table("1700000000000.sst")
		if f.Key != "table" || f.Value != "1700000000000.sst" {
			t.Errorf("Table() = %+v", f)
		}
	})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to unmarshal log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestZapLogger_BasicLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZapLogger(&buf, DebugLevel)

	logger.Info("test message", String("key", "value"), Int("num", 42))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]

	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want 'test message'", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want value", entry["key"])
	}
	if entry["num"] != float64(42) {
		t.Errorf("num = %v, want 42", entry["num"])
	}
	if entry["time"] == nil {
		t.Error("time field is missing")
	}
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZapLogger(&buf, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(entries))
	}
	if entries[0]["level"] != "WARN" {
		t.Errorf("First entry level = %v, want WARN", entries[0]["level"])
	}
	if entries[1]["level"] != "ERROR" {
		t.Errorf("Second entry level = %v, want ERROR", entries[1]["level"])
	}
}

func TestZapLogger_WithSharesLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewFromCore(core, InfoLevel)

	child := logger.With(Component("wal"), String("store_id", "abc"))
	child.Info("rotated", Path("/tmp/wal.log"))
	child.Debug("hidden")

	if logs.Len() != 1 {
		t.Fatalf("Expected 1 entry, got %d", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["component"] != "wal" || fields["store_id"] != "abc" || fields["path"] != "/tmp/wal.log" {
		t.Errorf("unexpected fields: %v", fields)
	}

	logger.SetLevel(DebugLevel)
	if child.GetLevel() != DebugLevel {
		t.Errorf("child level = %v, want DEBUG after parent SetLevel", child.GetLevel())
	}
	child.Debug("visible")
	if logs.FilterMessage("visible").Len() != 1 {
		t.Error("debug entry not recorded after lowering level")
	}
}

func TestTimedOperation(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewFromCore(core, DebugLevel)

	timer := StartTimer(logger, "flush", Table("1.sst"))
	timer.End(Count(3))

	timer = StartTimer(logger, "flush failed")
	timer.EndError(errors.New("boom"))

	all := logs.All()
	if len(all) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(all))
	}
	if _, ok := all[0].ContextMap()["latency"]; !ok {
		t.Error("End() did not add latency")
	}
	if all[0].ContextMap()["count"] != int64(3) {
		t.Errorf("count = %v, want 3", all[0].ContextMap()["count"])
	}
	if all[1].Level != zapcore.ErrorLevel || all[1].ContextMap()["error"] != "boom" {
		t.Errorf("EndError() entry = %+v", all[1])
	}
}

func TestGlobalHelperFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefaultLogger(NewZapLogger(&buf, DebugLevel))
	defer SetDefaultLogger(NewNopLogger())

	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	ErrorLog("error msg")
	With(String("service", "kv")).Info("child")

	entries := decodeLines(t, &buf)
	if len(entries) != 5 {
		t.Fatalf("Expected 5 log entries, got %d", len(entries))
	}

	levels := []string{"DEBUG", "INFO", "WARN", "ERROR", "INFO"}
	for i, expected := range levels {
		if entries[i]["level"] != expected {
			t.Errorf("Entry %d level = %v, want %v", i, entries[i]["level"], expected)
		}
	}
	if entries[4]["service"] != "kv" {
		t.Errorf("service field = %v, want kv", entries[4]["service"])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.With(Key("k")).Error("ignored")
	if logger.GetLevel() != InfoLevel {
		t.Errorf("NopLogger level = %v", logger.GetLevel())
	}
}

func BenchmarkZapLogger_InfoFiltered(b *testing.B) {
	var buf bytes.Buffer
	logger := NewZapLogger(&buf, ErrorLevel)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message",
			String("key1", "value1"),
			Int("key2", 42),
		)
	}
}
