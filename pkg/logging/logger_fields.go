package logging

import (
	"time"
)

// Scalar field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration renders d in Go duration syntax ("1.5ms")
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, Value: d.String()}
}

// Error records err under "error"; a nil error logs as null
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Store fields. Keep the names stable: dashboards and tests match on them.

// Component names the subsystem emitting the log line
func Component(name string) Field {
	return String("component", name)
}

// Operation is the store operation (append, delete, flush, rotate WAL, ...)
func Operation(op string) Field {
	return String("operation", op)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

func Path(p string) Field {
	return String("path", p)
}

// Key is the user key an operation touched
func Key(k string) Field {
	return String("key", k)
}

// Table identifies an SSTable by file name
func Table(name string) Field {
	return String("table", name)
}

// Offset is a byte position inside a WAL or SSTable file
func Offset(off int64) Field {
	return Int64("offset", off)
}
