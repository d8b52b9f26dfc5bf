package logger

import (
	"io"
	"time"

	"go.uber.org/zap/zapcore"
)

// NewTestLogger returns a Logger that writes JSON lines to w.
// This is useful for tests that need to intercept logger output.
func NewTestLogger(w io.Writer, level LogLevel) Logger {
	cfg := &LoggingConfig{DefaultLevel: string(level), Timezone: "UTC"}
	applyConfigDefaults(cfg)
	cl := newCentralLoggerWithCore(cfg, newJSONCore(w, parseLevel(string(level)), time.UTC), nil)
	return cl.Module("test")
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	cfg := &LoggingConfig{}
	applyConfigDefaults(cfg)
	return newCentralLoggerWithCore(cfg, zapcore.NewNopCore(), nil).Module("nop")
}
