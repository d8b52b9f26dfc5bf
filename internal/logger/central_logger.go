package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	// Embed timezone database so LoadLocation works on hosts without zoneinfo.
	_ "time/tzdata"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// traceLevel sits one step below zap's Debug level.
const traceLevel = zapcore.DebugLevel - 1

const (
	moduleKey  = "module"
	traceIDKey = "trace_id"
)

var (
	globalLogger   *CentralLogger
	globalLoggerMu sync.Mutex
)

// SetGlobal sets the global CentralLogger instance.
// This should be called once during application startup after loading configuration.
func SetGlobal(cl *CentralLogger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = cl
}

// Global returns the global CentralLogger instance.
// If no logger has been set via SetGlobal, it returns a console-only fallback.
func Global() *CentralLogger {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()

	if globalLogger != nil {
		return globalLogger
	}

	cfg := &LoggingConfig{}
	applyConfigDefaults(cfg)
	globalLogger = newCentralLoggerWithCore(cfg, newConsoleCore(os.Stdout, zapcore.InfoLevel, time.Local), nil)
	return globalLogger
}

// loggerContextKey is a typed key for context values.
type loggerContextKey struct{ name string }

// TraceIDKey is the context key for trace IDs. Use WithTraceID() to set values.
var TraceIDKey = loggerContextKey{"trace_id"}

// WithTraceID returns a new context with the trace ID set
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// CentralLogger manages module-aware logging on top of a zap core
type CentralLogger struct {
	config       *LoggingConfig
	zap          *zap.Logger
	moduleLevels map[string]zapcore.Level
	defaultLevel zapcore.Level
	file         *os.File
	mu           sync.RWMutex
}

// NewCentralLogger creates a centralized logger with console and optional file output
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}
	cfg = cloneConfig(cfg)
	applyConfigDefaults(cfg)

	tz, err := loadTimezone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	var cores []zapcore.Core
	if cfg.Console.Enabled {
		cores = append(cores, newConsoleCore(os.Stdout, parseLevel(cfg.Console.Level), tz))
	}

	var file *os.File
	if cfg.FileOutput.Enabled {
		if err := ensureFileDirectory(cfg.FileOutput.Path); err != nil {
			return nil, err
		}
		file, err = os.OpenFile(cfg.FileOutput.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.FileOutput.Path, err)
		}
		cores = append(cores, newJSONCore(file, parseLevel(cfg.FileOutput.Level), tz))
	}

	return newCentralLoggerWithCore(cfg, zapcore.NewTee(cores...), file), nil
}

func newCentralLoggerWithCore(cfg *LoggingConfig, core zapcore.Core, file *os.File) *CentralLogger {
	cl := &CentralLogger{
		config:       cfg,
		zap:          zap.New(core),
		moduleLevels: make(map[string]zapcore.Level, len(cfg.ModuleLevels)),
		defaultLevel: parseLevel(cfg.DefaultLevel),
		file:         file,
	}
	for module, level := range cfg.ModuleLevels {
		cl.moduleLevels[module] = parseLevel(level)
	}
	return cl
}

// Module returns a logger scoped to a top-level module.
func (cl *CentralLogger) Module(name string) Logger {
	return &moduleLogger{
		module: name,
		zap:    cl.zap,
		level:  cl.levelFor(name),
	}
}

// levelFor resolves the most specific configured level for a dotted module name.
func (cl *CentralLogger) levelFor(module string) zapcore.Level {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	for name := module; name != ""; {
		if level, ok := cl.moduleLevels[name]; ok {
			return level
		}
		idx := strings.LastIndex(name, ".")
		if idx < 0 {
			break
		}
		name = name[:idx]
	}
	return cl.defaultLevel
}

// Flush writes any buffered entries.
func (cl *CentralLogger) Flush() error {
	err := cl.zap.Sync()
	// Sync on a terminal stdout returns EINVAL or ENOTTY, which is not a failure.
	if err != nil && cl.file == nil {
		return nil
	}
	return err
}

// Close flushes and releases the log file, if any.
func (cl *CentralLogger) Close() error {
	_ = cl.Flush()
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.file == nil {
		return nil
	}
	err := cl.file.Close()
	cl.file = nil
	return err
}

// moduleLogger is the Logger handed to components
type moduleLogger struct {
	module string
	zap    *zap.Logger
	level  zapcore.Level
	fields []Field
}

func (m *moduleLogger) Module(name string) Logger {
	return &moduleLogger{
		module: m.module + "." + name,
		zap:    m.zap,
		level:  m.level,
		fields: slices.Clone(m.fields),
	}
}

func (m *moduleLogger) Trace(msg string, fields ...Field) { m.log(traceLevel, msg, fields) }
func (m *moduleLogger) Debug(msg string, fields ...Field) { m.log(zapcore.DebugLevel, msg, fields) }
func (m *moduleLogger) Info(msg string, fields ...Field)  { m.log(zapcore.InfoLevel, msg, fields) }
func (m *moduleLogger) Warn(msg string, fields ...Field)  { m.log(zapcore.WarnLevel, msg, fields) }
func (m *moduleLogger) Error(msg string, fields ...Field) { m.log(zapcore.ErrorLevel, msg, fields) }

func (m *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	m.log(parseLevel(string(level)), msg, fields)
}

func (m *moduleLogger) With(fields ...Field) Logger {
	return &moduleLogger{
		module: m.module,
		zap:    m.zap,
		level:  m.level,
		fields: slices.Concat(m.fields, fields),
	}
}

func (m *moduleLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return m
	}
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok || traceID == "" {
		return m
	}
	return m.With(String(traceIDKey, traceID))
}

func (m *moduleLogger) Flush() error {
	return nil
}

func (m *moduleLogger) log(level zapcore.Level, msg string, fields []Field) {
	if m == nil || level < m.level {
		return
	}
	ce := m.zap.Check(level, msg)
	if ce == nil {
		return
	}

	zf := make([]zap.Field, 0, len(m.fields)+len(fields)+1)
	if m.module != "" {
		zf = append(zf, zap.String(moduleKey, m.module))
	}
	for i := range m.fields {
		zf = append(zf, toZapField(m.fields[i]))
	}
	for i := range fields {
		zf = append(zf, toZapField(fields[i]))
	}
	ce.Write(zf...)
}

func toZapField(f Field) zap.Field {
	switch v := f.Value.(type) {
	case nil:
		return zap.Skip()
	case string:
		return zap.String(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case int64:
		return zap.Int64(f.Key, v)
	case float64:
		return zap.Float64(f.Key, v)
	case bool:
		return zap.Bool(f.Key, v)
	case time.Time:
		return zap.Time(f.Key, v)
	case time.Duration:
		return zap.String(f.Key, v.Round(time.Millisecond).String())
	case error:
		return zap.String(f.Key, v.Error())
	default:
		return zap.Any(f.Key, v)
	}
}

func encoderConfig(tz *time.Location) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.MessageKey = "msg"
	cfg.EncodeLevel = encodeLevel
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(tz).Format(time.RFC3339))
	}
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

func newJSONCore(w io.Writer, level zapcore.Level, tz *time.Location) zapcore.Core {
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig(tz)), zapcore.AddSync(w), level)
}

// newConsoleCore omits timestamps; journald and docker add their own.
func newConsoleCore(w io.Writer, level zapcore.Level, tz *time.Location) zapcore.Core {
	cfg := encoderConfig(tz)
	cfg.TimeKey = ""
	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), level)
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == traceLevel {
		enc.AppendString("TRACE")
		return
	}
	enc.AppendString(l.CapitalString())
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case string(LogLevelTrace):
		return traceLevel
	case string(LogLevelDebug):
		return zapcore.DebugLevel
	case string(LogLevelWarn), "warning":
		return zapcore.WarnLevel
	case string(LogLevelError):
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func loadTimezone(name string) (*time.Location, error) {
	switch name {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return tz, nil
}

func ensureFileDirectory(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return nil
}

func cloneConfig(cfg *LoggingConfig) *LoggingConfig {
	c := *cfg
	if cfg.Console != nil {
		console := *cfg.Console
		c.Console = &console
	}
	if cfg.FileOutput != nil {
		file := *cfg.FileOutput
		c.FileOutput = &file
	}
	if cfg.ModuleLevels != nil {
		c.ModuleLevels = make(map[string]string, len(cfg.ModuleLevels))
		for k, v := range cfg.ModuleLevels {
			c.ModuleLevels[k] = v
		}
	}
	return &c
}
