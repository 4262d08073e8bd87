// Package logging is the structured logger every component writes
// through. Records are JSON lines keyed by component, with key-value
// fields passed variadically at the call site, so one pipeline run can be
// followed across listener, engine and publisher by grepping a symbol or
// a trace ID.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level is log severity. Records below the logger's level are discarded.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a Level. Unknown names fall back to
// INFO rather than erroring; a bad LOG_LEVEL should not take the bot down.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// record is one emitted log line.
type record struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Config holds logger configuration, filled from LOG_* env at boot.
type Config struct {
	Level       string `json:"level"`
	Output      string `json:"output"`       // "stdout", "stderr", or a file path
	Component   string `json:"component"`
	IncludeFile bool   `json:"include_file"` // annotate records with file:line
	JSONFormat  bool   `json:"json_format"`
}

// Logger writes structured records. The zero value is not usable; build
// one with New. Component- and field-scoped children share the parent's
// writer and level, so WithComponent is cheap enough to call per
// subsystem at construction time.
type Logger struct {
	mu          *sync.Mutex // shared by all children of one New call
	output      io.Writer
	level       Level
	component   string
	traceID     string
	fields      map[string]interface{}
	includeFile bool
	jsonFormat  bool
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// New creates a logger. An unopenable output path falls back to stdout.
func New(cfg *Config) *Logger {
	var output io.Writer = os.Stdout
	switch cfg.Output {
	case "", "stdout":
	case "stderr":
		output = os.Stderr
	default:
		if file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			output = file
		}
	}

	return &Logger{
		mu:          &sync.Mutex{},
		output:      output,
		level:       ParseLevel(cfg.Level),
		component:   cfg.Component,
		includeFile: cfg.IncludeFile,
		jsonFormat:  cfg.JSONFormat,
		fields:      map[string]interface{}{},
	}
}

// Default returns the process-wide logger, lazily initialized to INFO
// JSON on stdout until main installs the configured one.
func Default() *Logger {
	once.Do(func() {
		if defaultLogger == nil {
			defaultLogger = New(&Config{Level: "INFO", JSONFormat: true})
		}
	})
	return defaultLogger
}

// SetDefault installs the logger returned by Default.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// WithComponent returns a child logger tagged with the component name.
func (l *Logger) WithComponent(component string) *Logger {
	child := l.clone()
	child.component = component
	return child
}

// WithTraceID returns a child logger carrying the trace ID.
func (l *Logger) WithTraceID(traceID string) *Logger {
	child := l.clone()
	child.traceID = traceID
	return child
}

// WithField returns a child logger with one bound field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	child := l.clone()
	child.fields[key] = value
	return child
}

// WithFields returns a child logger with the given fields bound.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	child := l.clone()
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

// WithDuration returns a child logger with a bound duration field.
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return l.WithField("duration", d.String())
}

func (l *Logger) clone() *Logger {
	fields := make(map[string]interface{}, len(l.fields)+2)
	for k, v := range l.fields {
		fields[k] = v
	}
	child := *l
	child.fields = fields
	return &child
}

// Debug logs at DEBUG with variadic key-value pairs.
func (l *Logger) Debug(msg string, kv ...interface{}) { l.write(DEBUG, msg, kv) }

// Info logs at INFO with variadic key-value pairs.
func (l *Logger) Info(msg string, kv ...interface{}) { l.write(INFO, msg, kv) }

// Warn logs at WARN with variadic key-value pairs.
func (l *Logger) Warn(msg string, kv ...interface{}) { l.write(WARN, msg, kv) }

// Error logs at ERROR with variadic key-value pairs.
func (l *Logger) Error(msg string, kv ...interface{}) { l.write(ERROR, msg, kv) }

// Fatal logs at FATAL and exits the process.
func (l *Logger) Fatal(msg string, kv ...interface{}) {
	l.write(FATAL, msg, kv)
	os.Exit(1)
}

// write assembles and emits one record. kv is interpreted as alternating
// key-value pairs; a trailing key without a value is dropped, and error
// values are flattened to their message so they serialize as strings.
func (l *Logger) write(level Level, msg string, kv []interface{}) {
	if level < l.level {
		return
	}

	rec := record{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		Component: l.component,
		TraceID:   l.traceID,
	}

	if len(l.fields) > 0 || len(kv) > 1 {
		rec.Fields = make(map[string]interface{}, len(l.fields)+len(kv)/2)
		for k, v := range l.fields {
			rec.Fields[k] = v
		}
		for i := 0; i+1 < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				continue
			}
			if err, isErr := kv[i+1].(error); isErr && err != nil {
				rec.Fields[key] = err.Error()
				continue
			}
			rec.Fields[key] = kv[i+1]
		}
	}

	if l.includeFile {
		if _, file, line, ok := runtime.Caller(2); ok {
			if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
				file = file[idx+1:]
			}
			rec.File = file
			rec.Line = line
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.jsonFormat {
		data, _ := json.Marshal(rec)
		fmt.Fprintln(l.output, string(data))
		return
	}
	l.writeText(rec)
}

// writeText is the human-readable format for local runs:
//
//	2025-06-01T12:00:00 [WARN ] [engine] message | key=value
func (l *Logger) writeText(rec record) {
	var b strings.Builder
	b.WriteString(rec.Timestamp[:19])
	fmt.Fprintf(&b, " [%-5s] ", rec.Level)
	if rec.Component != "" {
		fmt.Fprintf(&b, "[%s] ", rec.Component)
	}
	if rec.TraceID != "" {
		fmt.Fprintf(&b, "{%.8s} ", rec.TraceID)
	}
	b.WriteString(rec.Message)

	first := true
	for k, v := range rec.Fields {
		if first {
			b.WriteString(" | ")
			first = false
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, v)
	}
	if rec.File != "" {
		fmt.Fprintf(&b, " (%s:%d)", rec.File, rec.Line)
	}
	fmt.Fprintln(l.output, b.String())
}
