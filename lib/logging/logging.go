package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/types"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
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

// ParseLogLevel converts a string to LogLevel, defaulting to INFO
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
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

// Fields is a set of key/value pairs attached to a log line
type Fields map[string]interface{}

// Logger is a leveled text logger writing to stdout, a rotated file or both
type Logger struct {
	level  LogLevel
	mu     sync.Mutex
	out    io.Writer
	file   *lumberjack.Logger
	fields Fields
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// InitLogger builds the global logger from the logging section of the config
func InitLogger(cfg types.LoggingConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}

	globalMu.Lock()
	old := globalLogger
	globalLogger = logger
	globalMu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// GetLogger returns the global logger, falling back to an INFO stdout logger
func GetLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewBasicLogger()
	}
	return globalLogger
}

// NewLogger creates a logger for the given config
func NewLogger(cfg types.LoggingConfig) (*Logger, error) {
	logger := &Logger{level: ParseLogLevel(cfg.Level)}

	output := strings.ToLower(cfg.Output)
	if output == "file" || output == "both" {
		dir := cfg.Path
		if dir == "" {
			dir = "./logs"
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logger.file = &lumberjack.Logger{
			Filename:   filepath.Join(dir, "gatekeeper.log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
		}
	}

	switch output {
	case "file":
		logger.out = logger.file
	case "both":
		logger.out = io.MultiWriter(os.Stdout, logger.file)
	default:
		logger.out = os.Stdout
	}

	return logger, nil
}

// NewBasicLogger creates an INFO logger on stdout
func NewBasicLogger() *Logger {
	return &Logger{level: INFO, out: os.Stdout}
}

// NewWriterLogger creates a logger that writes to w, mostly useful in tests
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	return &Logger{level: level, out: w}
}

// With returns a child logger that adds fields to every line
func (l *Logger) With(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, out: l.out, file: l.file, fields: merged}
}

func (l *Logger) format(level LogLevel, msg string, fields Fields) string {
	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("] ")
	b.WriteString(msg)

	all := l.fields
	if len(fields) > 0 {
		all = make(Fields, len(l.fields)+len(fields))
		for k, v := range l.fields {
			all[k] = v
		}
		for k, v := range fields {
			all[k] = v
		}
	}

	if len(all) > 0 {
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, all[k])
		}
	}

	return b.String()
}

func (l *Logger) log(level LogLevel, msg string, fields Fields) {
	if level < l.level {
		return
	}

	line := l.format(level, msg, fields)

	l.mu.Lock()
	fmt.Fprintln(l.out, line)
	l.mu.Unlock()

	if level == FATAL {
		os.Exit(1)
	}
}

func first(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

func (l *Logger) Debug(msg string, fields ...Fields) { l.log(DEBUG, msg, first(fields)) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.log(INFO, msg, first(fields)) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.log(WARN, msg, first(fields)) }
func (l *Logger) Error(msg string, fields ...Fields) { l.log(ERROR, msg, first(fields)) }

// Fatal logs and exits the process
func (l *Logger) Fatal(msg string, fields ...Fields) { l.log(FATAL, msg, first(fields)) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.Error(fmt.Sprintf(format, args...)) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.Fatal(fmt.Sprintf(format, args...)) }

// Close flushes and closes the rotated log file if there is one
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Global convenience functions

func Debug(msg string, fields ...Fields) { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...Fields)  { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...Fields)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...Fields) { GetLogger().Error(msg, fields...) }
func Fatal(msg string, fields ...Fields) { GetLogger().Fatal(msg, fields...) }

func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { GetLogger().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { GetLogger().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { GetLogger().Fatalf(format, args...) }
