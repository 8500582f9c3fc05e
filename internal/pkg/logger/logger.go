package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

func (l Level) String() string { return levelNames[l] }

func (l Level) zap() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// ParseLevel maps a config string to a Level. Unknown values yield INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	}
	return INFO
}

// Logger provides structured JSON logging with optional PII redaction.
type Logger struct {
	mu        sync.RWMutex
	level     zap.AtomicLevel
	sugar     *zap.SugaredLogger
	redactPII bool
}

// New builds a Logger writing JSON lines to w.
func New(w io.Writer, level Level) *Logger {
	atom := zap.NewAtomicLevelAt(level.zap())
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), atom)
	return &Logger{
		level:     atom,
		sugar:     zap.New(core).Sugar(),
		redactPII: true,
	}
}

var defaultLogger = New(os.Stderr, INFO)

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) {
	defaultLogger.mu.RLock()
	defer defaultLogger.mu.RUnlock()
	defaultLogger.level.SetLevel(l.zap())
}

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.mu.Lock()
	defaultLogger.redactPII = r
	defaultLogger.mu.Unlock()
}

// SetOutput redirects the default logger, keeping its level and redaction.
func SetOutput(w io.Writer) {
	next := New(w, INFO)
	next.level.SetLevel(defaultLogger.level.Level())
	defaultLogger.mu.Lock()
	defaultLogger.sugar = next.sugar
	defaultLogger.level = next.level
	defaultLogger.mu.Unlock()
}

// Sync flushes buffered entries of the default logger.
func Sync() { _ = defaultLogger.sugar.Sync() }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.Debug(msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.Info(msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.Warn(msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.Error(msg, fields...) }

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	l.mu.RLock()
	sugar, redact := l.sugar, l.redactPII
	l.mu.RUnlock()

	if !sugar.Desugar().Core().Enabled(level.zap()) {
		return
	}

	// Parse key-value pairs from fields
	kv := make([]interface{}, 0, len(fields))
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fields[i+1]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		if redact {
			if s, ok := val.(string); ok {
				val = redactPIIValue(key, s)
			} else if _, ok := val.(fmt.Stringer); ok {
				val = redactPIIValue(key, fmt.Sprintf("%v", val))
			}
		}
		kv = append(kv, key, val)
	}

	switch level {
	case DEBUG:
		sugar.Debugw(msg, kv...)
	case WARN:
		sugar.Warnw(msg, kv...)
	case ERROR:
		sugar.Errorw(msg, kv...)
	default:
		sugar.Infow(msg, kv...)
	}
}

var phoneRegex = regexp.MustCompile(`\+[1-9][0-9]{7,14}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "phone") || strings.Contains(key, "recipient") {
		return RedactPhone(val)
	}
	// Redact any embedded E.164 numbers in generic fields
	return phoneRegex.ReplaceAllStringFunc(val, RedactPhone)
}
