package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	// DEBUG level for detailed debugging information
	DEBUG LogLevel = iota
	// INFO level for general informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

var (
	levelNames = map[LogLevel]string{
		DEBUG: "DEBUG",
		INFO:  "INFO",
		WARN:  "WARN",
		ERROR: "ERROR",
	}

	levelColors = map[LogLevel]string{
		DEBUG: "\033[36m", // Cyan
		INFO:  "\033[32m", // Green
		WARN:  "\033[33m", // Yellow
		ERROR: "\033[31m", // Red
	}
)

// Logger provides leveled logging scoped to one component of the call
// service (server, relay, twilio, elevenlabs, llm, tts, database, admin).
type Logger struct {
	mu           sync.RWMutex
	level        LogLevel
	enableColors bool
	component    string
	stdLogger    *log.Logger
}

var (
	initOnce sync.Once

	defaultLevel  = INFO
	defaultColors = true
	logDir        string

	componentMu sync.Mutex
	components  = map[string]*Logger{}
)

// Init reads logging configuration from the environment:
//   - LOG_LEVEL: DEBUG, INFO, WARN, ERROR (default: INFO)
//   - LOG_COLOR: enable colored output, true/false (default: true)
//   - LOG_DIR: when set, each component additionally logs to
//     <LOG_DIR>/<component>.log
func Init() {
	initOnce.Do(func() {
		switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
		case "DEBUG":
			defaultLevel = DEBUG
		case "WARN", "WARNING":
			defaultLevel = WARN
		case "ERROR":
			defaultLevel = ERROR
		}

		if v := os.Getenv("LOG_COLOR"); v == "false" || v == "0" {
			defaultColors = false
		}

		logDir = os.Getenv("LOG_DIR")
	})
}

// Component returns the shared logger for the named component, creating it
// on first use. Loggers for the same component name are reused so every
// package logging as e.g. "elevenlabs" writes to the same destination.
func Component(name string) *Logger {
	Init()

	componentMu.Lock()
	defer componentMu.Unlock()

	if l, ok := components[name]; ok {
		return l
	}

	out := io.Writer(os.Stdout)
	colors := defaultColors
	if logDir != "" {
		path := filepath.Join(logDir, name+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: cannot open %s: %v\n", path, err)
		} else {
			out = io.MultiWriter(os.Stdout, f)
			colors = false // no escape codes in files
		}
	}

	l := New(defaultLevel, out, colors, name)
	components[name] = l
	return l
}

// New creates a new Logger instance
func New(level LogLevel, output io.Writer, enableColors bool, component string) *Logger {
	return &Logger{
		level:        level,
		enableColors: enableColors,
		component:    component,
		stdLogger:    log.New(output, "", log.LstdFlags),
	}
}

// SetLevel changes the current log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// IsLevelEnabled checks if a specific log level is enabled
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	return level >= l.GetLevel()
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.IsLevelEnabled(level) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	levelName := levelNames[level]

	var output string
	if l.enableColors {
		color := levelColors[level]
		reset := "\033[0m"
		if l.component != "" {
			output = fmt.Sprintf("%s[%s]%s [%s] %s", color, levelName, reset, l.component, msg)
		} else {
			output = fmt.Sprintf("%s[%s]%s %s", color, levelName, reset, msg)
		}
	} else {
		if l.component != "" {
			output = fmt.Sprintf("[%s] [%s] %s", levelName, l.component, msg)
		} else {
			output = fmt.Sprintf("[%s] %s", levelName, msg)
		}
	}

	l.stdLogger.Output(3, output)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}
