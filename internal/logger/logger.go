// Package logger provides the structured logger shared by the client, the
// dev backend and the command line.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Logger is the global logger instance.
var Logger *log.Logger

var (
	fileMu  sync.Mutex
	logFile *os.File
)

func init() {
	Logger = log.New(os.Stderr)
	Logger.SetTimeFormat("15:04:05")
	Logger.SetLevel(log.InfoLevel)
}

// Configure sets the level and destination. Level precedence is the argument,
// then GUARDIAN_LOG_LEVEL, then info. With discard set and no file, output is
// dropped so the terminal UI owns the screen.
func Configure(level string, file string, discard bool) error {
	if level == "" {
		level = strings.ToLower(os.Getenv("GUARDIAN_LOG_LEVEL"))
	}

	var output io.Writer = os.Stderr
	var opened *os.File
	switch {
	case file != "":
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return err
		}
		output, opened = f, f
	case discard:
		output = io.Discard
	}

	Logger = log.NewWithOptions(output, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           ParseLevel(level),
	})
	return swapFile(opened)
}

// Close releases the log file opened by Configure, if any, and points the
// logger back at stderr.
func Close() error {
	fileMu.Lock()
	open := logFile != nil
	fileMu.Unlock()
	if !open {
		return nil
	}
	Logger.SetOutput(os.Stderr)
	return swapFile(nil)
}

func swapFile(f *os.File) error {
	fileMu.Lock()
	prev := logFile
	logFile = f
	fileMu.Unlock()
	if prev == nil {
		return nil
	}
	return prev.Close()
}

// ParseLevel converts a level name to a log level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

// NewComponentLogger returns a logger that writes through the global logger
// with a component prefix, e.g. "engine" or "poller".
func NewComponentLogger(prefix string) *log.Logger {
	styles := log.DefaultStyles()
	styles.Prefix = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	styles.Keys["session_id"] = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styles.Values["error"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	l := Logger.WithPrefix(prefix)
	l.SetStyles(styles)
	return l
}

// CronLogger adapts a logger to the cron.Logger interface.
type CronLogger struct {
	L *log.Logger
}

func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.L.Debug(msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.L.Error(msg, append(keysAndValues, "error", err)...)
}
