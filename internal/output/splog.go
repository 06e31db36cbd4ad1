// Package output provides console output and structured logging.
package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"
)

// consoleHandler writes bare messages without timestamps or level prefixes
type consoleHandler struct {
	writer    io.Writer
	debugMode bool
	quiet     *bool
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	if level == slog.LevelDebug {
		return h.debugMode
	}
	return true
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if *h.quiet {
		return nil
	}
	_, err := fmt.Fprintln(h.writer, record.Message)
	return err
}

func (h *consoleHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *consoleHandler) WithGroup(_ string) slog.Handler {
	return h
}

// newRotatingLogger builds the file logger, reading rotation limits from
// BASALT_LOG_MAX_SIZE / BASALT_LOG_MAX_BACKUPS / BASALT_LOG_MAX_AGE
func newRotatingLogger(logFilePath string) *lumberjack.Logger {
	config := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    1,
		MaxBackups: 2,
		MaxAge:     30,
		Compress:   false,
	}

	if v := os.Getenv("BASALT_LOG_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxSize = n
		}
	}
	if v := os.Getenv("BASALT_LOG_MAX_BACKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			config.MaxBackups = n
		}
	}
	if v := os.Getenv("BASALT_LOG_MAX_AGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxAge = n
		}
	}

	return config
}

// multiHandler fans out records to every handler
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// Splog provides console output plus a rotated debug log file
type Splog struct {
	logger    *slog.Logger
	writer    *os.File
	logWriter io.WriteCloser
	quiet     bool
}

// NewSplog creates a console-only splog. Debug messages are enabled when
// the DEBUG environment variable is set.
func NewSplog() *Splog {
	splog, _ := NewSplogWithFile("")
	return splog
}

// NewSplogWithFile creates a splog that also writes everything to a
// rotated log file when logFilePath is non-empty
func NewSplogWithFile(logFilePath string) (*Splog, error) {
	splog := &Splog{writer: os.Stdout}

	handlers := []slog.Handler{&consoleHandler{
		writer:    splog.writer,
		debugMode: os.Getenv("DEBUG") != "",
		quiet:     &splog.quiet,
	}}

	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		rotating := newRotatingLogger(logFilePath)
		splog.logWriter = rotating

		handlers = append(handlers, slog.NewTextHandler(rotating, &slog.HandlerOptions{
			Level: slog.LevelDebug,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.Attr{Key: a.Key, Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05.000"))}
				}
				return a
			},
		}))
	}

	splog.logger = slog.New(&multiHandler{handlers: handlers})
	return splog, nil
}

// SetQuiet suppresses all console output when true
func (s *Splog) SetQuiet(quiet bool) {
	s.quiet = quiet
}

func (s *Splog) logMessage(level slog.Level, msg string) {
	s.logger.Log(context.Background(), level, msg)
}

// Info writes an info message
func (s *Splog) Info(format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	s.logMessage(slog.LevelInfo, msg)
}

// Warn writes a warning message
func (s *Splog) Warn(format string, args ...interface{}) {
	msg := "⚠️  " + format
	if len(args) > 0 {
		msg = fmt.Sprintf("⚠️  "+format, args...)
	}
	s.logMessage(slog.LevelWarn, msg)
}

// Error writes an error message
func (s *Splog) Error(format string, args ...interface{}) {
	msg := "❌ " + format
	if len(args) > 0 {
		msg = fmt.Sprintf("❌ "+format, args...)
	}
	s.logMessage(slog.LevelError, msg)
}

// Debug writes a debug message
func (s *Splog) Debug(format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	s.logMessage(slog.LevelDebug, msg)
}

// Tip writes a hint for the user's next step
func (s *Splog) Tip(format string, args ...interface{}) {
	msg := "💡 " + format
	if len(args) > 0 {
		msg = fmt.Sprintf("💡 "+format, args...)
	}
	s.logMessage(slog.LevelInfo, msg)
}

// Page writes raw content to the console
func (s *Splog) Page(content string) {
	_, _ = fmt.Fprint(s.writer, content)
}

// Newline writes a blank line
func (s *Splog) Newline() {
	_, _ = fmt.Fprintln(s.writer)
}

// Close closes the log file if one was opened
func (s *Splog) Close() error {
	if s.logWriter != nil {
		return s.logWriter.Close()
	}
	return nil
}

// LogFilePath returns where the debug log is written: BASALT_LOG_FILE if
// set, otherwise ~/.basalt/logs/basalt.log
func LogFilePath() string {
	if custom := os.Getenv("BASALT_LOG_FILE"); custom != "" {
		return custom
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "basalt.log"
	}
	return filepath.Join(homeDir, ".basalt", "logs", "basalt.log")
}
