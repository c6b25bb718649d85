// Package logger provides structured logging using Go 1.21's log/slog.
// It sets up a JSON handler with service-level context; when a log file is
// configured, output is tee'd through a size-rotated file.
package logger

import (
	"io"
	"log"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Init creates and returns a structured logger for the given service.
// If logFile is non-empty, JSON output also goes to a rotating file.
func Init(service string, level slog.Level, logFile string) *slog.Logger {
	var out io.Writer = os.Stdout
	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With(slog.String("service", service))

	// Set as default so log/slog.Info() etc. also use structured output.
	slog.SetDefault(logger)

	// Route the stdlib log package (used with [component] prefixes
	// throughout) to the same writer.
	log.SetOutput(out)

	return logger
}
