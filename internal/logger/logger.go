// Package logger configures the global zerolog logger and carries
// request and room scoped loggers.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

const (
	milliTimeFormat = "2006-01-02T15:04:05.000Z07:00"
	callerWidth     = 30
	maxBodyLog      = 1000
)

// Init sets up the global logger from LOG_LEVEL, LOG_FILE and the DEV flags.
func Init() {
	zerolog.TimeFieldFormat = milliTimeFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	zerolog.CallerMarshalFunc = shortCaller

	level, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: milliTimeFormat,
		NoColor:    !isDevelopmentMode(),
	}
	if path := os.Getenv("LOG_FILE"); path != "" {
		if f, ferr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); ferr == nil {
			out = io.MultiWriter(out, f)
		}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()

	log.Info().Str("level", level.String()).Bool("dev", isDevelopmentMode()).Msg("Logger initialized")
}

// shortCaller renders file:line padded or trimmed to a fixed width.
func shortCaller(_ uintptr, file string, line int) string {
	s := fmt.Sprintf("%s:%d", filepath.Base(file), line)
	if len(s) >= callerWidth {
		return s[len(s)-callerWidth:]
	}
	return s + strings.Repeat(" ", callerWidth-len(s))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func isDevelopmentMode() bool {
	for _, k := range []string{"DEV", "DEV_MODE", "DEVELOPMENT"} {
		if os.Getenv(k) == "true" {
			return true
		}
	}
	return false
}

// Get returns the global logger instance.
func Get() zerolog.Logger {
	return log.Logger
}

// ForRoom returns the global logger tagged with a room id.
func ForRoom(roomID string) zerolog.Logger {
	return log.Logger.With().Str("roomId", roomID).Logger()
}

// NewRequestID returns a short random id for correlating a request's log lines.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// WithRequestID returns a new context with the given request ID stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request ID from context, or empty string.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ForRequest returns a logger enriched with the request ID from context.
func ForRequest(ctx context.Context) zerolog.Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return log.Logger
	}
	return log.Logger.With().Str("requestId", id).Logger()
}

// LogBody logs a request or response body at debug level under key,
// truncated to a fixed size.
func LogBody(l zerolog.Logger, key string, body []byte) {
	if len(body) == 0 {
		return
	}
	ev := l.Debug()
	if len(body) > maxBodyLog {
		body = body[:maxBodyLog]
		ev = ev.Bool("truncated", true)
	}
	ev.Str(key, string(body)).Msg("Body")
}
