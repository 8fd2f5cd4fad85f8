package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redactedKeys never reach the output with their value.
var redactedKeys = map[string]struct{}{
	"auth_token":    {},
	"api_key":       {},
	"api_secret":    {},
	"password":      {},
	"dsn":           {},
	"authorization": {},
	"token":         {},
}

// New returns a JSON logger on stdout tagged with service. local and dev
// environments log at debug level.
func New(appEnv, service string) *slog.Logger {
	return NewWithWriter(os.Stdout, appEnv, service)
}

func NewWithWriter(w io.Writer, appEnv, service string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: redact})
	l := slog.New(h)
	if service != "" {
		l = l.With("service", service)
	}
	return l
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}
