// Package logger configures structured logging and carries the identity of
// the signed-in user into every record.
package logger

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fentz26/taskdeck/internal/config"
	"github.com/fentz26/taskdeck/internal/models"
)

// ParseLevel maps a configured level name onto a slog.Level. Unknown names
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a logger writing to out in the configured format and level,
// and installs it as the slog default.
func Setup(cfg config.LogConfig, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// Sink receives the identity of the signed-in user. It is a one-way
// notification: nothing reads a value back from it.
type Sink interface {
	SetUser(id models.Identity)
}

// Telemetry is a Sink that tags log records with the current user.
type Telemetry struct {
	mu   sync.RWMutex
	base *slog.Logger
	user *models.Identity
}

// NewTelemetry wraps base.
func NewTelemetry(base *slog.Logger) *Telemetry {
	if base == nil {
		base = slog.Default()
	}
	return &Telemetry{base: base}
}

// SetUser implements Sink.
func (t *Telemetry) SetUser(id models.Identity) {
	t.mu.Lock()
	t.user = &id
	t.mu.Unlock()
	t.Logger().Info("user identified")
}

// User returns the identity last reported, if any.
func (t *Telemetry) User() (models.Identity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.user == nil {
		return models.Identity{}, false
	}
	return *t.user, true
}

// Logger returns the base logger, tagged with the current user when known.
func (t *Telemetry) Logger() *slog.Logger {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.user == nil {
		return t.base
	}
	return t.base.With(slog.Group("usr",
		slog.String("id", t.user.ID),
		slog.String("name", t.user.Name),
		slog.String("username", t.user.Username),
	))
}
