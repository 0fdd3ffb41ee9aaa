package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	// Production selects the JSON handler; development logs text.
	Production bool
	Level      string
	Output     io.Writer
}

// New builds a logger whose handler enriches records from context Fields.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level, opts.Production)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if opts.Production {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}
	return slog.New(NewContextHandler(h)), nil
}

// Setup builds a logger and installs it as the slog default.
func Setup(opts Options) (*slog.Logger, error) {
	log, err := New(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return log, nil
}

// ParseLevel maps a level name to a slog level. An empty name is debug in development and info
// in production.
func ParseLevel(s string, production bool) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		if production {
			return slog.LevelInfo, nil
		}
		return slog.LevelDebug, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %q", s)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Component tags a logger with a component name.
func Component(log *slog.Logger, name string) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return log.With("component", name)
}

type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	f := FieldsFrom(ctx)
	if f.WorkspaceID != "" {
		r.AddAttrs(slog.String("workspace_id", f.WorkspaceID))
	}
	if f.ProjectID != "" {
		r.AddAttrs(slog.String("project_id", f.ProjectID))
	}
	if f.TaskID != "" {
		r.AddAttrs(slog.String("task_id", f.TaskID))
	}
	if f.Scope != "" {
		r.AddAttrs(slog.String("scope", f.Scope))
	}
	if f.Component != "" {
		r.AddAttrs(slog.String("component", f.Component))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
