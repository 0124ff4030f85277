package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// NewLogHandler returns a slog.Handler that writes every record to next and
// mirrors it to OpenTelemetry through the otelslog bridge, under the
// instrumentation scope name. next decides which levels are enabled.
//
// Without options the bridge uses the global logger provider, so build the
// handler after [Setup].
func NewLogHandler(next slog.Handler, scope string, opts ...otelslog.Option) slog.Handler {
	return &mirrorHandler{next: next, otel: otelslog.NewHandler(scope, opts...)}
}

type mirrorHandler struct {
	next slog.Handler
	otel slog.Handler
}

func (h *mirrorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *mirrorHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	if h.otel.Enabled(ctx, r.Level) {
		if err := h.otel.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := h.next.Handle(ctx, r); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (h *mirrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &mirrorHandler{next: h.next.WithAttrs(attrs), otel: h.otel.WithAttrs(attrs)}
}

func (h *mirrorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &mirrorHandler{next: h.next.WithGroup(name), otel: h.otel.WithGroup(name)}
}
