package logcontext

import (
	"context"
	"log/slog"
)

type ctxKey string

const slogFields ctxKey = "slog_fields"

// AppendCtx returns a context carrying the given attrs in addition to any
// already present. Handlers aware of it emit the attrs with every record.
func AppendCtx(parent context.Context, attrs ...slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	if v, ok := parent.Value(slogFields).([]slog.Attr); ok {
		v = append(v, attrs...)
		return context.WithValue(parent, slogFields, v)
	}

	return context.WithValue(parent, slogFields, attrs)
}

// Attrs extracts the attrs previously appended to ctx, if any.
func Attrs(ctx context.Context) []slog.Attr {
	if v, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		return v
	}
	return nil
}
