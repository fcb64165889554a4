package logging

import (
	"context"
	"log/slog"
	"os"

	"redemption-service/internal/config"
	"redemption-service/internal/logcontext"

	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"
)

func GetLogger(cfg config.Logs) *slog.Logger {
	if cfg.URL == "" {
		return localLogger()
	}

	return remoteLogger(cfg.URL)
}

func localLogger() *slog.Logger {
	return slog.New(&ContextHandler{Handler: slog.NewJSONHandler(os.Stdout, nil)})
}

func remoteLogger(url string) *slog.Logger {
	lokiConfig, _ := loki.NewDefaultConfig(url)
	client, _ := loki.New(lokiConfig)

	return slog.New(slogloki.Option{
		Level:  slog.LevelInfo,
		Client: client,
		AttrFromContext: []func(ctx context.Context) []slog.Attr{
			logcontext.Attrs,
		},
	}.NewLokiHandler()).With("service", "redemption-service")
}

// ContextHandler decorates a slog.Handler with attrs carried by the context
// via logcontext.AppendCtx.
type ContextHandler struct {
	slog.Handler
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, attr := range logcontext.Attrs(ctx) {
		r.AddAttrs(attr)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
