package observability

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/fairyhunter13/interview-evaluator/internal/config"
)

// SetupLogger configures a JSON slog logger on stdout with environment fields.
func SetupLogger(cfg config.Config) *slog.Logger {
	return NewLogger(os.Stdout, cfg)
}

// NewLogger builds the service logger writing to w. Debug level in dev.
// Records carrying an "event" attribute are also counted in pipeline_events_total.
func NewLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{}
	if cfg.IsDev() {
		opts.Level = slog.LevelDebug
	}
	h := eventCounter{Handler: slog.NewJSONHandler(w, opts)}
	return slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
}

type eventCounter struct{ slog.Handler }

func (h eventCounter) Handle(ctx context.Context, r slog.Record) error {
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "event" {
			CountPipelineEvent(a.Value.String())
			return false
		}
		return true
	})
	return h.Handler.Handle(ctx, r)
}

func (h eventCounter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return eventCounter{Handler: h.Handler.WithAttrs(attrs)}
}

func (h eventCounter) WithGroup(name string) slog.Handler {
	return eventCounter{Handler: h.Handler.WithGroup(name)}
}
