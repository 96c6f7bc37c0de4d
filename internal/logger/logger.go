package logger

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// New builds the root logger. Unknown levels fall back to info.
func New(service, level string, pretty bool, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).
		Level(lvl).
		Hook(TraceHook{}).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// TraceHook adds trace_id and span_id to events logged with a context that carries a span.
type TraceHook struct{}

func (TraceHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	sc := trace.SpanContextFromContext(e.GetCtx())
	if !sc.IsValid() {
		return
	}
	e.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
}

// TraceMiddleware copies the span ids of the request into the request logger installed by hlog.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := trace.SpanContextFromContext(r.Context())
		if sc.IsValid() {
			l := zerolog.Ctx(r.Context())
			l.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
			})
		}
		next.ServeHTTP(w, r)
	})
}
