// Package obs is the process-wide structured logger plus per-request
// correlation (request id, trace id, user id) and HTTP metrics.
package obs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// Service is attached to every log line.
const Service = "yanote"

var (
	current atomic.Pointer[slog.Logger]
	level   = new(slog.LevelVar)
)

// Init installs the JSON logger on stderr. Later calls are no-ops.
func Init() {
	if current.Load() != nil {
		return
	}
	if l := newLogger(os.Stderr); current.CompareAndSwap(nil, l) {
		slog.SetDefault(l)
	}
}

// SetLevel changes the minimum level; the default is Info.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// SetOutputForTests sends logs to w until the returned restore is called.
func SetOutputForTests(w io.Writer) (restore func()) {
	l := newLogger(w)
	prev := current.Swap(l)
	slog.SetDefault(l)
	return func() {
		if prev == nil {
			prev = newLogger(os.Stderr)
		}
		current.Store(prev)
		slog.SetDefault(prev)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: utcTime,
	})).With("service", Service)
}

// utcTime prints timestamps as RFC3339Nano in UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
	}
	return a
}

func root() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	Init()
	return current.Load()
}

// Pkg returns the global logger tagged with pkg.
func Pkg(pkg string) *slog.Logger {
	return root().With("pkg", pkg)
}

// From returns the global logger carrying ctx's correlation ids.
func From(ctx context.Context) *slog.Logger {
	c := CorrelationFromContext(ctx)
	var attrs []any
	if c.RequestID != "" {
		attrs = append(attrs, "request_id", c.RequestID)
	}
	if c.TraceID != "" {
		attrs = append(attrs, "trace_id", c.TraceID)
	}
	if c.UserID != "" {
		attrs = append(attrs, "user_id", c.UserID)
	}
	if attrs == nil {
		return root()
	}
	return root().With(attrs...)
}

// Correlation ties log lines of one request together.
type Correlation struct {
	RequestID string
	TraceID   string
	UserID    string
}

type correlationKey struct{}

// CorrelationFromContext returns the ids stored in ctx, if any.
func CorrelationFromContext(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	c, _ := ctx.Value(correlationKey{}).(Correlation)
	return c
}

// WithCorrelation merges the non-empty fields of c into ctx.
func WithCorrelation(ctx context.Context, c Correlation) context.Context {
	merged := CorrelationFromContext(ctx)
	if c.RequestID != "" {
		merged.RequestID = c.RequestID
	}
	if c.TraceID != "" {
		merged.TraceID = c.TraceID
	}
	if c.UserID != "" {
		merged.UserID = c.UserID
	}
	return context.WithValue(ctx, correlationKey{}, merged)
}

// WithUserID records the signed-in user for later log lines.
func WithUserID(ctx context.Context, userID string) context.Context {
	return WithCorrelation(ctx, Correlation{UserID: userID})
}

func newRequestID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req-unknown"
	}
	return "req-" + hex.EncodeToString(b[:])
}
