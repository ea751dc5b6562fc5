package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"pgregory.net/rapid"
)

// =============================================================================
// Property: request id is propagated or generated
// =============================================================================

func testRequestContext_RequestIDEchoed(t *rapid.T) {
	incoming := rapid.OneOf(rapid.Just(""), rapid.StringMatching(`[a-z0-9-]{4,32}`)).Draw(t, "incoming")

	var seen string
	h := RequestContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationFromContext(r.Context()).RequestID
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set("X-Request-Id", incoming)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	got := rec.Header().Get("X-Request-Id")
	if got == "" || got != seen {
		t.Fatalf("request id mismatch: header=%q context=%q", got, seen)
	}
	if incoming != "" && got != incoming {
		t.Fatalf("incoming request id not preserved: got %q want %q", got, incoming)
	}
	if incoming == "" && !strings.HasPrefix(got, "req-") {
		t.Fatalf("generated request id should start with req-: %q", got)
	}
}

func TestRequestContext_RequestIDEchoed(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testRequestContext_RequestIDEchoed)
}

func TestRequestContext_TraceparentBecomesRequestID(t *testing.T) {
	t.Parallel()
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()

	RequestContextMiddleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != traceID {
		t.Fatalf("expected trace id as request id, got %q", got)
	}
}

func TestFrom_IncludesUserID(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	ctx := WithCorrelation(context.Background(), Correlation{RequestID: "req-1"})
	ctx = WithUserID(ctx, "user-42")
	From(ctx).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["request_id"] != "req-1" || entry["user_id"] != "user-42" {
		t.Fatalf("missing correlation fields: %v", entry)
	}
}

func TestRecoverMiddleware_Returns500(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	h := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "http_panic") {
		t.Fatalf("expected panic to be logged, got %q", buf.String())
	}
}

func TestMetricsMiddleware_CountsMatchedRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics-probe/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := MetricsMiddleware(mux)

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "GET /metrics-probe/{id}/{$}", "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics-probe/"+id+"/", nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Fatalf("expected 3 counted requests, got %v", got)
	}
}

func TestTraceIDFrom(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"00-4BF92F3577B34DA6A3CE929D0E0E4736-00f067aa0ba902b7-01": "4bf92f3577b34da6a3ce929d0e0e4736",
		"00-00000000000000000000000000000000-00f067aa0ba902b7-01": "",
		"00-4bf92f3577b34da6a3ce929d0e0e473g-00f067aa0ba902b7-01": "",
		"00-4bf92f3577b34da6-00f067aa0ba902b7-01":                  "",
		"garbage": "",
		"":        "",
	}
	for in, want := range cases {
		if got := traceIDFrom(in); got != want {
			t.Errorf("traceIDFrom(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAccessLog_ServerErrorsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	h := AccessLogMiddleware("http", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["level"] != "WARN" || entry["msg"] != "http_access" || entry["status"] != float64(503) {
		t.Fatalf("unexpected access entry: %v", entry)
	}
	if entry["service"] != Service {
		t.Fatalf("service attribute missing: %v", entry)
	}
}
