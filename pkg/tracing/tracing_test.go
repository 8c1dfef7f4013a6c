package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingProvider() (*Provider, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return NewProvider(tp, "charon-test"), rec
}

func TestHTTPMiddleware(t *testing.T) {
	p, rec := newRecordingProvider()

	handler := HTTPMiddleware(p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddEvent(r.Context(), "handled")
		w.WriteHeader(http.StatusInternalServerError)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/status/ping", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /status/ping", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	require.Len(t, span.Events(), 1)
	assert.Equal(t, "handled", span.Events()[0].Name)
	assert.NotEmpty(t, w.Header().Get("Traceparent"))
}

func TestStartSpanAndSetError(t *testing.T) {
	p, rec := newRecordingProvider()

	ctx, span := p.StartSpan(context.Background(), "compile")
	SetError(ctx, errors.New("no response for prompt `port`"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "no response for prompt `port`", spans[0].Status().Description)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestInjectHTTPHeaders(t *testing.T) {
	p, _ := newRecordingProvider()

	ctx, span := p.StartSpan(context.Background(), "client")
	defer span.End()

	req := httptest.NewRequest("GET", "http://charon/status/ping", nil).WithContext(ctx)
	InjectHTTPHeaders(req)
	assert.NotEmpty(t, req.Header.Get("Traceparent"))
}

func TestInitTracerDisabled(t *testing.T) {
	p, err := InitTracer(Config{ServiceName: "charon"})
	require.NoError(t, err)
	assert.NotNil(t, p.Tracer())
	require.NoError(t, p.Shutdown(context.Background()))
}
