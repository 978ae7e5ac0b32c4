package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ramsey2004/homekraft-api/internal/platform/requestctx"
)

func TestRequestLoggerMiddlewareLogsCompletion(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ord_1"}`))
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req = req.WithContext(requestctx.WithLogger(req.Context(), logger))
	rec := httptest.NewRecorder()

	RequestLoggerMiddleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusCreated) {
		t.Fatalf("expected status field 201, got %v", fields["status"])
	}
	if fields["method"] != http.MethodPost {
		t.Fatalf("expected method field POST, got %v", fields["method"])
	}
}

func TestRequestLoggerMiddlewareWarnsOnClientError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req = req.WithContext(requestctx.WithLogger(req.Context(), logger))

	RequestLoggerMiddleware(handler).ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion log, got %d", len(entries))
	}
	if entries[0].Level != zap.WarnLevel {
		t.Fatalf("expected warn level for 4xx, got %s", entries[0].Level)
	}
}

func TestRecoveryMiddlewareWritesErrorResponse(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)

	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()

	RecoveryMiddleware(logger)(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatal("expected panic to be logged")
	}
}

func TestDecodeTraceHeader(t *testing.T) {
	traceID := "105445aa7843bc8bf206b12000100000"

	sc, ok := decodeTraceHeader(traceID + "/1;o=1")
	if !ok {
		t.Fatal("expected header to decode")
	}
	if sc.TraceID().String() != traceID {
		t.Fatalf("unexpected trace id %s", sc.TraceID())
	}
	if !sc.IsSampled() {
		t.Fatal("expected sampled flag")
	}

	// Decimal span IDs from older front ends decode too.
	if _, ok := decodeTraceHeader(traceID + "/18446744073709551615;o=0"); !ok {
		t.Fatal("expected decimal span id to decode")
	}

	for _, header := range []string{"", "short/1", traceID, traceID + "/"} {
		if _, ok := decodeTraceHeader(header); ok {
			t.Fatalf("expected %q to be rejected", header)
		}
	}
}
