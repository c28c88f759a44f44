package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testFailureHeader = "X-Test-Failure"

func newTestRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(Middleware(testFailureHeader))
	return r
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, http.NoBody))
	return rr
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := newTestRouter()
	r.Get("/passages/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	counter := HTTPRequestsTotal.WithLabelValues("GET", "/passages/{id}", "200")
	before := testutil.ToFloat64(counter)

	serve(r, "GET", "/passages/1")
	serve(r, "GET", "/passages/2")

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("requests for /passages/{id}: got %v, want 2", got)
	}
	if testutil.CollectAndCount(HTTPRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := newTestRouter()
	r.Get("/implicit", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/bad", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Get("/down", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	tests := []struct {
		path   string
		status string
	}{
		{"/implicit", "200"},
		{"/bad", "400"},
		{"/down", "503"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			counter := HTTPRequestsTotal.WithLabelValues("GET", tc.path, tc.status)
			before := testutil.ToFloat64(counter)

			serve(r, "GET", tc.path)

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("requests for %s with status %s: got %v, want 1", tc.path, tc.status, got)
			}
		})
	}
}

func TestMiddleware_CountsFailedAnswers(t *testing.T) {
	r := newTestRouter()
	r.Post("/ask", func(w http.ResponseWriter, req *http.Request) {
		if kind := req.URL.Query().Get("fail"); kind != "" {
			w.Header().Set(testFailureHeader, kind)
		}
		w.WriteHeader(http.StatusOK)
	})

	failed := FailedAnswersTotal.WithLabelValues("/ask", "generation_failed")
	before := testutil.ToFloat64(failed)

	serve(r, "POST", "/ask")
	serve(r, "POST", "/ask?fail=generation_failed")

	if got := testutil.ToFloat64(failed) - before; got != 1 {
		t.Errorf("failed answers: got %v, want 1", got)
	}
}

func TestMiddleware_NoFailureHeader(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware(""))
	r.Get("/plain", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(testFailureHeader, "internal_error")
	})

	failed := FailedAnswersTotal.WithLabelValues("/plain", "internal_error")
	before := testutil.ToFloat64(failed)

	serve(r, "GET", "/plain")

	if got := testutil.ToFloat64(failed) - before; got != 0 {
		t.Errorf("failed answers counted with counting disabled: %v", got)
	}
}

func TestMiddleware_InFlight(t *testing.T) {
	r := newTestRouter()
	base := testutil.ToFloat64(HTTPInFlight)

	var during float64
	r.Get("/slow", func(http.ResponseWriter, *http.Request) {
		during = testutil.ToFloat64(HTTPInFlight)
	})

	serve(r, "GET", "/slow")

	if during != base+1 {
		t.Errorf("in flight during request: got %v, want %v", during, base+1)
	}
	if after := testutil.ToFloat64(HTTPInFlight); after != base {
		t.Errorf("in flight after request: got %v, want %v", after, base)
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	r := newTestRouter()
	r.Get("/api/v1/health", func(http.ResponseWriter, *http.Request) {})

	counter := HTTPRequestsTotal.WithLabelValues("GET", unknownRoute, "404")
	before := testutil.ToFloat64(counter)

	serve(r, "GET", "/nope")

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("unmatched route under %q: got %v, want 1", unknownRoute, got)
	}
}

func TestRouteLabel_NoRouteContext(t *testing.T) {
	req := httptest.NewRequest("GET", "/raw", http.NoBody)
	if got := routeLabel(req); got != unknownRoute {
		t.Errorf("routeLabel without chi context = %q, want %q", got, unknownRoute)
	}
}

func TestObserveGeneration(t *testing.T) {
	ObserveGeneration("bedrock", "m", "success", 0.5, 12, 30)

	if got := testutil.ToFloat64(GenerationRequestsTotal.WithLabelValues("bedrock", "m", "success")); got != 1 {
		t.Errorf("requests = %v", got)
	}
	if got := testutil.ToFloat64(GenerationTokensTotal.WithLabelValues("bedrock", "m", "completion")); got != 30 {
		t.Errorf("completion tokens = %v", got)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()
	RegisterEmbeddingMetrics()
	RegisterEmbeddingMetrics()
	RegisterGenerationMetrics()
	RegisterGenerationMetrics()
	RegisterPipelineMetrics()
	RegisterPipelineMetrics()
}
