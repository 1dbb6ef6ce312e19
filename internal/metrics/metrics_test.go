package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/orders/{id}", "404"))

	req := httptest.NewRequest(http.MethodGet, "/api/orders/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/orders/{id}", "404"))
	if after-before != 1 {
		t.Errorf("Expected one request recorded under the route pattern, got %v", after-before)
	}
}

func TestRecordOrderOperation(t *testing.T) {
	before := testutil.ToFloat64(orderOperations.WithLabelValues("mark_paid", "already_paid"))
	RecordOrderOperation("mark_paid", "already_paid")
	after := testutil.ToFloat64(orderOperations.WithLabelValues("mark_paid", "already_paid"))

	if after-before != 1 {
		t.Errorf("Expected counter to increase by 1, got %v", after-before)
	}
}
