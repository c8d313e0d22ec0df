package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveToolCall("filter_products", "ok", 5*time.Millisecond)

	body := scrape(t, metrics)
	if !strings.Contains(body, "stockpile_tool_calls_total") {
		t.Fatalf("expected body to contain stockpile_tool_calls_total, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "stockpile_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "stockpile_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestMetricsToolAndCacheCounters(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObserveToolCall("update_stock", "conflict", 2*time.Millisecond)
	metrics.ObserveToolCall("update_stock", "conflict", 2*time.Millisecond)
	metrics.CacheEvent("hit")

	body := scrape(t, metrics)
	if !strings.Contains(body, "stockpile_tool_calls_total{outcome=\"conflict\",tool=\"update_stock\"} 2") {
		t.Fatalf("expected tool call counter, got: %s", body)
	}
	if !strings.Contains(body, "stockpile_tool_call_duration_seconds_bucket{tool=\"update_stock\"") {
		t.Fatalf("expected tool duration histogram, got: %s", body)
	}
	if !strings.Contains(body, "stockpile_cache_events_total{event=\"hit\"} 1") {
		t.Fatalf("expected cache event counter, got: %s", body)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics

	metrics.ObserveToolCall("get_product", "ok", time.Millisecond)
	metrics.CacheEvent("miss")

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/anything", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected middleware passthrough, got %d", rr.Code)
	}
}
