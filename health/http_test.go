package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serve(t *testing.T, agg *Aggregator, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	mux := http.NewServeMux()
	RegisterHandlers(mux, "kantodex", agg)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s: invalid JSON %q: %v", path, rec.Body.String(), err)
	}
	return rec, body
}

func TestLivenessHandler(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register(fixed("upstream", StatusUnhealthy))

	rec, body := serve(t, agg, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
	if body["status"] != "healthy" || body["service"] != "kantodex" {
		t.Errorf("body = %v", body)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		status Status
		code   int
	}{
		{StatusHealthy, http.StatusOK},
		{StatusDegraded, http.StatusOK},
		{StatusUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			agg := NewAggregator(time.Second)
			agg.Register(fixed("upstream", tt.status))

			rec, body := serve(t, agg, "/readyz")
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			if body["status"] != tt.status.String() {
				t.Errorf("status = %v, want %s", body["status"], tt.status)
			}
		})
	}
}

func TestDetailedHandler(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register(fixed("upstream", StatusHealthy))
	agg.Register(NewCacheChecker(sizer(3), 0))

	rec, body := serve(t, agg, "/health")
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body["service"] != "kantodex" || body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
	checks, ok := body["checks"].([]any)
	if !ok || len(checks) != 2 {
		t.Fatalf("checks = %v", body["checks"])
	}
	cacheCheck := checks[1].(map[string]any)
	if cacheCheck["name"] != "cache" {
		t.Errorf("second check = %v", cacheCheck)
	}
	if details := cacheCheck["details"].(map[string]any); details["entries"] != float64(3) {
		t.Errorf("cache details = %v", details)
	}
}

func TestHandlers_RejectNonGET(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux, "kantodex", NewAggregator(time.Second))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz code = %d, want 405", rec.Code)
	}
}
