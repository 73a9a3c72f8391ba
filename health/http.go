package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// ReportResponse is the JSON body of the detailed endpoint.
type ReportResponse struct {
	Status    string          `json:"status"`
	Service   string          `json:"service,omitempty"`
	Timestamp string          `json:"timestamp"`
	Checks    []CheckResponse `json:"checks"`
}

// CheckResponse is one check in a ReportResponse.
type CheckResponse struct {
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	Message    string         `json:"message,omitempty"`
	DurationMS float64        `json:"duration_ms"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NewReportResponse converts a Report for JSON output.
func NewReportResponse(service string, r Report) ReportResponse {
	resp := ReportResponse{
		Status:    r.Status.String(),
		Service:   service,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
		Checks:    make([]CheckResponse, 0, len(r.Checks)),
	}
	for _, c := range r.Checks {
		cr := CheckResponse{
			Name:       c.Name,
			Status:     c.Status.String(),
			Message:    c.Message,
			DurationMS: float64(c.Duration.Microseconds()) / 1000,
			Details:    c.Details,
		}
		if c.Error != nil {
			cr.Error = c.Error.Error()
		}
		resp.Checks = append(resp.Checks, cr)
	}
	return resp
}

func statusCode(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// LivenessHandler always answers 200 while the process runs.
func LivenessHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  StatusHealthy.String(),
			"service": service,
		})
	}
}

// ReadinessHandler answers 503 when any check is unhealthy. Degraded is
// still ready.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := agg.Run(r.Context())
		writeJSON(w, statusCode(report.Status), map[string]string{"status": report.Status.String()})
	}
}

// DetailedHandler returns the full report.
func DetailedHandler(service string, agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := agg.Run(r.Context())
		writeJSON(w, statusCode(report.Status), NewReportResponse(service, report))
	}
}

// RegisterHandlers mounts /healthz, /readyz and /health on mux.
func RegisterHandlers(mux *http.ServeMux, service string, agg *Aggregator) {
	mux.HandleFunc("GET /healthz", LivenessHandler(service))
	mux.HandleFunc("GET /readyz", ReadinessHandler(agg))
	mux.HandleFunc("GET /health", DetailedHandler(service, agg))
}
