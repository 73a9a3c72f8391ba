package server

import (
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/felixge/httpsnoop"

	"github.com/jonwraymond/kantodex/observe"
	"github.com/jonwraymond/kantodex/resilience"
)

// cors answers preflight requests and decorates responses for allowed
// origins. Requests from other origins pass through without CORS headers.
func (s *Server) cors(next http.Handler) http.Handler {
	if len(s.cfg.CORSOrigins) == 0 {
		return next
	}
	allowAll := slices.Contains(s.cfg.CORSOrigins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || (!allowAll && !slices.Contains(s.cfg.CORSOrigins, origin)) {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit sheds requests once the token bucket is empty.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			wait := s.limiter.RetryAfter()
			s.logger.Debug(r.Context(), "request shed",
				observe.F("path", r.URL.Path),
				observe.F("error", resilience.ErrRateLimitExceeded),
				observe.F("retry_after_ms", wait.Milliseconds()),
			)
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog logs one line per request. Infra paths log at debug.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		fields := []observe.Field{
			observe.F("method", r.Method),
			observe.F("path", r.URL.Path),
			observe.F("status", m.Code),
			observe.F("bytes", m.Written),
			observe.F("duration_ms", float64(m.Duration.Microseconds())/1000),
		}
		if q := r.URL.RawQuery; q != "" && strings.HasPrefix(r.URL.Path, "/api/") {
			fields = append(fields, observe.F("query", q))
		}

		switch {
		case isInfraPath(r.URL.Path):
			s.logger.Debug(r.Context(), "request", fields...)
		case m.Code >= http.StatusInternalServerError:
			s.logger.Warn(r.Context(), "request", fields...)
		default:
			s.logger.Info(r.Context(), "request", fields...)
		}
	})
}
