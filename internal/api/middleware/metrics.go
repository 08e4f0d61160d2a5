// metrics.go — Prometheus HTTP метрики Event Module.
// Регистрирует метрики: em_http_requests_total, em_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "em_http_requests_total",
			Help: "Общее количество HTTP-запросов к Event Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "em_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Event Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// uuidLen — длина UUID в пути.
const uuidLen = 36

// normalizePath заменяет UUID-сегменты пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/events/a1b2c3d4-... → /api/v1/events/{id}
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/auth/register",
		"/api/v1/auth/login",
		"/api/v1/auth/refresh",
		"/api/v1/users/me",
		"/api/v1/users/me/password",
		"/api/v1/users/me/identities",
		"/api/v1/users/me/participations",
		"/api/v1/events",
		"/api/v1/gps/locations",
		"/api/v1/gps/latest":
		return path
	}

	if strings.HasPrefix(path, "/api/v1/auth/social/") {
		return "/api/v1/auth/social/{provider}"
	}
	if strings.HasPrefix(path, "/api/v1/auth/link/") {
		return "/api/v1/auth/link/{provider}"
	}
	if strings.HasPrefix(path, "/api/v1/users/me/identities/") {
		return "/api/v1/users/me/identities/{provider}"
	}

	// Динамические пути с UUID
	prefixes := []struct {
		prefix string
		result string
	}{
		{"/api/v1/events/", "/api/v1/events/{id}"},
		{"/api/v1/users/", "/api/v1/users/{id}"},
		{"/api/v1/gps/latest/", "/api/v1/gps/latest/{user_id}"},
	}

	for _, p := range prefixes {
		if len(path) > len(p.prefix) && path[:len(p.prefix)] == p.prefix {
			suffix := ""
			if len(path) > len(p.prefix)+uuidLen {
				suffix = path[len(p.prefix)+uuidLen:]
			}
			switch {
			case suffix == "/admins" || strings.HasPrefix(suffix, "/admins/"):
				return p.result + "/admins"
			case suffix == "/participants" || strings.HasPrefix(suffix, "/participants/"):
				return p.result + "/participants"
			case suffix == "/enroll":
				return p.result + "/enroll"
			case suffix == "/start":
				return p.result + "/start"
			case suffix == "/finish":
				return p.result + "/finish"
			case suffix == "/reset":
				return p.result + "/reset"
			case suffix == "/provider":
				return p.result + "/provider"
			default:
				return p.result
			}
		}
	}

	return path
}
