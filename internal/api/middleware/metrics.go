// metrics.go — Prometheus HTTP метрики сервиса.
// Регистрирует метрики: lanshare_http_requests_total,
// lanshare_http_request_duration_seconds. Бизнес-метрики (lanshare_files_total,
// lanshare_operations_total и др.) экспортируются для обновления из
// сервисного слоя.
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
			Name: "lanshare_http_requests_total",
			Help: "Общее количество HTTP-запросов",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lanshare_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// FilesTotal — текущее количество записей по индексам (gauge).
	FilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lanshare_files_total",
			Help: "Текущее количество записей в индексах метаданных",
		},
		[]string{"index"},
	)

	// StorageBytes — объём занятого дискового пространства (gauge).
	StorageBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lanshare_storage_bytes",
			Help: "Объём занятого дискового пространства в байтах",
		},
	)

	// OperationsTotal — общее количество файловых операций.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanshare_operations_total",
			Help: "Общее количество файловых операций",
		},
		[]string{"operation", "result"},
	)

	// TrashSweptTotal — количество записей корзины, вычищенных sweeper-ом.
	TrashSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanshare_trash_swept_total",
			Help: "Количество записей корзины, удалённых по истечении окна восстановления",
		},
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

// normalizePath заменяет UUID-сегменты пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/files/a1b2c3d4-e5f6-7890-abcd-ef1234567890 → /api/v1/files/{id}
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/files", "/api/v1/files/upload", "/api/v1/search",
		"/api/v1/trash", "/api/v1/folders", "/api/v1/settings",
		"/api/v1/stats", "/api/v1/maintenance/reconcile",
		"/api/v1/batch/delete", "/api/v1/batch/restore", "/api/v1/batch/download":
		return path
	}

	const filesPrefix = "/api/v1/files/"
	if isUUIDSegment(path, filesPrefix) {
		suffix := path[len(filesPrefix)+36:]
		switch suffix {
		case "", "/download", "/preview", "/rendition", "/rename", "/restore":
			return filesPrefix + "{id}" + suffix
		}
	}
	// Неизвестные пути с UUID в хвосте не нормализуем, но срезаем query
	if i := strings.IndexByte(path, '?'); i != -1 {
		return path[:i]
	}
	return path
}

// isUUIDSegment проверяет, начинается ли сегмент пути после prefix с UUID.
func isUUIDSegment(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) || len(path) < len(prefix)+36 {
		return false
	}
	segment := path[len(prefix) : len(prefix)+36]
	for i, c := range segment {
		if i == 8 || i == 13 || i == 18 || i == 23 {
			if c != '-' {
				return false
			}
		} else {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
				return false
			}
		}
	}
	return true
}
