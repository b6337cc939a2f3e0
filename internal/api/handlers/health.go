// health.go — обработчики health endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/lanshare/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// IndexReadinessChecker — интерфейс для проверки готовности индексов.
type IndexReadinessChecker interface {
	IsReady() bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// dataDir — корень хранилища (проверка записи)
	dataDir string
	// journalDir — директория журнала загрузок (проверка записи)
	journalDir string
	// meta — индексы для проверки готовности
	meta IndexReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(dataDir, journalDir string, meta IndexReadinessChecker) *HealthHandler {
	return &HealthHandler{
		version:    config.Version,
		dataDir:    dataDir,
		journalDir: journalDir,
		meta:       meta,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "lanshare",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: storage root, директория журнала, готовность индексов.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	fsCheck := h.checkWritable(h.dataDir, "Корень хранилища")
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	journalCheck := h.checkWritable(h.journalDir, "Директория журнала")
	if journalCheck["status"] != "ok" {
		if overallStatus != statusFail {
			overallStatus = "degraded"
		}
	}

	indexReady := true
	if h.meta != nil {
		indexReady = h.meta.IsReady()
	}
	if !indexReady {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "lanshare",
		"checks": map[string]any{
			"filesystem": fsCheck,
			"journal":    journalCheck,
			"index":      map[string]any{"ready": indexReady},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkWritable проверяет доступность директории на запись.
func (h *HealthHandler) checkWritable(dir, label string) map[string]any {
	if dir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": label + " недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
