// batch.go — HTTP handlers пакетных операций: удаление, восстановление
// и скачивание набора файлов одним ZIP-архивом.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/service"
)

// BatchHandler — обработчик пакетных endpoints.
type BatchHandler struct {
	batchSvc *service.BatchService
	logger   *slog.Logger
}

// NewBatchHandler создаёт обработчик пакетных endpoints.
func NewBatchHandler(batchSvc *service.BatchService, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		batchSvc: batchSvc,
		logger:   logger.With(slog.String("component", "batch_handler")),
	}
}

// batchRequest — тело пакетного запроса.
type batchRequest struct {
	IDs []string `json:"ids"`
}

func decodeBatchRequest(w http.ResponseWriter, r *http.Request) (*batchRequest, bool) {
	var body batchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errors.ValidationError(w, "Некорректное тело запроса")
		return nil, false
	}
	return &body, true
}

// BatchDelete обрабатывает POST /api/v1/batch/delete.
// Body: {"ids": [...]}. Ошибки отдельных файлов не прерывают операцию.
func (h *BatchHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBatchRequest(w, r)
	if !ok {
		return
	}

	result, opErr := h.batchSvc.Delete(body.IDs)
	if opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// BatchRestore обрабатывает POST /api/v1/batch/restore.
func (h *BatchHandler) BatchRestore(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBatchRequest(w, r)
	if !ok {
		return
	}

	result, opErr := h.batchSvc.Restore(body.IDs)
	if opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// BatchDownload обрабатывает POST /api/v1/batch/download.
// Отсутствующие или нечитаемые id не прерывают запрос: их список
// уходит клиенту заголовком X-Skipped-Ids, остальные файлы
// упаковываются в архив в порядке запроса.
func (h *BatchHandler) BatchDownload(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBatchRequest(w, r)
	if !ok {
		return
	}

	plan, opErr := h.batchSvc.ResolveForZip(body.IDs)
	if opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}

	if len(plan.Skipped) > 0 {
		skipped := make([]string, len(plan.Skipped))
		for i, item := range plan.Skipped {
			skipped[i] = item.ID
		}
		w.Header().Set("X-Skipped-Ids", strings.Join(skipped, ","))
	}

	filename := "lanshare-" + time.Now().UTC().Format("20060102-150405") + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")

	// Архив стримится без буферизации; после первых байт статус
	// не изменить — ошибка уходит в лог
	tw := &responseTracker{ResponseWriter: w}
	if err := h.batchSvc.StreamZip(tw, plan.Entries); err != nil {
		if !tw.wrote {
			w.Header().Del("Content-Disposition")
			errors.StorageError(w, "Ошибка сборки архива")
			return
		}
		h.logger.Error("Ошибка стриминга архива после начала отдачи",
			slog.String("error", err.Error()),
		)
	}
}
