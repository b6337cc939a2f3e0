// system.go — обработчик GET /api/v1/stats: количество файлов,
// суммарный размер, разбивка по классам, дисковое пространство.
package handlers

import (
	"net/http"

	"github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	store *filestore.FileStore
	meta  *metastore.Store
}

// NewSystemHandler создаёт обработчик системных endpoints.
func NewSystemHandler(store *filestore.FileStore, meta *metastore.Store) *SystemHandler {
	return &SystemHandler{
		store: store,
		meta:  meta,
	}
}

// classStat — статистика одного класса файлов.
type classStat struct {
	Count int   `json:"count"`
	Bytes int64 `json:"bytes"`
}

// GetStats обрабатывает GET /api/v1/stats.
func (h *SystemHandler) GetStats(w http.ResponseWriter, _ *http.Request) {
	files := h.meta.Files()

	var totalBytes int64
	byClass := map[string]*classStat{}
	for _, e := range files {
		totalBytes += e.Size
		class := string(model.Classify(e.MimeType, e.OriginalName))
		stat := byClass[class]
		if stat == nil {
			stat = &classStat{}
			byClass[class] = stat
		}
		stat.Count++
		stat.Bytes += e.Size
	}

	var trashBytes int64
	trash := h.meta.Trash()
	for _, e := range trash {
		trashBytes += e.Size
	}

	disk, err := h.store.DiskUsage()
	if err != nil {
		errors.InternalError(w, "Ошибка получения информации о диске")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":     config.Version,
		"files_total": len(files),
		"total_bytes": totalBytes,
		"by_class":    byClass,
		"trash": map[string]any{
			"count": len(trash),
			"bytes": trashBytes,
		},
		"disk": disk,
	})
}
