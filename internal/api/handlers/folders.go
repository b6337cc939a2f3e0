// folders.go — обработчик POST /api/v1/folders.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/service"
)

// FoldersHandler — обработчик создания каталогов.
type FoldersHandler struct {
	manageSvc *service.ManageService
}

// NewFoldersHandler создаёт обработчик каталогов.
func NewFoldersHandler(manageSvc *service.ManageService) *FoldersHandler {
	return &FoldersHandler{manageSvc: manageSvc}
}

// CreateFolder обрабатывает POST /api/v1/folders.
// Body: {"path": "docs/2026"}. Создание существующего каталога — не ошибка.
func (h *FoldersHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	created, opErr := h.manageSvc.CreateFolder(body.Path)
	if opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"path": created})
}
