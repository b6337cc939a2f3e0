// settings.go — обработчики GET/PUT /api/v1/settings.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/storage/settings"
)

// SettingsHandler — обработчик пользовательских настроек.
type SettingsHandler struct {
	store *settings.Store
}

// NewSettingsHandler создаёт обработчик настроек.
func NewSettingsHandler(store *settings.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// settingsBody — тело запроса и ответа настроек.
type settingsBody struct {
	UploadDir   string `json:"upload_dir"`
	DownloadDir string `json:"download_dir"`
}

// GetSettings обрабатывает GET /api/v1/settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, settingsBody{
		UploadDir:   h.store.GetDefault(settings.KeyUploadDir, ""),
		DownloadDir: h.store.GetDefault(settings.KeyDownloadDir, ""),
	})
}

// PutSettings обрабатывает PUT /api/v1/settings.
// Новый upload_dir применяется как корень хранилища при следующем
// старте сервиса; download_dir — подсказка клиентам.
func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	if body.UploadDir != "" {
		if err := h.store.Set(settings.KeyUploadDir, body.UploadDir); err != nil {
			errors.StorageError(w, "Ошибка сохранения настроек")
			return
		}
	}
	if body.DownloadDir != "" {
		if err := h.store.Set(settings.KeyDownloadDir, body.DownloadDir); err != nil {
			errors.StorageError(w, "Ошибка сохранения настроек")
			return
		}
	}

	h.GetSettings(w, r)
}
