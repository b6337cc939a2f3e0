// handler.go — APIHandler собирает доменные handler'ы и объявляет
// маршруты API на chi-роутере.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// responseTracker отмечает, ушли ли клиенту первые байты ответа.
// Стримящие handler'ы по нему решают, можно ли ещё отдать типизованную
// ошибку или статус уже не изменить и остаётся только лог.
type responseTracker struct {
	http.ResponseWriter
	wrote bool
}

func (t *responseTracker) WriteHeader(code int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *responseTracker) Write(p []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(p)
}

// APIHandler — единая точка регистрации всех endpoints.
type APIHandler struct {
	files       *FilesHandler
	batch       *BatchHandler
	folders     *FoldersHandler
	settings    *SettingsHandler
	system      *SystemHandler
	maintenance *MaintenanceHandler
	health      *HealthHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	files *FilesHandler,
	batch *BatchHandler,
	folders *FoldersHandler,
	settings *SettingsHandler,
	system *SystemHandler,
	maintenance *MaintenanceHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		files:       files,
		batch:       batch,
		folders:     folders,
		settings:    settings,
		system:      system,
		maintenance: maintenance,
		health:      health,
	}
}

// Routes объявляет все маршруты сервиса на роутере.
func (h *APIHandler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/files", func(r chi.Router) {
			r.Get("/", h.files.ListFiles)
			r.Post("/upload", h.files.UploadFile)

			r.Route("/{file_id}", func(r chi.Router) {
				r.Get("/", h.files.GetFile)
				r.Delete("/", h.files.DeleteFile)
				r.Get("/download", h.files.DownloadFile)
				r.Get("/preview", h.files.PreviewFile)
				r.Get("/rendition", h.files.RenditionFile)
				r.Patch("/rename", h.files.RenameFile)
				r.Post("/restore", h.files.RestoreFile)
			})
		})

		r.Get("/search", h.files.SearchFiles)
		r.Get("/trash", h.files.ListTrash)

		r.Route("/batch", func(r chi.Router) {
			r.Post("/delete", h.batch.BatchDelete)
			r.Post("/restore", h.batch.BatchRestore)
			r.Post("/download", h.batch.BatchDownload)
		})

		r.Post("/folders", h.folders.CreateFolder)

		r.Get("/settings", h.settings.GetSettings)
		r.Put("/settings", h.settings.PutSettings)

		r.Get("/stats", h.system.GetStats)

		r.Post("/maintenance/reconcile", h.maintenance.Reconcile)
	})

	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)

	r.Method("GET", "/metrics", promhttp.Handler())
}
