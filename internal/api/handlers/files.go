// files.go — HTTP handlers файловых операций LAN Share.
// Upload, List, Search, Get, Rename, Download, Preview, Rendition,
// мягкое удаление и восстановление, листинг корзины.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/service"
)

// fileInfo — запись живого индекса в API-ответах (плюс вычисляемый класс).
type fileInfo struct {
	model.FileEntry
	Class string `json:"class"`
}

// trashInfo — запись корзины в API-ответах.
type trashInfo struct {
	model.TrashEntry
	Class string `json:"class"`
}

func toFileInfo(e *model.FileEntry) fileInfo {
	return fileInfo{
		FileEntry: *e,
		Class:     string(model.Classify(e.MimeType, e.OriginalName)),
	}
}

func toTrashInfo(e *model.TrashEntry) trashInfo {
	return trashInfo{
		TrashEntry: *e,
		Class:      string(model.Classify(e.MimeType, e.OriginalName)),
	}
}

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	cfg          *config.Config
	uploadSvc    *service.UploadService
	downloadSvc  *service.DownloadService
	manageSvc    *service.ManageService
	querySvc     *service.QueryService
	trashSvc     *service.TrashService
	previewSvc   *service.PreviewService
	renditionSvc *service.RenditionService
	logger       *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(
	cfg *config.Config,
	uploadSvc *service.UploadService,
	downloadSvc *service.DownloadService,
	manageSvc *service.ManageService,
	querySvc *service.QueryService,
	trashSvc *service.TrashService,
	previewSvc *service.PreviewService,
	renditionSvc *service.RenditionService,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		cfg:          cfg,
		uploadSvc:    uploadSvc,
		downloadSvc:  downloadSvc,
		manageSvc:    manageSvc,
		querySvc:     querySvc,
		trashSvc:     trashSvc,
		previewSvc:   previewSvc,
		renditionSvc: renditionSvc,
		logger:       logger.With(slog.String("component", "files_handler")),
	}
}

// UploadFile обрабатывает POST /api/v1/files/upload.
// Multipart form: file (обязательно), folder (опционально).
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	// Жёсткий потолок тела запроса: файл плюс запас на заголовки формы
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize+(1<<20))

	// Буфер формы в памяти; сам файл стримится из part
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			errors.FileTooLarge(w, fmt.Sprintf("Размер запроса превышает лимит %d байт", h.cfg.MaxFileSize))
			return
		}
		errors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	entry, opErr := h.uploadSvc.Upload(service.UploadParams{
		Reader:       file,
		OriginalName: header.Filename,
		Folder:       r.FormValue("folder"),
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
	})
	if opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}

	writeJSON(w, http.StatusCreated, toFileInfo(entry))
}

// ListFiles обрабатывает GET /api/v1/files.
// Query: class, folder, sort (name|date|size), order (asc|desc).
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	entries := h.querySvc.List(service.ListParams{
		Class:  q.Get("class"),
		Folder: q.Get("folder"),
		SortBy: q.Get("sort"),
		Order:  q.Get("order"),
	})

	files := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		files = append(files, toFileInfo(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files": files,
		"total": len(files),
	})
}

// SearchFiles обрабатывает GET /api/v1/search.
// Query: q (обязательно), class (опционально).
func (h *FilesHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		errors.ValidationError(w, "Параметр 'q' обязателен")
		return
	}

	hits := h.querySvc.Search(query, r.URL.Query().Get("class"))

	type searchResult struct {
		fileInfo
		Relevance float64 `json:"relevance"`
	}
	results := make([]searchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, searchResult{
			fileInfo:  toFileInfo(hit.Entry),
			Relevance: hit.Relevance,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
		"total":   len(results),
	})
}

// GetFile обрабатывает GET /api/v1/files/{file_id}.
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	entry, opErr := h.manageSvc.Get(chi.URLParam(r, "file_id"))
	if opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}
	writeJSON(w, http.StatusOK, toFileInfo(entry))
}

// RenameFile обрабатывает PATCH /api/v1/files/{file_id}/rename.
// Body: {"name": "новое имя"}.
func (h *FilesHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	entry, opErr := h.manageSvc.Rename(chi.URLParam(r, "file_id"), body.Name)
	if opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}
	writeJSON(w, http.StatusOK, toFileInfo(entry))
}

// DownloadFile обрабатывает GET /api/v1/files/{file_id}/download.
// Range requests и ETag обрабатываются внутри DownloadService.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	if opErr := h.downloadSvc.Serve(w, r, chi.URLParam(r, "file_id")); opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
	}
}

// PreviewFile обрабатывает GET /api/v1/files/{file_id}/preview.
// Изображения и PDF отдаются потоком inline, текстовые типы — JSON
// с усечённым содержимым, остальные — 415 UNSUPPORTED_PREVIEW.
func (h *FilesHandler) PreviewFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")

	kind, entry, opErr := h.previewSvc.Kind(fileID)
	if opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}

	switch kind {
	case service.KindText:
		preview, opErr := h.previewSvc.Text(entry)
		if opErr != nil {
			errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
			return
		}
		writeJSON(w, http.StatusOK, preview)

	case service.KindStream:
		file, _, opErr := h.downloadSvc.GetFileForServing(fileID)
		if opErr != nil {
			errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
			return
		}
		defer file.Close()

		w.Header().Set("Content-Type", entry.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", entry.OriginalName))
		w.Header().Set("Content-Length", strconv.FormatInt(entry.Size, 10))
		_, _ = io.Copy(w, file)
	}
}

// RenditionFile обрабатывает GET /api/v1/files/{file_id}/rendition.
// Query: quality (1-100, по умолчанию 75). Результат строится на лету
// и не сохраняется.
func (h *FilesHandler) RenditionFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")

	quality := service.QualityDefault
	if raw := r.URL.Query().Get("quality"); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil {
			errors.ValidationError(w, "Параметр quality должен быть целым числом")
			return
		}
		quality = q
	}
	if quality < service.QualityMin || quality > service.QualityMax {
		errors.ValidationError(w, fmt.Sprintf("Параметр quality должен быть от %d до %d",
			service.QualityMin, service.QualityMax))
		return
	}

	entry, rendition, opErr := h.renditionSvc.Describe(fileID)
	if opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}

	w.Header().Set("Content-Type", rendition.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", rendition.Filename))

	// Пока тело не начало отдаваться, ошибку ещё можно вернуть клиенту
	// типизованно; после первых байт статус не изменить — только лог
	tw := &responseTracker{ResponseWriter: w}
	if opErr := h.renditionSvc.Compress(tw, entry, quality); opErr != nil {
		if !tw.wrote {
			w.Header().Del("Content-Disposition")
			errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
			return
		}
		h.logger.Error("Ошибка построения рендиции после начала отдачи",
			slog.String("file_id", fileID),
			slog.String("error", opErr.Message),
		)
	}
}

// DeleteFile обрабатывает DELETE /api/v1/files/{file_id}.
// Мягкое удаление: запись переносится в корзину, файл остаётся на диске.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	trashEntry, opErr := h.trashSvc.SoftDelete(chi.URLParam(r, "file_id"))
	if opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}
	writeJSON(w, http.StatusOK, toTrashInfo(trashEntry))
}

// RestoreFile обрабатывает POST /api/v1/files/{file_id}/restore.
func (h *FilesHandler) RestoreFile(w http.ResponseWriter, r *http.Request) {
	entry, opErr := h.trashSvc.Restore(chi.URLParam(r, "file_id"))
	if opErr != nil {
		errors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}
	writeJSON(w, http.StatusOK, toFileInfo(entry))
}

// ListTrash обрабатывает GET /api/v1/trash.
func (h *FilesHandler) ListTrash(w http.ResponseWriter, _ *http.Request) {
	entries := h.trashSvc.List()

	items := make([]trashInfo, 0, len(entries))
	for _, e := range entries {
		items = append(items, toTrashInfo(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files": items,
		"total": len(items),
	})
}

// writeJSON сериализует ответ с заданным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
