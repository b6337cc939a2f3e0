// download.go — сервис скачивания файлов.
package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/bigkaa/lanshare/internal/api/middleware"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
)

// DownloadService — сервис скачивания файлов.
type DownloadService struct {
	store  *filestore.FileStore
	meta   *metastore.Store
	logger *slog.Logger
}

// NewDownloadService создаёт сервис скачивания файлов.
func NewDownloadService(
	store *filestore.FileStore,
	meta *metastore.Store,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		store:  store,
		meta:   meta,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// Serve отдаёт файл клиенту через http.ServeContent.
// Поддерживает Range requests (206 Partial Content) и ETag (If-None-Match).
// Файлы из корзины не отдаются — в живом индексе их нет.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, fileID string) *OpError {
	// 1. Ищем запись в живом индексе
	entry := s.meta.GetFile(fileID)
	if entry == nil {
		return errNotFound(fmt.Sprintf("Файл %s не найден", fileID))
	}

	// 2. Открываем файл
	file, err := s.store.Open(entry.StoredPath)
	if err != nil {
		s.logger.Error("Файл не найден на диске",
			slog.String("file_id", fileID),
			slog.String("stored_path", entry.StoredPath),
			slog.String("error", err.Error()),
		)
		return errNotFound(fmt.Sprintf("Файл %s не найден на диске", fileID))
	}
	defer file.Close()

	// 3. Получаем информацию о файле для http.ServeContent
	stat, err := file.Stat()
	if err != nil {
		s.logger.Error("Ошибка получения stat файла",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return errInternal("Ошибка чтения файла")
	}

	// 4. Устанавливаем заголовки
	w.Header().Set("Content-Type", entry.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", entry.OriginalName))
	w.Header().Set("ETag", fmt.Sprintf("\"%s\"", entry.Checksum))
	w.Header().Set("Accept-Ranges", "bytes")

	// 5. http.ServeContent автоматически обрабатывает:
	//    - Range requests (206 Partial Content)
	//    - If-None-Match (304 Not Modified через ETag)
	//    - If-Modified-Since
	//    - Content-Length
	http.ServeContent(w, r, entry.OriginalName, stat.ModTime(), file)

	// 6. Метрики
	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()

	s.logger.Debug("Файл скачан",
		slog.String("file_id", fileID),
		slog.String("filename", entry.OriginalName),
		slog.Int64("size", entry.Size),
	)

	return nil
}

// GetFileForServing возвращает открытый файл и запись индекса.
// Используется когда нужен контроль над отдачей (превью, рендеринг, ZIP).
func (s *DownloadService) GetFileForServing(fileID string) (*os.File, *model.FileEntry, *OpError) {
	entry := s.meta.GetFile(fileID)
	if entry == nil {
		return nil, nil, errNotFound(fmt.Sprintf("Файл %s не найден", fileID))
	}

	file, err := s.store.Open(entry.StoredPath)
	if err != nil {
		return nil, nil, errNotFound(fmt.Sprintf("Файл %s не найден на диске", fileID))
	}

	return file, entry, nil
}
