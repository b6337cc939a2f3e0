// upload.go — сервис приёма файлов с журналированием операций.
package service

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/api/middleware"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/journal"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
	"github.com/bigkaa/lanshare/internal/storage/safepath"
)

// Встроенная таблица mime не знает части бытовых расширений
// (.txt, .md и др.), а системная /etc/mime.types есть не везде.
func init() {
	for ext, mt := range map[string]string{
		".txt":  "text/plain",
		".log":  "text/plain",
		".md":   "text/markdown",
		".csv":  "text/csv",
		".doc":  "application/msword",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".xls":  "application/vnd.ms-excel",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		".ppt":  "application/vnd.ms-powerpoint",
		".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		".zip":  "application/zip",
		".gz":   "application/gzip",
		".mp3":  "audio/mpeg",
		".mp4":  "video/mp4",
		".mkv":  "video/x-matroska",
	} {
		_ = mime.AddExtensionType(ext, mt)
	}
}

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalName — оригинальное имя файла
	OriginalName string
	// Folder — относительный каталог назначения ("" — корень)
	Folder string
	// ContentType — MIME-тип из заголовка multipart part
	ContentType string
	// Size — заявленный размер файла (Content-Length part, -1 если неизвестен)
	Size int64
}

// UploadService — сервис приёма файлов.
type UploadService struct {
	cfg     *config.Config
	journal *journal.Journal
	store   *filestore.FileStore
	meta    *metastore.Store
	logger  *slog.Logger
}

// NewUploadService создаёт сервис приёма файлов.
func NewUploadService(
	cfg *config.Config,
	jrnl *journal.Journal,
	store *filestore.FileStore,
	meta *metastore.Store,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		cfg:     cfg,
		journal: jrnl,
		store:   store,
		meta:    meta,
		logger:  logger.With(slog.String("component", "upload_service")),
	}
}

// Upload принимает файл в хранилище.
//
// Поток:
//  1. Валидация имени и каталога назначения
//  2. Проверка расширения и заявленного размера
//  3. Journal Begin
//  4. SaveFile (streaming + SHA-256, с жёстким лимитом размера)
//  5. Добавление записи в живой индекс
//  6. Journal Commit
//
// При ошибке — cleanup (удаление недописанного файла) + Journal Rollback.
func (s *UploadService) Upload(params UploadParams) (*model.FileEntry, *OpError) {
	// 1. Валидируем имя файла
	name, err := safepath.CleanName(params.OriginalName)
	if err != nil {
		return nil, errInvalidName(fmt.Sprintf("Недопустимое имя файла %q", params.OriginalName))
	}

	// 2. Валидируем каталог назначения
	folder, err := safepath.CleanRelative(params.Folder)
	if err != nil {
		return nil, errInvalidPath(fmt.Sprintf("Недопустимый каталог %q", params.Folder))
	}

	// 3. Проверяем расширение
	ext := strings.ToLower(filepath.Ext(name))
	if !s.cfg.ExtensionAllowed(ext) {
		return nil, &OpError{
			StatusCode: 400,
			Code:       apierrors.CodeInvalidType,
			Message:    fmt.Sprintf("Файлы с расширением %q не принимаются", ext),
		}
	}

	// 4. Проверяем заявленный размер
	if params.Size > s.cfg.MaxFileSize {
		return nil, &OpError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", params.Size, s.cfg.MaxFileSize),
		}
	}

	// 5. Генерируем идентификатор и имя для хранения.
	// Префикс-идентификатор исключает коллизии имён в одном каталоге.
	fileID := uuid.New().String()
	storedName := fileID + "_" + safepath.StorageName(name)
	storedPath := path.Join(folder, storedName)
	if folder == "" {
		storedPath = storedName
	}

	// 6. Journal Begin
	jEntry, err := s.journal.Begin(journal.OpUpload, fileID, storedPath)
	if err != nil {
		s.logger.Error("Ошибка создания записи журнала", slog.String("error", err.Error()))
		return nil, errInternal("Внутренняя ошибка при создании транзакции")
	}

	// Cleanup при ошибке
	var savedResult *filestore.SaveResult
	rollback := func() {
		if savedResult != nil {
			_ = s.store.Delete(savedResult.StoredPath)
		}
		if rbErr := s.journal.Rollback(jEntry.TransactionID); rbErr != nil {
			s.logger.Error("Ошибка отката журнала",
				slog.String("tx_id", jEntry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
		}
	}

	// 7. SaveFile (streaming + SHA-256). Заявленному размеру не доверяем:
	// читаем maxFileSize+1 байт и проверяем фактический размер после записи.
	limited := io.LimitReader(params.Reader, s.cfg.MaxFileSize+1)
	savedResult, err = s.store.SaveFile(limited, storedPath)
	if err != nil {
		rollback()
		s.logger.Error("Ошибка сохранения файла",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return nil, errStorage("Ошибка сохранения файла на диск")
	}
	if savedResult.Size > s.cfg.MaxFileSize {
		rollback()
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, &OpError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Фактический размер файла превышает максимум %d байт", s.cfg.MaxFileSize),
		}
	}

	// 8. Формируем запись живого индекса
	entry := &model.FileEntry{
		ID:           fileID,
		StoredPath:   storedPath,
		OriginalName: name,
		Folder:       folder,
		Size:         savedResult.Size,
		MimeType:     resolveContentType(params.ContentType, name),
		Checksum:     savedResult.Checksum,
		CreatedAt:    time.Now().UTC(),
	}

	// 9. Добавляем в живой индекс
	if err := s.meta.PutFile(entry); err != nil {
		rollback()
		s.logger.Error("Ошибка записи в индекс",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return nil, errStorage("Ошибка записи метаданных")
	}

	// 10. Journal Commit
	if err := s.journal.Commit(jEntry.TransactionID); err != nil {
		s.logger.Error("Ошибка коммита журнала (данные сохранены)",
			slog.String("tx_id", jEntry.TransactionID),
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		// Данные уже записаны, коммит журнала — best effort
	}

	// 11. Обновляем метрики
	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.FilesTotal.WithLabelValues("files").Set(float64(s.meta.CountFiles()))

	s.logger.Info("Файл загружен",
		slog.String("file_id", fileID),
		slog.String("filename", name),
		slog.String("folder", folder),
		slog.Int64("size", savedResult.Size),
		slog.String("checksum", savedResult.Checksum),
	)

	return entry, nil
}

// resolveContentType определяет MIME-тип файла: заголовок multipart part,
// затем расширение имени, затем application/octet-stream.
func resolveContentType(contentType, name string) string {
	// Убираем параметры (charset и т.д.)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		if idx := strings.Index(byExt, ";"); idx != -1 {
			byExt = strings.TrimSpace(byExt[:idx])
		}
		return byExt
	}
	return "application/octet-stream"
}
