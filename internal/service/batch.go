// batch.go — сервис пакетных операций: массовое удаление,
// восстановление и скачивание ZIP-архивом.
//
// Пакетные операции не транзакционны: каждый файл обрабатывается
// независимо, ошибка по одному id не прерывает остальные. Результат
// содержит статус по каждому файлу в порядке запроса.
package service

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/api/middleware"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
)

// Prometheus-метрики пакетных операций.
var (
	batchFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanshare_batch_files_total",
		Help: "Количество файлов, обработанных пакетными операциями.",
	}, []string{"operation", "result"})

	zipBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lanshare_zip_bytes_total",
		Help: "Объём данных, отданных ZIP-архивами, в несжатых байтах.",
	})
)

// Статусы обработки одного файла в пакетной операции.
const (
	ItemOK    = "ok"
	ItemError = "error"
)

// ItemResult — результат обработки одного файла.
type ItemResult struct {
	// ID — идентификатор файла из запроса
	ID string `json:"id"`
	// Status — ok или error
	Status string `json:"status"`
	// Error — машиночитаемый код ошибки (только при status=error)
	Error string `json:"error,omitempty"`
}

// BatchResult — итог пакетной операции.
type BatchResult struct {
	// Items — результаты по каждому файлу в порядке запроса
	Items []ItemResult `json:"items"`
	// Succeeded — количество успешно обработанных файлов
	Succeeded int `json:"succeeded"`
	// Failed — количество ошибок
	Failed int `json:"failed"`
}

// BatchService — сервис пакетных операций.
type BatchService struct {
	cfg    *config.Config
	store  *filestore.FileStore
	meta   *metastore.Store
	trash  *TrashService
	logger *slog.Logger
}

// NewBatchService создаёт сервис пакетных операций.
func NewBatchService(
	cfg *config.Config,
	store *filestore.FileStore,
	meta *metastore.Store,
	trash *TrashService,
	logger *slog.Logger,
) *BatchService {
	return &BatchService{
		cfg:    cfg,
		store:  store,
		meta:   meta,
		trash:  trash,
		logger: logger.With(slog.String("component", "batch_service")),
	}
}

// validateIDs проверяет размер пакета.
func (b *BatchService) validateIDs(ids []string) *OpError {
	if len(ids) == 0 {
		return &OpError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Список файлов пуст",
		}
	}
	if len(ids) > b.cfg.BatchMaxFiles {
		return &OpError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Количество файлов %d превышает лимит %d", len(ids), b.cfg.BatchMaxFiles),
		}
	}
	return nil
}

// Delete переносит список файлов в корзину.
func (b *BatchService) Delete(ids []string) (*BatchResult, *OpError) {
	if opErr := b.validateIDs(ids); opErr != nil {
		return nil, opErr
	}

	result := &BatchResult{Items: make([]ItemResult, 0, len(ids))}
	for _, id := range ids {
		if _, opErr := b.trash.SoftDelete(id); opErr != nil {
			result.Items = append(result.Items, ItemResult{ID: id, Status: ItemError, Error: opErr.Code})
			result.Failed++
			batchFilesTotal.WithLabelValues("delete", "error").Inc()
			continue
		}
		result.Items = append(result.Items, ItemResult{ID: id, Status: ItemOK})
		result.Succeeded++
		batchFilesTotal.WithLabelValues("delete", "ok").Inc()
	}

	b.logger.Info("Пакетное удаление завершено",
		slog.Int("requested", len(ids)),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
	)

	return result, nil
}

// Restore восстанавливает список файлов из корзины.
func (b *BatchService) Restore(ids []string) (*BatchResult, *OpError) {
	if opErr := b.validateIDs(ids); opErr != nil {
		return nil, opErr
	}

	result := &BatchResult{Items: make([]ItemResult, 0, len(ids))}
	for _, id := range ids {
		if _, opErr := b.trash.Restore(id); opErr != nil {
			result.Items = append(result.Items, ItemResult{ID: id, Status: ItemError, Error: opErr.Code})
			result.Failed++
			batchFilesTotal.WithLabelValues("restore", "error").Inc()
			continue
		}
		result.Items = append(result.Items, ItemResult{ID: id, Status: ItemOK})
		result.Succeeded++
		batchFilesTotal.WithLabelValues("restore", "ok").Inc()
	}

	b.logger.Info("Пакетное восстановление завершено",
		slog.Int("requested", len(ids)),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
	)

	return result, nil
}

// ZipPlan — результат подготовки архива: записи к упаковке в порядке
// запроса и пропущенные id с кодами причин.
type ZipPlan struct {
	Entries []*model.FileEntry
	Skipped []ItemResult
}

// ResolveForZip подбирает файлы для упаковки в архив. Отсутствующие
// и нечитаемые id не прерывают запрос: они фиксируются в Skipped,
// остальные файлы уходят в архив в порядке запроса. Ошибкой всего
// запроса являются только пустой или слишком большой пакет и пакет,
// в котором не нашлось ни одного файла.
func (b *BatchService) ResolveForZip(ids []string) (*ZipPlan, *OpError) {
	if opErr := b.validateIDs(ids); opErr != nil {
		return nil, opErr
	}

	plan := &ZipPlan{Entries: make([]*model.FileEntry, 0, len(ids))}
	for _, id := range ids {
		entry := b.meta.GetFile(id)
		if entry == nil {
			plan.Skipped = append(plan.Skipped, ItemResult{ID: id, Status: ItemError, Error: apierrors.CodeNotFound})
			batchFilesTotal.WithLabelValues("download", "error").Inc()
			continue
		}
		if !b.store.Exists(entry.StoredPath) {
			plan.Skipped = append(plan.Skipped, ItemResult{ID: id, Status: ItemError, Error: apierrors.CodeStorageError})
			batchFilesTotal.WithLabelValues("download", "error").Inc()
			continue
		}
		plan.Entries = append(plan.Entries, entry)
	}

	if len(plan.Entries) == 0 {
		return nil, errNotFound("Ни один из запрошенных файлов не найден")
	}

	if len(plan.Skipped) > 0 {
		b.logger.Warn("Часть файлов пропущена при сборке архива",
			slog.Int("requested", len(ids)),
			slog.Int("skipped", len(plan.Skipped)),
		)
	}

	return plan, nil
}

// StreamZip пишет ZIP-архив с перечисленными файлами прямо в w.
// Файлы добавляются в порядке запроса под оригинальными именами;
// коллизии имён разрешаются суффиксом " (n)" перед расширением.
// Файл, исчезнувший с диска между подготовкой и упаковкой,
// пропускается с записью в лог; ошибка записи в w прерывает стрим.
func (b *BatchService) StreamZip(w io.Writer, entries []*model.FileEntry) error {
	start := time.Now()

	zw := zip.NewWriter(w)
	used := make(map[string]int, len(entries))
	var written int64

	for _, entry := range entries {
		f, err := b.store.Open(entry.StoredPath)
		if err != nil {
			b.logger.Warn("Файл недоступен при упаковке, пропущен",
				slog.String("file_id", entry.ID),
				slog.String("error", err.Error()),
			)
			batchFilesTotal.WithLabelValues("download", "error").Inc()
			continue
		}

		name := dedupName(used, entry.OriginalName)

		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: entry.CreatedAt,
		}
		part, err := zw.CreateHeader(header)
		if err != nil {
			f.Close()
			zw.Close()
			return fmt.Errorf("создание записи архива %s: %w", name, err)
		}

		n, err := io.Copy(part, f)
		f.Close()
		if err != nil {
			zw.Close()
			return fmt.Errorf("запись файла %s в архив: %w", entry.ID, err)
		}
		written += n
		batchFilesTotal.WithLabelValues("download", "ok").Inc()
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("закрытие архива: %w", err)
	}

	zipBytesTotal.Add(float64(written))
	middleware.OperationsTotal.WithLabelValues("batch_download", "success").Inc()

	b.logger.Info("ZIP-архив отдан",
		slog.Int("files", len(entries)),
		slog.Int64("bytes", written),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}

// dedupName возвращает уникальное имя внутри архива.
// Повторы получают суффикс " (n)" перед расширением.
func dedupName(used map[string]int, name string) string {
	key := strings.ToLower(name)
	n := used[key]
	used[key] = n + 1
	if n == 0 {
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}
