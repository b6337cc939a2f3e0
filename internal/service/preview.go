// preview.go — сервис предпросмотра файлов.
//
// Изображения и PDF отдаются потоком с оригинальным MIME-типом.
// Текстовые файлы возвращаются JSON-ответом с первыми PreviewMaxBytes
// байтами содержимого; усечённые превью помечаются флагом truncated.
// Текстовые превью кэшируются в LRU с TTL: содержимое файла под
// данным storedPath неизменяемо, инвалидация по записи не нужна.
package service

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
)

// Prometheus-метрики кэша превью.
var (
	previewCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lanshare_preview_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш текстовых превью.",
	})
	previewCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lanshare_preview_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша текстовых превью.",
	})
)

// PreviewKind — способ отдачи превью.
type PreviewKind string

const (
	// KindStream — файл отдаётся потоком как есть (изображения, PDF)
	KindStream PreviewKind = "stream"
	// KindText — усечённое текстовое содержимое JSON-ответом
	KindText PreviewKind = "text"
)

// TextPreview — текстовое превью файла.
type TextPreview struct {
	// Content — первые PreviewMaxBytes байт файла
	Content string `json:"content"`
	// Truncated — было ли содержимое усечено
	Truncated bool `json:"truncated"`
	// MimeType — MIME-тип исходного файла
	MimeType string `json:"mimeType"`
}

// PreviewService — сервис предпросмотра файлов.
type PreviewService struct {
	cfg    *config.Config
	store  *filestore.FileStore
	meta   *metastore.Store
	cache  *expirable.LRU[string, *TextPreview]
	logger *slog.Logger
}

// NewPreviewService создаёт сервис предпросмотра с LRU-кэшем текстовых превью.
func NewPreviewService(
	cfg *config.Config,
	store *filestore.FileStore,
	meta *metastore.Store,
	logger *slog.Logger,
) *PreviewService {
	return &PreviewService{
		cfg:    cfg,
		store:  store,
		meta:   meta,
		cache:  expirable.NewLRU[string, *TextPreview](cfg.PreviewCacheSize, nil, cfg.PreviewCacheTTL),
		logger: logger.With(slog.String("component", "preview_service")),
	}
}

// Kind определяет способ отдачи превью для файла.
// Для неподдерживаемых типов возвращает UNSUPPORTED_PREVIEW.
func (p *PreviewService) Kind(fileID string) (PreviewKind, *model.FileEntry, *OpError) {
	entry := p.meta.GetFile(fileID)
	if entry == nil {
		return "", nil, errNotFound(fmt.Sprintf("Файл %s не найден", fileID))
	}

	if !model.IsPreviewable(entry.MimeType) {
		return "", nil, &OpError{
			StatusCode: 415,
			Code:       apierrors.CodeUnsupportedPreview,
			Message:    fmt.Sprintf("Предпросмотр для типа %s не поддерживается", entry.MimeType),
		}
	}

	if isTextual(entry.MimeType) {
		return KindText, entry, nil
	}
	return KindStream, entry, nil
}

// Text возвращает текстовое превью файла, при необходимости усечённое
// до PreviewMaxBytes. Результат кэшируется.
func (p *PreviewService) Text(entry *model.FileEntry) (*TextPreview, *OpError) {
	if cached, ok := p.cache.Get(entry.ID); ok {
		previewCacheHitsTotal.Inc()
		return cached, nil
	}
	previewCacheMissesTotal.Inc()

	start := time.Now()

	f, err := p.store.Open(entry.StoredPath)
	if err != nil {
		return nil, errNotFound(fmt.Sprintf("Файл %s не найден на диске", entry.ID))
	}
	defer f.Close()

	// Читаем на байт больше лимита, чтобы отличить усечение от точного размера
	data, err := io.ReadAll(io.LimitReader(f, p.cfg.PreviewMaxBytes+1))
	if err != nil {
		p.logger.Error("Ошибка чтения файла для превью",
			slog.String("file_id", entry.ID),
			slog.String("error", err.Error()),
		)
		return nil, errStorage("Ошибка чтения файла")
	}

	truncated := int64(len(data)) > p.cfg.PreviewMaxBytes
	if truncated {
		data = data[:p.cfg.PreviewMaxBytes]
		// Не рвём UTF-8 последовательность на границе усечения
		for i := 0; i < utf8.UTFMax-1 && len(data) > 0; i++ {
			r, size := utf8.DecodeLastRune(data)
			if r != utf8.RuneError || size != 1 {
				break
			}
			data = data[:len(data)-1]
		}
	}

	preview := &TextPreview{
		Content:   string(data),
		Truncated: truncated,
		MimeType:  entry.MimeType,
	}
	p.cache.Add(entry.ID, preview)

	p.logger.Debug("Текстовое превью построено",
		slog.String("file_id", entry.ID),
		slog.Int("bytes", len(data)),
		slog.Bool("truncated", truncated),
		slog.Duration("duration", time.Since(start)),
	)

	return preview, nil
}

// isTextual определяет, отдаётся ли превью типа текстом.
func isTextual(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || mimeType == "application/json"
}
