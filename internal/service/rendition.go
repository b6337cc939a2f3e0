// rendition.go — сервис сжатых представлений файлов.
//
// Рендиция строится на лету и пишется прямо в ResponseWriter, на диске
// ничего не сохраняется и оригинал не меняется. Растровые изображения
// перекодируются в JPEG с заданным качеством; PDF пропускается через
// lossless-оптимизацию pdfcpu (параметр качества влияет только на
// растровые форматы). Остальные типы отклоняются с UNSUPPORTED_TYPE.
package service

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"time"

	// Регистрация декодеров для image.Decode
	_ "image/gif"
	_ "image/png"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/api/middleware"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
)

// Prometheus-метрики рендиций.
var (
	renditionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lanshare_rendition_duration_seconds",
		Help:    "Длительность построения сжатых представлений.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"kind"})
)

// Границы параметра качества рендиции.
const (
	QualityMin     = 1
	QualityMax     = 100
	QualityDefault = 75
)

// Rendition — описание построенной рендиции для HTTP-заголовков.
type Rendition struct {
	// ContentType — MIME-тип результата
	ContentType string
	// Filename — имя файла для Content-Disposition
	Filename string
}

// RenditionService — сервис сжатых представлений.
type RenditionService struct {
	store  *filestore.FileStore
	meta   *metastore.Store
	logger *slog.Logger
}

// NewRenditionService создаёт сервис сжатых представлений.
func NewRenditionService(
	store *filestore.FileStore,
	meta *metastore.Store,
	logger *slog.Logger,
) *RenditionService {
	return &RenditionService{
		store:  store,
		meta:   meta,
		logger: logger.With(slog.String("component", "rendition_service")),
	}
}

// Describe возвращает запись индекса и описание будущей рендиции.
// Вызывается handler-ом до записи заголовков.
func (r *RenditionService) Describe(fileID string) (*model.FileEntry, *Rendition, *OpError) {
	entry := r.meta.GetFile(fileID)
	if entry == nil {
		return nil, nil, errNotFound(fmt.Sprintf("Файл %s не найден", fileID))
	}

	switch {
	case isRasterImage(entry.MimeType):
		return entry, &Rendition{
			ContentType: "image/jpeg",
			Filename:    entry.OriginalName + ".compressed.jpg",
		}, nil
	case entry.MimeType == "application/pdf":
		return entry, &Rendition{
			ContentType: "application/pdf",
			Filename:    entry.OriginalName,
		}, nil
	default:
		return nil, nil, &OpError{
			StatusCode: 415,
			Code:       apierrors.CodeUnsupportedType,
			Message:    fmt.Sprintf("Сжатие для типа %s не поддерживается", entry.MimeType),
		}
	}
}

// Compress строит сжатое представление файла и пишет его в w.
// quality — качество JPEG в диапазоне 1-100 (для PDF игнорируется).
// Оригинальный файл не изменяется.
func (r *RenditionService) Compress(w io.Writer, entry *model.FileEntry, quality int) *OpError {
	if quality < QualityMin || quality > QualityMax {
		return &OpError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Качество %d вне диапазона %d-%d", quality, QualityMin, QualityMax),
		}
	}

	f, err := r.store.Open(entry.StoredPath)
	if err != nil {
		return errNotFound(fmt.Sprintf("Файл %s не найден на диске", entry.ID))
	}
	defer f.Close()

	start := time.Now()

	switch {
	case isRasterImage(entry.MimeType):
		if opErr := compressImage(w, f, quality); opErr != nil {
			middleware.OperationsTotal.WithLabelValues("rendition", "error").Inc()
			r.logger.Error("Ошибка перекодирования изображения",
				slog.String("file_id", entry.ID),
				slog.String("error", opErr.Message),
			)
			return opErr
		}
		renditionDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())

	case entry.MimeType == "application/pdf":
		if err := api.Optimize(f, w, pdfmodel.NewDefaultConfiguration()); err != nil {
			middleware.OperationsTotal.WithLabelValues("rendition", "error").Inc()
			r.logger.Error("Ошибка оптимизации PDF",
				slog.String("file_id", entry.ID),
				slog.String("error", err.Error()),
			)
			return errInternal("Ошибка обработки PDF")
		}
		renditionDuration.WithLabelValues("pdf").Observe(time.Since(start).Seconds())

	default:
		return &OpError{
			StatusCode: 415,
			Code:       apierrors.CodeUnsupportedType,
			Message:    fmt.Sprintf("Сжатие для типа %s не поддерживается", entry.MimeType),
		}
	}

	middleware.OperationsTotal.WithLabelValues("rendition", "success").Inc()

	r.logger.Debug("Рендиция построена",
		slog.String("file_id", entry.ID),
		slog.Int("quality", quality),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}

// compressImage декодирует растровое изображение и перекодирует его
// в JPEG с заданным качеством.
func compressImage(w io.Writer, r io.Reader, quality int) *OpError {
	img, _, err := image.Decode(r)
	if err != nil {
		return &OpError{
			StatusCode: 422,
			Code:       apierrors.CodeValidationError,
			Message:    "Файл не является корректным изображением",
		}
	}

	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return errInternal("Ошибка кодирования JPEG")
	}
	return nil
}

// isRasterImage определяет растровые форматы, поддерживаемые image.Decode.
func isRasterImage(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif":
		return true
	}
	return false
}
