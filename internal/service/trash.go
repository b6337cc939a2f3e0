// trash.go — сервис корзины: мягкое удаление, восстановление и
// фоновая очистка (sweeper).
//
// Мягкое удаление — чисто метаданная операция: запись переносится из
// живого индекса в корзину, физический файл остаётся на диске и
// удаляется только sweeper-ом после истечения окна восстановления.
// Sweeper запускается как горутина с периодическим тикером
// (LS_SWEEP_INTERVAL).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
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

// Prometheus метрики sweeper
var (
	// sweepRunsTotal — количество запусков очистки корзины.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lanshare_sweep_runs_total",
		Help: "Общее количество запусков очистки корзины",
	})

	// sweepDurationSeconds — длительность выполнения очистки.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lanshare_sweep_duration_seconds",
		Help:    "Длительность очистки корзины в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного запуска очистки корзины.
type SweepResult struct {
	// SweptCount — количество вычищенных записей корзины
	SweptCount int
	// Errors — количество ошибок при обработке записей
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// TrashService — сервис корзины.
type TrashService struct {
	cfg    *config.Config
	store  *filestore.FileStore
	meta   *metastore.Store
	logger *slog.Logger

	mu      sync.Mutex // защита от параллельного запуска RunOnce
	running bool       // флаг работы фонового процесса
	cancel  context.CancelFunc
}

// NewTrashService создаёт сервис корзины.
func NewTrashService(
	cfg *config.Config,
	store *filestore.FileStore,
	meta *metastore.Store,
	logger *slog.Logger,
) *TrashService {
	return &TrashService{
		cfg:    cfg,
		store:  store,
		meta:   meta,
		logger: logger.With(slog.String("component", "trash")),
	}
}

// SoftDelete переносит файл в корзину. Физический файл не затрагивается.
// Повторное удаление того же id возвращает NOT_FOUND: в живом индексе
// записи уже нет.
func (t *TrashService) SoftDelete(fileID string) (*model.TrashEntry, *OpError) {
	entry, err := t.meta.MoveToTrash(fileID, time.Now().UTC(), t.cfg.TrashWindow)
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			return nil, errNotFound(fmt.Sprintf("Файл %s не найден", fileID))
		}
		t.logger.Error("Ошибка переноса в корзину",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return nil, errStorage("Ошибка записи индексов")
	}

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	middleware.FilesTotal.WithLabelValues("files").Set(float64(t.meta.CountFiles()))
	middleware.FilesTotal.WithLabelValues("trash").Set(float64(t.meta.CountTrash()))

	t.logger.Info("Файл перенесён в корзину",
		slog.String("file_id", fileID),
		slog.String("filename", entry.OriginalName),
		slog.Time("expires_at", entry.ExpiresAt),
	)

	return entry, nil
}

// Restore возвращает файл из корзины в живой индекс.
// Для записи с истекшим окном восстановления возвращает TRASH_EXPIRED,
// даже если sweeper её ещё не вычистил.
func (t *TrashService) Restore(fileID string) (*model.FileEntry, *OpError) {
	entry, err := t.meta.RestoreFromTrash(fileID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, metastore.ErrNotFound):
			return nil, errNotFound(fmt.Sprintf("Файл %s не найден в корзине", fileID))
		case errors.Is(err, metastore.ErrExpired):
			return nil, &OpError{
				StatusCode: 410,
				Code:       apierrors.CodeTrashExpired,
				Message:    fmt.Sprintf("Окно восстановления файла %s истекло", fileID),
			}
		default:
			t.logger.Error("Ошибка восстановления из корзины",
				slog.String("file_id", fileID),
				slog.String("error", err.Error()),
			)
			return nil, errStorage("Ошибка записи индексов")
		}
	}

	middleware.OperationsTotal.WithLabelValues("restore", "success").Inc()
	middleware.FilesTotal.WithLabelValues("files").Set(float64(t.meta.CountFiles()))
	middleware.FilesTotal.WithLabelValues("trash").Set(float64(t.meta.CountTrash()))

	t.logger.Info("Файл восстановлен из корзины",
		slog.String("file_id", fileID),
		slog.String("filename", entry.OriginalName),
	)

	return entry, nil
}

// List возвращает содержимое корзины с остатком окна восстановления.
func (t *TrashService) List() []*model.TrashEntry {
	return t.meta.Trash()
}

// Start запускает фоновую горутину sweeper с периодическим тикером.
// Вызывается один раз при старте приложения.
func (t *TrashService) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.running = true

	go t.run(sweepCtx)

	t.logger.Info("Sweeper корзины запущен",
		slog.String("interval", t.cfg.SweepInterval.String()),
		slog.String("window", t.cfg.TrashWindow.String()),
		slog.Bool("delete_files", t.cfg.SweepDeleteFiles),
	)
}

// Stop останавливает фоновый процесс sweeper.
func (t *TrashService) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.running = false
	t.logger.Info("Sweeper корзины остановлен")
}

// run — основной цикл фоновой горутины.
func (t *TrashService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	t.RunOnce()

	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл очистки корзины.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
//
// Запись корзины с истекшим окном всегда удаляется из индекса;
// физический файл удаляется только при LS_SWEEP_DELETE_FILES=true,
// иначе он остаётся на диске и обнаруживается сверкой как orphan.
func (t *TrashService) RunOnce() *SweepResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}

	t.logger.Debug("Очистка корзины начата")

	now := time.Now().UTC()
	for _, entry := range t.meta.Trash() {
		if !entry.IsExpired(now) {
			continue
		}

		if t.cfg.SweepDeleteFiles {
			if err := t.store.Delete(entry.StoredPath); err != nil {
				t.logger.Error("Sweeper: ошибка удаления файла",
					slog.String("file_id", entry.ID),
					slog.String("stored_path", entry.StoredPath),
					slog.String("error", err.Error()),
				)
				result.Errors++
				continue
			}
		}

		if err := t.meta.RemoveTrash(entry.ID); err != nil {
			t.logger.Error("Sweeper: ошибка удаления записи корзины",
				slog.String("file_id", entry.ID),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		t.logger.Debug("Sweeper: запись корзины вычищена",
			slog.String("file_id", entry.ID),
			slog.String("filename", entry.OriginalName),
		)
		result.SweptCount++
	}

	result.Duration = time.Since(start)

	// Обновляем Prometheus метрики
	sweepRunsTotal.Inc()
	middleware.TrashSweptTotal.Add(float64(result.SweptCount))
	sweepDurationSeconds.Observe(result.Duration.Seconds())
	middleware.FilesTotal.WithLabelValues("trash").Set(float64(t.meta.CountTrash()))

	if result.SweptCount > 0 || result.Errors > 0 {
		t.logger.Info("Очистка корзины завершена",
			slog.Int("swept", result.SweptCount),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}
