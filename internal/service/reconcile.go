// reconcile.go — сервис сверки индекса метаданных с диском.
//
// Сверка сравнивает записи живого индекса и корзины с фактическим
// содержимым storage root и обнаруживает:
//   - missing_file: запись в индексе, файла на диске нет
//   - size_mismatch: размер файла не совпадает с индексом
//   - orphan_file: файл на диске без записи в индексах
//
// Сверка только отчитывается, ничего не исправляет: решение об
// удалении orphan-файлов или чистке битых записей остаётся за
// оператором. Запускается как горутина с периодическим тикером
// (LS_RECONCILE_INTERVAL) и по требованию через API.
package service

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
)

// Prometheus метрики сверки
var (
	// reconcileRunsTotal — количество запусков сверки.
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lanshare_reconcile_runs_total",
		Help: "Общее количество запусков сверки",
	})

	// reconcileIssuesTotal — количество обнаруженных проблем по типу.
	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanshare_reconcile_issues_total",
		Help: "Общее количество проблем, обнаруженных сверкой",
	}, []string{"type"})

	// reconcileDurationSeconds — длительность выполнения сверки.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lanshare_reconcile_duration_seconds",
		Help:    "Длительность выполнения сверки в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// Типы проблем, обнаруживаемых сверкой.
const (
	IssueMissingFile  = "missing_file"
	IssueSizeMismatch = "size_mismatch"
	IssueOrphanFile   = "orphan_file"
)

// ReconcileIssue — одна обнаруженная проблема.
type ReconcileIssue struct {
	// Type — тип проблемы
	Type string `json:"type"`
	// FileID — идентификатор записи индекса (пусто для orphan_file)
	FileID string `json:"fileId,omitempty"`
	// Path — относительный путь внутри storage root
	Path string `json:"path"`
	// Description — описание проблемы
	Description string `json:"description"`
}

// ReconcileReport — результат одного запуска сверки.
type ReconcileReport struct {
	StartedAt    time.Time        `json:"startedAt"`
	CompletedAt  time.Time        `json:"completedAt"`
	FilesChecked int              `json:"filesChecked"`
	Issues       []ReconcileIssue `json:"issues"`
}

// ReconcileService — сервис сверки хранилища.
type ReconcileService struct {
	store    *filestore.FileStore
	meta     *metastore.Store
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool       // сверка в процессе выполнения
	cancel    context.CancelFunc
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(
	store *filestore.FileStore,
	meta *metastore.Store,
	interval time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		store:    store,
		meta:     meta,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину сверки с периодическим тикером.
func (rs *ReconcileService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel

	go rs.run(rsCtx)

	rs.logger.Info("Сверка запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает фоновый процесс сверки.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
	}
	rs.logger.Info("Сверка остановлена")
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

// run — основной цикл фоновой горутины.
func (rs *ReconcileService) run(ctx context.Context) {
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Потокобезопасен: если сверка уже выполняется, возвращает nil, true.
//
// Возвращает:
//   - *ReconcileReport — отчёт о сверке
//   - bool — true если сверка уже выполнялась (skipped)
func (rs *ReconcileService) RunOnce() (*ReconcileReport, bool) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, true
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	rs.logger.Info("Сверка начата")

	issues, checked := rs.reconcile()

	completedAt := time.Now().UTC()
	duration := completedAt.Sub(startedAt)

	// Обновляем Prometheus метрики
	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())
	for _, issue := range issues {
		reconcileIssuesTotal.WithLabelValues(issue.Type).Inc()
	}

	rs.logger.Info("Сверка завершена",
		slog.Int("files_checked", checked),
		slog.Int("issues", len(issues)),
		slog.Duration("duration", duration),
	)

	return &ReconcileReport{
		StartedAt:    startedAt,
		CompletedAt:  completedAt,
		FilesChecked: checked,
		Issues:       issues,
	}, false
}

// reconcile сравнивает оба индекса с содержимым storage root.
func (rs *ReconcileService) reconcile() ([]ReconcileIssue, int) {
	issues := []ReconcileIssue{}

	// Все storedPath, которые числятся в индексах.
	// Записи корзины сохраняют свои файлы до sweep, поэтому их пути
	// тоже легитимны и не считаются orphan.
	known := make(map[string]string)
	for _, e := range rs.meta.Files() {
		known[e.StoredPath] = e.ID
	}
	for _, t := range rs.meta.Trash() {
		known[t.StoredPath] = t.ID
	}

	// 1. Проверяем записи живого индекса: наличие и размер файла
	checked := 0
	for _, e := range rs.meta.Files() {
		checked++
		if !rs.store.Exists(e.StoredPath) {
			issues = append(issues, ReconcileIssue{
				Type:        IssueMissingFile,
				FileID:      e.ID,
				Path:        e.StoredPath,
				Description: "Запись индекса без файла на диске",
			})
			continue
		}

		actualSize, err := rs.store.Size(e.StoredPath)
		if err != nil {
			rs.logger.Warn("Ошибка получения размера файла при сверке",
				slog.String("path", e.StoredPath),
				slog.String("error", err.Error()),
			)
			continue
		}
		if actualSize != e.Size {
			issues = append(issues, ReconcileIssue{
				Type:        IssueSizeMismatch,
				FileID:      e.ID,
				Path:        e.StoredPath,
				Description: "Размер файла на диске не совпадает с индексом",
			})
		}
	}

	// 2. Обходим storage root: файлы без записи в индексах (orphan_file)
	root := rs.store.Root()
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			rs.logger.Warn("Ошибка обхода storage root",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		// Пропускаем служебные и temp файлы
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if _, ok := known[rel]; !ok {
			issues = append(issues, ReconcileIssue{
				Type:        IssueOrphanFile,
				Path:        rel,
				Description: "Файл на диске без записи в индексах",
			})
		}
		return nil
	})
	if walkErr != nil {
		rs.logger.Error("Обход storage root прерван",
			slog.String("error", walkErr.Error()),
		)
	}

	return issues, checked
}
