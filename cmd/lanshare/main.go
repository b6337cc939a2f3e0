// Точка входа LAN Share — сервиса обмена файлами в локальной сети.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/lanshare/internal/api/handlers"
	"github.com/bigkaa/lanshare/internal/api/middleware"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/server"
	"github.com/bigkaa/lanshare/internal/service"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/journal"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
	"github.com/bigkaa/lanshare/internal/storage/settings"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("LAN Share запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.String("meta_dir", cfg.MetaDir),
	)

	// --- Инициализация компонентов ---

	// 1. Настройки: upload_dir переопределяет корень хранилища
	settingsStore, err := settings.Open(cfg.MetaDir, logger)
	if err != nil {
		logger.Error("Ошибка открытия настроек", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dataRoot := settingsStore.GetDefault(settings.KeyUploadDir, cfg.DataDir)
	if dataRoot != cfg.DataDir {
		logger.Info("Корень хранилища переопределён настройками",
			slog.String("data_root", dataRoot),
		)
	}

	// 2. Файловое хранилище
	store, err := filestore.New(dataRoot)
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Индексы метаданных (живой и корзина) — открываются до разбора
	// журнала: recovery сверяет pending-транзакции с живым индексом
	meta, err := metastore.Open(cfg.MetaDir, logger)
	if err != nil {
		logger.Error("Ошибка открытия индексов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Индексы загружены",
		slog.Int("files", meta.CountFiles()),
		slog.Int("trash", meta.CountTrash()),
	)

	// 4. Журнал загрузок и разбор незавершённых транзакций
	jrnl, err := journal.New(cfg.JournalDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации журнала", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := service.RecoverUploads(jrnl, store, meta, logger); err != nil {
		logger.Error("Ошибка восстановления журнала", slog.String("error", err.Error()))
		os.Exit(1)
	}

	updateFileMetrics(meta)

	// 5. Сервисы
	uploadSvc := service.NewUploadService(cfg, jrnl, store, meta, logger)
	downloadSvc := service.NewDownloadService(store, meta, logger)
	manageSvc := service.NewManageService(store, meta, logger)
	querySvc := service.NewQueryService(meta, logger)
	trashSvc := service.NewTrashService(cfg, store, meta, logger)
	previewSvc := service.NewPreviewService(cfg, store, meta, logger)
	renditionSvc := service.NewRenditionService(store, meta, logger)
	batchSvc := service.NewBatchService(cfg, store, meta, trashSvc, logger)
	reconcileSvc := service.NewReconcileService(store, meta, cfg.ReconcileInterval, logger)

	// 6. Фоновые процессы
	ctx := context.Background()
	trashSvc.Start(ctx)
	reconcileSvc.Start(ctx)

	// 7. Handlers
	filesHandler := handlers.NewFilesHandler(
		cfg, uploadSvc, downloadSvc, manageSvc, querySvc, trashSvc, previewSvc, renditionSvc, logger,
	)
	batchHandler := handlers.NewBatchHandler(batchSvc, logger)
	foldersHandler := handlers.NewFoldersHandler(manageSvc)
	settingsHandler := handlers.NewSettingsHandler(settingsStore)
	systemHandler := handlers.NewSystemHandler(store, meta)
	maintenanceHandler := handlers.NewMaintenanceHandler(reconcileSvc)
	healthHandler := handlers.NewHealthHandler(dataRoot, cfg.JournalDir, meta)

	apiHandler := handlers.NewAPIHandler(
		filesHandler,
		batchHandler,
		foldersHandler,
		settingsHandler,
		systemHandler,
		maintenanceHandler,
		healthHandler,
	)

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	trashSvc.Stop()
	reconcileSvc.Stop()

	logger.Info("LAN Share остановлен")
}

// updateFileMetrics обновляет Prometheus метрики из индексов.
func updateFileMetrics(meta *metastore.Store) {
	middleware.FilesTotal.WithLabelValues("files").Set(float64(meta.CountFiles()))
	middleware.FilesTotal.WithLabelValues("trash").Set(float64(meta.CountTrash()))

	var total int64
	for _, e := range meta.Files() {
		total += e.Size
	}
	for _, e := range meta.Trash() {
		total += e.Size
	}
	middleware.StorageBytes.Set(float64(total))
}
