package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/journal"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
)

// testEnv — общий набор зависимостей сервисных тестов.
type testEnv struct {
	cfg     *config.Config
	store   *filestore.FileStore
	meta    *metastore.Store
	journal *journal.Journal
	logger  *slog.Logger
}

// newTestEnv создаёт изолированное окружение во временных директориях.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("не удалось создать FileStore: %v", err)
	}

	meta, err := metastore.Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("не удалось открыть metastore: %v", err)
	}

	jrnl, err := journal.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("не удалось создать журнал: %v", err)
	}

	cfg := &config.Config{
		MaxFileSize: 1 << 20, // 1 MB
		AllowedExtensions: map[string]bool{
			".txt": true, ".jpg": true, ".png": true, ".pdf": true, ".json": true,
		},
		TrashWindow:      24 * time.Hour,
		SweepInterval:    time.Hour,
		SweepDeleteFiles: true,
		PreviewMaxBytes:  100,
		BatchMaxFiles:    5,
		PreviewCacheSize: 16,
		PreviewCacheTTL:  time.Minute,
	}

	return &testEnv{
		cfg:     cfg,
		store:   store,
		meta:    meta,
		journal: jrnl,
		logger:  logger,
	}
}

func (e *testEnv) uploadService() *UploadService {
	return NewUploadService(e.cfg, e.journal, e.store, e.meta, e.logger)
}

func (e *testEnv) trashService() *TrashService {
	return NewTrashService(e.cfg, e.store, e.meta, e.logger)
}
