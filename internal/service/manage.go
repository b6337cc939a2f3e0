// manage.go — сервис управления метаданными: переименование,
// создание каталогов, выдача записи индекса.
package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/lanshare/internal/api/middleware"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
	"github.com/bigkaa/lanshare/internal/storage/safepath"
)

// ManageService — сервис управления метаданными файлов.
type ManageService struct {
	store  *filestore.FileStore
	meta   *metastore.Store
	logger *slog.Logger
}

// NewManageService создаёт сервис управления метаданными.
func NewManageService(
	store *filestore.FileStore,
	meta *metastore.Store,
	logger *slog.Logger,
) *ManageService {
	return &ManageService{
		store:  store,
		meta:   meta,
		logger: logger.With(slog.String("component", "manage_service")),
	}
}

// Get возвращает запись живого индекса.
func (m *ManageService) Get(fileID string) (*model.FileEntry, *OpError) {
	entry := m.meta.GetFile(fileID)
	if entry == nil {
		return nil, errNotFound(fmt.Sprintf("Файл %s не найден", fileID))
	}
	return entry, nil
}

// Rename меняет отображаемое имя файла. Операция чисто метаданная:
// storedPath остаётся прежним, физический файл не переименовывается,
// поэтому выданные ранее ссылки на скачивание не ломаются.
// Чтение и запись выполняются store-ом под одной блокировкой:
// параллельное мягкое удаление не воскресит запись в живом индексе.
func (m *ManageService) Rename(fileID, newName string) (*model.FileEntry, *OpError) {
	name, err := safepath.CleanName(newName)
	if err != nil {
		return nil, errInvalidName(fmt.Sprintf("Недопустимое имя файла %q", newName))
	}

	entry, err := m.meta.RenameFile(fileID, name)
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			return nil, errNotFound(fmt.Sprintf("Файл %s не найден", fileID))
		}
		m.logger.Error("Ошибка записи индекса при переименовании",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return nil, errStorage("Ошибка записи метаданных")
	}

	middleware.OperationsTotal.WithLabelValues("rename", "success").Inc()

	m.logger.Info("Файл переименован",
		slog.String("file_id", fileID),
		slog.String("new_name", name),
	)

	return entry, nil
}

// CreateFolder создаёт каталог внутри storage root.
// Существующий каталог не является ошибкой (идемпотентность).
// Пустой путь отклоняется: корень уже существует.
func (m *ManageService) CreateFolder(relPath string) (string, *OpError) {
	cleaned, err := safepath.CleanRelative(relPath)
	if err != nil {
		return "", errInvalidPath(fmt.Sprintf("Недопустимый путь %q", relPath))
	}
	if cleaned == "" {
		return "", errInvalidPath("Путь каталога не может быть пустым")
	}

	if err := m.store.EnsureDir(cleaned); err != nil {
		m.logger.Error("Ошибка создания каталога",
			slog.String("path", cleaned),
			slog.String("error", err.Error()),
		)
		return "", errStorage("Ошибка создания каталога")
	}

	middleware.OperationsTotal.WithLabelValues("create_folder", "success").Inc()

	m.logger.Info("Каталог создан", slog.String("path", cleaned))

	return cleaned, nil
}
