// Пакет settings — персистентные настройки сервиса.
// Настройки хранятся одним JSON-документом settings.json в директории
// метаданных и переживают рестарт. Известные ключи: upload_dir
// (относительный каталог приёма файлов) и download_dir (каталог,
// предлагаемый клиентам по умолчанию).
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const docName = "settings.json"

// Известные ключи настроек.
const (
	KeyUploadDir   = "upload_dir"
	KeyDownloadDir = "download_dir"
)

// Store — guarded-хранилище настроек.
type Store struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
	logger *slog.Logger
}

// Open загружает settings.json из директории метаданных.
// Отсутствующий документ — норма (первый запуск), повреждённый
// заменяется пустым набором с записью в лог.
func Open(metaDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(metaDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию метаданных %s: %w", metaDir, err)
	}

	s := &Store{
		path:   filepath.Join(metaDir, docName),
		values: make(map[string]string),
		logger: logger.With(slog.String("component", "settings")),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("не удалось прочитать %s: %w", s.path, err)
		}
		return s, nil
	}

	var loaded map[string]string
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("Документ настроек повреждён, используются значения по умолчанию",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return s, nil
	}
	if loaded != nil {
		s.values = loaded
	}

	return s, nil
}

// Get возвращает значение настройки и признак её наличия.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetDefault возвращает значение настройки или def, если её нет.
func (s *Store) GetDefault(key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Set сохраняет настройку и переписывает документ на диске.
// При ошибке записи in-memory значение откатывается.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.values[key]
	s.values[key] = value

	if err := s.write(); err != nil {
		if existed {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return fmt.Errorf("запись settings.json: %w", err)
	}

	s.logger.Info("Настройка обновлена",
		slog.String("key", key),
		slog.String("value", value),
	)
	return nil
}

// All возвращает копию всех настроек.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]string, len(s.values))
	for k, v := range s.values {
		result[k] = v
	}
	return result
}

// write атомарно переписывает документ настроек.
func (s *Store) write() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}

	tmpPath := s.path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}
