// Пакет filestore — операции с физическими файлами внутри storage root.
// Обеспечивает streaming-запись с подсчётом SHA-256 на лету, чтение,
// удаление и создание каталогов. Вызывающий код передаёт уже
// нормализованные относительные пути (safepath), filestore за пределы
// root не выходит.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStore — управление физическими файлами внутри storage root.
type FileStore struct {
	// root — корневая директория хранения файлов (LS_DATA_DIR)
	root string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StoredPath — относительный путь файла внутри root
	StoredPath string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
}

// New создаёт новый FileStore. Проверяет и создаёт корневую
// директорию, если она не существует.
func New(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать корневую директорию %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// SaveFile записывает данные из reader по относительному пути storedPath
// с подсчётом SHA-256 на лету. Промежуточные каталоги создаются.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется, полуфабрикаты под итоговым именем
// не появляются.
func (fs *FileStore) SaveFile(reader io.Reader, storedPath string) (*SaveResult, error) {
	fullPath := filepath.Join(fs.root, filepath.FromSlash(storedPath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог для %s: %w", storedPath, err)
	}

	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StoredPath: storedPath,
		FullPath:   fullPath,
		Size:       size,
		Checksum:   hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает файл для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(storedPath string) (*os.File, error) {
	fullPath := filepath.Join(fs.root, filepath.FromSlash(storedPath))

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", storedPath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storedPath, err)
	}
	return f, nil
}

// FullPath возвращает абсолютный путь к файлу на диске.
func (fs *FileStore) FullPath(storedPath string) string {
	return filepath.Join(fs.root, filepath.FromSlash(storedPath))
}

// Delete удаляет файл с диска.
// Возвращает nil, если файл уже не существует.
func (fs *FileStore) Delete(storedPath string) error {
	err := os.Remove(fs.FullPath(storedPath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storedPath, err)
	}
	return nil
}

// Exists проверяет существование файла на диске.
func (fs *FileStore) Exists(storedPath string) bool {
	_, err := os.Stat(fs.FullPath(storedPath))
	return err == nil
}

// Size возвращает размер файла на диске.
func (fs *FileStore) Size(storedPath string) (int64, error) {
	info, err := os.Stat(fs.FullPath(storedPath))
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о файле %s: %w", storedPath, err)
	}
	return info.Size(), nil
}

// EnsureDir создаёт каталог по относительному пути внутри root.
// Существующий каталог не является ошибкой.
func (fs *FileStore) EnsureDir(relPath string) error {
	fullPath := filepath.Join(fs.root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(fullPath, 0o750); err != nil {
		return fmt.Errorf("не удалось создать каталог %s: %w", relPath, err)
	}
	return nil
}

// ComputeChecksum вычисляет SHA-256 хэш существующего файла.
// Используется при reconciliation для проверки целостности.
func (fs *FileStore) ComputeChecksum(storedPath string) (string, error) {
	f, err := os.Open(fs.FullPath(storedPath))
	if err != nil {
		return "", fmt.Errorf("ошибка открытия файла %s: %w", storedPath, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("ошибка вычисления checksum %s: %w", storedPath, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Root возвращает путь к корневой директории хранения.
func (fs *FileStore) Root() string {
	return fs.root
}
