// Пакет metastore — авторитетный индекс метаданных: живые файлы и корзина.
//
// Оба индекса — это JSON-документы (files.json и trash.json) в директории
// метаданных, лежащей рядом со storage root, но не внутри него. In-memory
// зеркала обоих документов защищены одним sync.RWMutex: перенос записи
// между живым индексом и корзиной выполняется под единственным захватом
// блокировки, поэтому окна, в котором запись есть в обоих индексах или
// ни в одном, не существует.
//
// Каждая мутация переписывает затронутый документ целиком и атомарно:
// temp файл → fsync → rename. Сбой между записью temp и rename оставляет
// предыдущую версию документа нетронутой.
//
// Повреждённый или отсутствующий документ при старте не валит процесс:
// индекс инициализируется пустым, проблема логируется.
package metastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/lanshare/internal/domain/model"
)

// Имена документов индексов в директории метаданных.
const (
	filesDocName = "files.json"
	trashDocName = "trash.json"
)

// Ошибки store, транслируются сервисным слоем в API-коды.
var (
	// ErrNotFound — запись с таким id отсутствует в индексе.
	ErrNotFound = errors.New("запись не найдена")
	// ErrExpired — окно восстановления записи корзины истекло.
	ErrExpired = errors.New("окно восстановления истекло")
)

// Store — общий guarded-store живого индекса и корзины.
type Store struct {
	mu sync.RWMutex

	filesPath string
	trashPath string

	files map[string]*model.FileEntry
	trash map[string]*model.TrashEntry

	ready  bool
	logger *slog.Logger
}

// Open создаёт store и загружает оба документа из директории метаданных.
// Директория создаётся при необходимости. Повреждённый документ
// заменяется пустым индексом (self-heal), процесс не завершается.
func Open(metaDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(metaDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию метаданных %s: %w", metaDir, err)
	}

	s := &Store{
		filesPath: filepath.Join(metaDir, filesDocName),
		trashPath: filepath.Join(metaDir, trashDocName),
		files:     make(map[string]*model.FileEntry),
		trash:     make(map[string]*model.TrashEntry),
		logger:    logger.With(slog.String("component", "metastore")),
	}

	loadDoc(s.filesPath, &s.files, s.logger)
	loadDoc(s.trashPath, &s.trash, s.logger)

	// Один storedPath может числиться максимум в одном индексе.
	// Сбой между записью двух документов при переносе оставляет id
	// в обоих — разрешаем в пользу живого индекса (порядок записи
	// документов в MoveToTrash/RestoreFromTrash это гарантирует).
	for id := range s.trash {
		if _, dup := s.files[id]; dup {
			delete(s.trash, id)
			s.logger.Warn("Запись присутствовала в обоих индексах, оставлена в живом",
				slog.String("id", id),
			)
		}
	}

	s.ready = true
	s.logger.Info("Индексы метаданных загружены",
		slog.Int("files", len(s.files)),
		slog.Int("trash", len(s.trash)),
		slog.String("meta_dir", metaDir),
	)

	return s, nil
}

// IsReady возвращает true после успешной загрузки документов.
func (s *Store) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// --- Живой индекс ---

// GetFile возвращает копию живой записи или nil, если запись не найдена.
func (s *Store) GetFile(id string) *model.FileEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.files[id]
	if !ok {
		return nil
	}
	copied := *e
	return &copied
}

// Files возвращает копии всех живых записей, отсортированные по id
// для детерминированного обхода.
func (s *Store) Files() []*model.FileEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.FileEntry, 0, len(s.files))
	for _, e := range s.files {
		copied := *e
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// PutFile добавляет или обновляет живую запись и переписывает files.json.
// При ошибке записи на диск in-memory зеркало откатывается.
func (s *Store) PutFile(e *model.FileEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.files[e.ID]
	copied := *e
	s.files[e.ID] = &copied

	if err := writeDoc(s.filesPath, s.files); err != nil {
		if existed {
			s.files[e.ID] = prev
		} else {
			delete(s.files, e.ID)
		}
		return fmt.Errorf("запись files.json: %w", err)
	}
	return nil
}

// RenameFile меняет отображаемое имя живой записи под одним захватом
// блокировки. Чтение и запись не разносятся по двум вызовам: параллельный
// MoveToTrash не может вклиниться между ними и получить запись сразу
// в обоих индексах. Запись, уже перенесённую в корзину, переименовать
// нельзя — возвращается ErrNotFound.
func (s *Store) RenameFile(id, newName string) (*model.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}

	prevName := e.OriginalName
	e.OriginalName = newName

	if err := writeDoc(s.filesPath, s.files); err != nil {
		e.OriginalName = prevName
		return nil, fmt.Errorf("запись files.json: %w", err)
	}

	copied := *e
	return &copied, nil
}

// RemoveFile удаляет живую запись без переноса в корзину.
// Возвращает ErrNotFound, если записи нет.
func (s *Store) RemoveFile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.files[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.files, id)

	if err := writeDoc(s.filesPath, s.files); err != nil {
		s.files[id] = prev
		return fmt.Errorf("запись files.json: %w", err)
	}
	return nil
}

// CountFiles возвращает количество живых записей.
func (s *Store) CountFiles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// --- Корзина ---

// GetTrash возвращает копию записи корзины или nil.
func (s *Store) GetTrash(id string) *model.TrashEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trash[id]
	if !ok {
		return nil
	}
	copied := *t
	return &copied
}

// Trash возвращает копии всех записей корзины, отсортированные по id.
func (s *Store) Trash() []*model.TrashEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.TrashEntry, 0, len(s.trash))
	for _, t := range s.trash {
		copied := *t
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// RemoveTrash удаляет запись корзины (eviction при sweep).
// Возвращает ErrNotFound, если записи нет.
func (s *Store) RemoveTrash(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.trash[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.trash, id)

	if err := writeDoc(s.trashPath, s.trash); err != nil {
		s.trash[id] = prev
		return fmt.Errorf("запись trash.json: %w", err)
	}
	return nil
}

// CountTrash возвращает количество записей корзины.
func (s *Store) CountTrash() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trash)
}

// --- Перенос между индексами ---

// MoveToTrash переносит живую запись в корзину под одним захватом
// блокировки. Физический файл не затрагивается. Запись корзины получает
// deletedAt = now и expiresAt = now + window.
//
// Порядок записи документов: сначала trash.json, затем files.json.
// Сбой между ними оставляет id в обоих документах, что при следующей
// загрузке разрешается в пользу живого индекса (удаление отменяется,
// файл не осиротеет).
func (s *Store) MoveToTrash(id string, now time.Time, window time.Duration) (*model.TrashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}

	t := &model.TrashEntry{
		FileEntry: *e,
		DeletedAt: now,
		ExpiresAt: now.Add(window),
	}

	s.trash[id] = t
	if err := writeDoc(s.trashPath, s.trash); err != nil {
		delete(s.trash, id)
		return nil, fmt.Errorf("запись trash.json: %w", err)
	}

	delete(s.files, id)
	if err := writeDoc(s.filesPath, s.files); err != nil {
		s.files[id] = e
		delete(s.trash, id)
		// trash.json уже переписан — возвращаем его к прежнему виду
		if rbErr := writeDoc(s.trashPath, s.trash); rbErr != nil {
			s.logger.Error("Откат trash.json после сбоя переноса не удался",
				slog.String("id", id),
				slog.String("error", rbErr.Error()),
			)
		}
		return nil, fmt.Errorf("запись files.json: %w", err)
	}

	copied := *t
	return &copied, nil
}

// RestoreFromTrash возвращает запись корзины в живой индекс.
// Проверка окна восстановления выполняется под той же блокировкой:
// для истекшей, но ещё не вычищенной записи возвращается ErrExpired.
// Восстановление — чисто метаданная операция, storedPath не меняется.
//
// Порядок записи документов: сначала files.json, затем trash.json —
// сбой между ними завершается в пользу восстановления при загрузке.
func (s *Store) RestoreFromTrash(id string, now time.Time) (*model.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trash[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.IsExpired(now) {
		return nil, ErrExpired
	}

	e := t.FileEntry

	s.files[id] = &e
	if err := writeDoc(s.filesPath, s.files); err != nil {
		delete(s.files, id)
		return nil, fmt.Errorf("запись files.json: %w", err)
	}

	delete(s.trash, id)
	if err := writeDoc(s.trashPath, s.trash); err != nil {
		s.trash[id] = t
		delete(s.files, id)
		if rbErr := writeDoc(s.filesPath, s.files); rbErr != nil {
			s.logger.Error("Откат files.json после сбоя восстановления не удался",
				slog.String("id", id),
				slog.String("error", rbErr.Error()),
			)
		}
		return nil, fmt.Errorf("запись trash.json: %w", err)
	}

	copied := e
	return &copied, nil
}

// --- Персистентность ---

// loadDoc читает JSON-документ в целевую map. Отсутствующий файл — норма
// (первый запуск). Повреждённый документ логируется, индекс остаётся пустым.
func loadDoc[T any](path string, target *map[string]T, logger *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Документ индекса недоступен, индекс инициализирован пустым",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	var loaded map[string]T
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn("Документ индекса повреждён, индекс инициализирован пустым",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}
	if loaded != nil {
		*target = loaded
	}
}

// writeDoc атомарно записывает документ индекса.
// Паттерн: JSON → temp файл → fsync → atomic rename.
func writeDoc(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}

	tmpPath := path + ".tmp"

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

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}
