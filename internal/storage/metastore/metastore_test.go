package metastore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/lanshare/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEntry(id string) *model.FileEntry {
	return &model.FileEntry{
		ID:           id,
		StoredPath:   "docs/" + id + "_report.pdf",
		OriginalName: "report.pdf",
		Folder:       "docs",
		Size:         1024,
		MimeType:     "application/pdf",
		Checksum:     "deadbeef",
		CreatedAt:    time.Now().UTC(),
	}
}

func TestPutGetRemoveFile(t *testing.T) {
	s, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть store: %v", err)
	}

	e := testEntry("file-1")
	if err := s.PutFile(e); err != nil {
		t.Fatalf("PutFile завершился с ошибкой: %v", err)
	}

	got := s.GetFile("file-1")
	if got == nil {
		t.Fatal("запись не найдена после PutFile")
	}
	if got.OriginalName != "report.pdf" {
		t.Errorf("ожидалось имя report.pdf, получено %s", got.OriginalName)
	}

	// Возвращается копия: мутация не должна затронуть store
	got.OriginalName = "hacked.pdf"
	if s.GetFile("file-1").OriginalName != "report.pdf" {
		t.Error("мутация копии изменила запись в store")
	}

	if err := s.RemoveFile("file-1"); err != nil {
		t.Fatalf("RemoveFile завершился с ошибкой: %v", err)
	}
	if s.GetFile("file-1") != nil {
		t.Error("запись найдена после удаления")
	}
	if err := s.RemoveFile("file-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторное удаление: ожидалась ErrNotFound, получена %v", err)
	}
}

func TestRenameFile(t *testing.T) {
	s, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть store: %v", err)
	}

	e := testEntry("file-1")
	if err := s.PutFile(e); err != nil {
		t.Fatalf("PutFile завершился с ошибкой: %v", err)
	}

	renamed, err := s.RenameFile("file-1", "annual.pdf")
	if err != nil {
		t.Fatalf("RenameFile завершился с ошибкой: %v", err)
	}
	if renamed.OriginalName != "annual.pdf" {
		t.Errorf("ожидалось имя annual.pdf, получено %s", renamed.OriginalName)
	}
	if renamed.StoredPath != e.StoredPath {
		t.Errorf("storedPath изменился: %s", renamed.StoredPath)
	}

	if _, err := s.RenameFile("ghost", "x.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("переименование несуществующей записи: ожидалась ErrNotFound, получена %v", err)
	}
}

func TestRenameFileTrashedStaysTrashed(t *testing.T) {
	s, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть store: %v", err)
	}

	e := testEntry("file-1")
	if err := s.PutFile(e); err != nil {
		t.Fatalf("PutFile завершился с ошибкой: %v", err)
	}
	if _, err := s.MoveToTrash("file-1", time.Now().UTC(), 24*time.Hour); err != nil {
		t.Fatalf("MoveToTrash завершился с ошибкой: %v", err)
	}

	// Переименование удалённой записи не воскрешает её в живом индексе:
	// id обязан числиться ровно в одном индексе
	if _, err := s.RenameFile("file-1", "annual.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound для записи из корзины, получена %v", err)
	}
	if s.GetFile("file-1") != nil {
		t.Error("запись возникла в живом индексе при живой записи корзины")
	}
	if s.GetTrash("file-1") == nil {
		t.Error("запись пропала из корзины")
	}
}

func TestMoveToTrashAndRestore(t *testing.T) {
	s, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть store: %v", err)
	}

	now := time.Now().UTC()
	window := 24 * time.Hour

	if err := s.PutFile(testEntry("file-1")); err != nil {
		t.Fatalf("PutFile завершился с ошибкой: %v", err)
	}

	tr, err := s.MoveToTrash("file-1", now, window)
	if err != nil {
		t.Fatalf("MoveToTrash завершился с ошибкой: %v", err)
	}
	if !tr.ExpiresAt.Equal(now.Add(window)) {
		t.Errorf("неверный expiresAt: %v", tr.ExpiresAt)
	}

	// Запись должна числиться ровно в одном индексе
	if s.GetFile("file-1") != nil {
		t.Error("запись осталась в живом индексе после переноса")
	}
	if s.GetTrash("file-1") == nil {
		t.Fatal("запись не найдена в корзине после переноса")
	}

	restored, err := s.RestoreFromTrash("file-1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("RestoreFromTrash завершился с ошибкой: %v", err)
	}
	if restored.StoredPath != "docs/file-1_report.pdf" {
		t.Errorf("storedPath изменился при восстановлении: %s", restored.StoredPath)
	}
	if s.GetTrash("file-1") != nil {
		t.Error("запись осталась в корзине после восстановления")
	}
	if s.GetFile("file-1") == nil {
		t.Error("запись не вернулась в живой индекс")
	}
}

func TestRestoreExpired(t *testing.T) {
	s, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть store: %v", err)
	}

	now := time.Now().UTC()
	if err := s.PutFile(testEntry("file-1")); err != nil {
		t.Fatalf("PutFile завершился с ошибкой: %v", err)
	}
	if _, err := s.MoveToTrash("file-1", now, time.Hour); err != nil {
		t.Fatalf("MoveToTrash завершился с ошибкой: %v", err)
	}

	// Ровно на границе окна запись уже истекла
	if _, err := s.RestoreFromTrash("file-1", now.Add(time.Hour)); !errors.Is(err, ErrExpired) {
		t.Errorf("ожидалась ErrExpired, получена %v", err)
	}
	// Запись остаётся в корзине до sweep
	if s.GetTrash("file-1") == nil {
		t.Error("истекшая запись исчезла из корзины без sweep")
	}
}

func TestMoveToTrashNotFound(t *testing.T) {
	s, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть store: %v", err)
	}

	if _, err := s.MoveToTrash("ghost", time.Now(), time.Hour); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получена %v", err)
	}
	if _, err := s.RestoreFromTrash("ghost", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получена %v", err)
	}
}

func TestReloadPersistence(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC()

	s1, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть store: %v", err)
	}
	if err := s1.PutFile(testEntry("live-1")); err != nil {
		t.Fatalf("PutFile завершился с ошибкой: %v", err)
	}
	if err := s1.PutFile(testEntry("gone-1")); err != nil {
		t.Fatalf("PutFile завершился с ошибкой: %v", err)
	}
	if _, err := s1.MoveToTrash("gone-1", now, 24*time.Hour); err != nil {
		t.Fatalf("MoveToTrash завершился с ошибкой: %v", err)
	}

	// Новый store читает те же документы
	s2, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("повторное открытие store не удалось: %v", err)
	}
	if s2.GetFile("live-1") == nil {
		t.Error("живая запись потеряна после перезагрузки")
	}
	if s2.GetTrash("gone-1") == nil {
		t.Error("запись корзины потеряна после перезагрузки")
	}
	if s2.CountFiles() != 1 || s2.CountTrash() != 1 {
		t.Errorf("неверные счётчики после перезагрузки: files=%d trash=%d",
			s2.CountFiles(), s2.CountTrash())
	}
}

func TestCorruptDocumentSelfHeal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "files.json"), []byte("{broken"), 0o640); err != nil {
		t.Fatalf("не удалось записать повреждённый документ: %v", err)
	}

	s, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("store не пережил повреждённый документ: %v", err)
	}
	if s.CountFiles() != 0 {
		t.Errorf("ожидался пустой индекс, получено %d записей", s.CountFiles())
	}

	// Store остаётся рабочим: новая запись перезаписывает документ
	if err := s.PutFile(testEntry("file-1")); err != nil {
		t.Fatalf("PutFile после self-heal завершился с ошибкой: %v", err)
	}
}

func TestDualMembershipResolution(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC()

	s1, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть store: %v", err)
	}
	if err := s1.PutFile(testEntry("dup-1")); err != nil {
		t.Fatalf("PutFile завершился с ошибкой: %v", err)
	}
	if _, err := s1.MoveToTrash("dup-1", now, 24*time.Hour); err != nil {
		t.Fatalf("MoveToTrash завершился с ошибкой: %v", err)
	}
	// Имитация сбоя между записями документов: запись обратно в живом индексе
	if err := s1.PutFile(testEntry("dup-1")); err != nil {
		t.Fatalf("PutFile завершился с ошибкой: %v", err)
	}

	s2, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("повторное открытие store не удалось: %v", err)
	}
	if s2.GetFile("dup-1") == nil {
		t.Error("при двойном членстве запись должна остаться в живом индексе")
	}
	if s2.GetTrash("dup-1") != nil {
		t.Error("при двойном членстве запись должна быть убрана из корзины")
	}
}

func TestConcurrentPuts(t *testing.T) {
	s, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть store: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.PutFile(testEntry(fmt.Sprintf("file-%03d", i))); err != nil {
				t.Errorf("PutFile %d завершился с ошибкой: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if s.CountFiles() != n {
		t.Errorf("ожидалось %d записей, получено %d", n, s.CountFiles())
	}

	// Files отсортирован по id
	files := s.Files()
	for i := 1; i < len(files); i++ {
		if files[i-1].ID >= files[i].ID {
			t.Fatalf("нарушен порядок сортировки: %s >= %s", files[i-1].ID, files[i].ID)
		}
	}
}
