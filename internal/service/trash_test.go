package service

import (
	"bytes"
	"testing"
	"time"
)

// uploadFixture загружает файл и возвращает его идентификатор.
func uploadFixture(t *testing.T, env *testEnv, name, content string) string {
	t.Helper()
	entry, opErr := env.uploadService().Upload(UploadParams{
		Reader:       bytes.NewReader([]byte(content)),
		OriginalName: name,
		Size:         int64(len(content)),
	})
	if opErr != nil {
		t.Fatalf("не удалось загрузить фикстуру %s: %v", name, opErr)
	}
	return entry.ID
}

func TestSoftDeleteAndRestore(t *testing.T) {
	env := newTestEnv(t)
	svc := env.trashService()

	id := uploadFixture(t, env, "doc.txt", "данные")
	storedPath := env.meta.GetFile(id).StoredPath

	trashEntry, opErr := svc.SoftDelete(id)
	if opErr != nil {
		t.Fatalf("SoftDelete завершился с ошибкой: %v", opErr)
	}
	if trashEntry.DeletedAt.IsZero() || trashEntry.ExpiresAt.IsZero() {
		t.Error("deletedAt и expiresAt должны быть заполнены")
	}

	// Файл остаётся на диске до sweep
	if !env.store.Exists(storedPath) {
		t.Error("физический файл не должен удаляться при мягком удалении")
	}
	// Запись ушла из живого индекса
	if env.meta.GetFile(id) != nil {
		t.Error("запись осталась в живом индексе")
	}

	// Повторное удаление — NOT_FOUND
	if _, opErr := svc.SoftDelete(id); opErr == nil || opErr.StatusCode != 404 {
		t.Errorf("повторное удаление: ожидался 404, получено %v", opErr)
	}

	restored, opErr := svc.Restore(id)
	if opErr != nil {
		t.Fatalf("Restore завершился с ошибкой: %v", opErr)
	}
	if restored.StoredPath != storedPath {
		t.Errorf("storedPath изменился при восстановлении: %s", restored.StoredPath)
	}
	if env.meta.GetTrash(id) != nil {
		t.Error("запись осталась в корзине после восстановления")
	}
}

func TestRestore_Expired(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.TrashWindow = time.Millisecond
	svc := env.trashService()

	id := uploadFixture(t, env, "old.txt", "данные")
	if _, opErr := svc.SoftDelete(id); opErr != nil {
		t.Fatalf("SoftDelete завершился с ошибкой: %v", opErr)
	}

	time.Sleep(5 * time.Millisecond)

	_, opErr := svc.Restore(id)
	if opErr == nil {
		t.Fatal("ожидалась ошибка восстановления истекшей записи")
	}
	if opErr.StatusCode != 410 || opErr.Code != "TRASH_EXPIRED" {
		t.Errorf("ожидался 410 TRASH_EXPIRED, получено %d %s", opErr.StatusCode, opErr.Code)
	}
}

func TestSweep_RemovesExpired(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.TrashWindow = time.Millisecond
	svc := env.trashService()

	id := uploadFixture(t, env, "gone.txt", "данные")
	storedPath := env.meta.GetFile(id).StoredPath

	if _, opErr := svc.SoftDelete(id); opErr != nil {
		t.Fatalf("SoftDelete завершился с ошибкой: %v", opErr)
	}

	time.Sleep(5 * time.Millisecond)

	result := svc.RunOnce()
	if result.SweptCount != 1 {
		t.Errorf("ожидалась 1 вычищенная запись, получено %d", result.SweptCount)
	}
	if env.meta.GetTrash(id) != nil {
		t.Error("запись корзины осталась после sweep")
	}
	if env.store.Exists(storedPath) {
		t.Error("физический файл должен быть удалён при LS_SWEEP_DELETE_FILES=true")
	}
}

func TestSweep_KeepsFilesWhenConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.TrashWindow = time.Millisecond
	env.cfg.SweepDeleteFiles = false
	svc := env.trashService()

	id := uploadFixture(t, env, "keep.txt", "данные")
	storedPath := env.meta.GetFile(id).StoredPath

	if _, opErr := svc.SoftDelete(id); opErr != nil {
		t.Fatalf("SoftDelete завершился с ошибкой: %v", opErr)
	}

	time.Sleep(5 * time.Millisecond)

	result := svc.RunOnce()
	if result.SweptCount != 1 {
		t.Errorf("ожидалась 1 вычищенная запись, получено %d", result.SweptCount)
	}
	// Запись индекса вычищена, файл остаётся
	if env.meta.GetTrash(id) != nil {
		t.Error("запись корзины осталась после sweep")
	}
	if !env.store.Exists(storedPath) {
		t.Error("физический файл должен остаться при LS_SWEEP_DELETE_FILES=false")
	}
}

func TestSweep_IgnoresUnexpired(t *testing.T) {
	env := newTestEnv(t)
	svc := env.trashService()

	id := uploadFixture(t, env, "fresh.txt", "данные")
	if _, opErr := svc.SoftDelete(id); opErr != nil {
		t.Fatalf("SoftDelete завершился с ошибкой: %v", opErr)
	}

	result := svc.RunOnce()
	if result.SweptCount != 0 {
		t.Errorf("неистекшие записи не должны вычищаться, вычищено %d", result.SweptCount)
	}
	if env.meta.GetTrash(id) == nil {
		t.Error("запись корзины исчезла до истечения окна")
	}
}
