package settings

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSetGet(t *testing.T) {
	s, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть настройки: %v", err)
	}

	if _, ok := s.Get(KeyUploadDir); ok {
		t.Error("ключ не должен существовать до Set")
	}
	if got := s.GetDefault(KeyUploadDir, "incoming"); got != "incoming" {
		t.Errorf("GetDefault: ожидалось incoming, получено %s", got)
	}

	if err := s.Set(KeyUploadDir, "uploads/2026"); err != nil {
		t.Fatalf("Set завершился с ошибкой: %v", err)
	}

	v, ok := s.Get(KeyUploadDir)
	if !ok || v != "uploads/2026" {
		t.Errorf("Get: ожидалось uploads/2026, получено %q (ok=%v)", v, ok)
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть настройки: %v", err)
	}
	if err := s1.Set(KeyDownloadDir, "shared"); err != nil {
		t.Fatalf("Set завершился с ошибкой: %v", err)
	}

	s2, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("повторное открытие не удалось: %v", err)
	}
	if v := s2.GetDefault(KeyDownloadDir, ""); v != "shared" {
		t.Errorf("настройка потеряна после перезагрузки: %q", v)
	}
}

func TestCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte("not json"), 0o640); err != nil {
		t.Fatalf("не удалось записать повреждённый документ: %v", err)
	}

	s, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("store не пережил повреждённый документ: %v", err)
	}
	if len(s.All()) != 0 {
		t.Errorf("ожидался пустой набор настроек, получено %d", len(s.All()))
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set после self-heal завершился с ошибкой: %v", err)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	s, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("не удалось открыть настройки: %v", err)
	}
	if err := s.Set("a", "1"); err != nil {
		t.Fatalf("Set завершился с ошибкой: %v", err)
	}

	all := s.All()
	all["a"] = "hacked"

	if v, _ := s.Get("a"); v != "1" {
		t.Error("мутация копии изменила значения в store")
	}
}
