package service

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService()

	content := []byte("содержимое тестового файла")
	entry, opErr := svc.Upload(UploadParams{
		Reader:       bytes.NewReader(content),
		OriginalName: "отчёт.txt",
		Folder:       "docs/2026",
		ContentType:  "text/plain",
		Size:         int64(len(content)),
	})
	if opErr != nil {
		t.Fatalf("Upload завершился с ошибкой: %v", opErr)
	}

	if entry.OriginalName != "отчёт.txt" {
		t.Errorf("неверное имя: %s", entry.OriginalName)
	}
	if entry.Folder != "docs/2026" {
		t.Errorf("неверный каталог: %s", entry.Folder)
	}
	if entry.Size != int64(len(content)) {
		t.Errorf("неверный размер: %d", entry.Size)
	}
	if entry.MimeType != "text/plain" {
		t.Errorf("неверный MIME-тип: %s", entry.MimeType)
	}
	if !strings.HasPrefix(entry.StoredPath, "docs/2026/"+entry.ID+"_") {
		t.Errorf("storedPath должен содержать каталог и префикс-идентификатор: %s", entry.StoredPath)
	}

	// Файл на диске
	if !env.store.Exists(entry.StoredPath) {
		t.Error("файл не найден на диске")
	}
	// Запись в живом индексе
	if env.meta.GetFile(entry.ID) == nil {
		t.Error("запись не найдена в живом индексе")
	}
	// Журнал закоммичен
	pending, err := env.journal.RecoverPending()
	if err != nil {
		t.Fatalf("RecoverPending завершился с ошибкой: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("после успешной загрузки не должно быть pending транзакций, найдено %d", len(pending))
	}
}

func TestUpload_InvalidName(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService()

	tests := []string{"", "a/b.txt", "..", "x\x00y.txt"}
	for _, name := range tests {
		_, opErr := svc.Upload(UploadParams{
			Reader:       bytes.NewReader([]byte("x")),
			OriginalName: name,
			Size:         1,
		})
		if opErr == nil {
			t.Errorf("имя %q: ожидалась ошибка", name)
			continue
		}
		if opErr.StatusCode != 400 {
			t.Errorf("имя %q: ожидался код 400, получен %d", name, opErr.StatusCode)
		}
	}
}

func TestUpload_InvalidFolder(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService()

	_, opErr := svc.Upload(UploadParams{
		Reader:       bytes.NewReader([]byte("x")),
		OriginalName: "a.txt",
		Folder:       "../../etc",
		Size:         1,
	})
	if opErr == nil {
		t.Fatal("ожидалась ошибка для каталога вне storage root")
	}
	if opErr.Code != "INVALID_PATH" {
		t.Errorf("ожидался код INVALID_PATH, получен %s", opErr.Code)
	}
}

func TestUpload_DisallowedExtension(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService()

	_, opErr := svc.Upload(UploadParams{
		Reader:       bytes.NewReader([]byte("MZ")),
		OriginalName: "malware.exe",
		Size:         2,
	})
	if opErr == nil {
		t.Fatal("ожидалась ошибка для запрещённого расширения")
	}
	if opErr.Code != "INVALID_TYPE" {
		t.Errorf("ожидался код INVALID_TYPE, получен %s", opErr.Code)
	}
}

func TestUpload_TooLargeDeclared(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService()

	_, opErr := svc.Upload(UploadParams{
		Reader:       bytes.NewReader([]byte("x")),
		OriginalName: "big.txt",
		Size:         env.cfg.MaxFileSize + 1,
	})
	if opErr == nil {
		t.Fatal("ожидалась ошибка для заявленного размера сверх лимита")
	}
	if opErr.StatusCode != 413 {
		t.Errorf("ожидался код 413, получен %d", opErr.StatusCode)
	}
}

func TestUpload_TooLargeActual(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.MaxFileSize = 10
	svc := env.uploadService()

	// Заявленный размер лжёт, фактический поток больше лимита
	_, opErr := svc.Upload(UploadParams{
		Reader:       bytes.NewReader([]byte("0123456789ABCDEF")),
		OriginalName: "liar.txt",
		Size:         5,
	})
	if opErr == nil {
		t.Fatal("ожидалась ошибка для фактического размера сверх лимита")
	}
	if opErr.StatusCode != 413 {
		t.Errorf("ожидался код 413, получен %d", opErr.StatusCode)
	}

	// Недописанный файл должен быть удалён, индекс пуст
	if env.meta.CountFiles() != 0 {
		t.Error("запись не должна попасть в индекс")
	}
	pending, _ := env.journal.RecoverPending()
	if len(pending) != 0 {
		t.Errorf("транзакция должна быть откачена, найдено %d pending", len(pending))
	}
}

func TestUpload_MimeFallback(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService()

	// Тип не указан — определяем по расширению
	entry, opErr := svc.Upload(UploadParams{
		Reader:       bytes.NewReader([]byte("{}")),
		OriginalName: "data.json",
		Size:         2,
	})
	if opErr != nil {
		t.Fatalf("Upload завершился с ошибкой: %v", opErr)
	}
	if entry.MimeType != "application/json" {
		t.Errorf("ожидался application/json, получен %s", entry.MimeType)
	}
}

func TestUpload_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := []byte(fmt.Sprintf("файл номер %d", i))
			_, opErr := svc.Upload(UploadParams{
				Reader:       bytes.NewReader(content),
				OriginalName: fmt.Sprintf("file-%03d.txt", i),
				Folder:       "bulk",
				Size:         int64(len(content)),
			})
			if opErr != nil {
				t.Errorf("Upload %d завершился с ошибкой: %v", i, opErr)
			}
		}(i)
	}
	wg.Wait()

	if env.meta.CountFiles() != n {
		t.Errorf("ожидалось %d записей в индексе, получено %d", n, env.meta.CountFiles())
	}

	// Каждая запись указывает на существующий файл
	for _, e := range env.meta.Files() {
		if !env.store.Exists(e.StoredPath) {
			t.Errorf("файл %s отсутствует на диске", e.StoredPath)
		}
	}
}

func TestResolveContentType(t *testing.T) {
	tests := []struct {
		contentType string
		name        string
		want        string
	}{
		{contentType: "image/png", name: "a.bin", want: "image/png"},
		{contentType: "text/plain; charset=utf-8", name: "a.bin", want: "text/plain"},
		{contentType: "", name: "a.json", want: "application/json"},
		{contentType: "application/octet-stream", name: "a.pdf", want: "application/pdf"},
		{contentType: "", name: "noext", want: "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := resolveContentType(tt.contentType, tt.name); got != tt.want {
			t.Errorf("resolveContentType(%q, %q) = %q, ожидалось %q",
				tt.contentType, tt.name, got, tt.want)
		}
	}
}
