package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDownloadServe(t *testing.T) {
	env := newTestEnv(t)
	svc := NewDownloadService(env.store, env.meta, env.logger)

	id := uploadNamed(t, env, "doc.txt", "", "text/plain", "содержимое файла")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/files/"+id+"/download", nil)

	if opErr := svc.Serve(rec, req, id); opErr != nil {
		t.Fatalf("Serve завершился с ошибкой: %v", opErr)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался 200, получено %d", rec.Code)
	}
	if got := rec.Body.String(); got != "содержимое файла" {
		t.Errorf("неверное тело ответа: %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("неверный Content-Type: %s", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="doc.txt"` {
		t.Errorf("неверный Content-Disposition: %s", cd)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("отсутствует заголовок ETag")
	}
}

func TestDownloadServe_Range(t *testing.T) {
	env := newTestEnv(t)
	svc := NewDownloadService(env.store, env.meta, env.logger)

	id := uploadNamed(t, env, "range.txt", "", "text/plain", "0123456789")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/files/"+id+"/download", nil)
	req.Header.Set("Range", "bytes=2-5")

	if opErr := svc.Serve(rec, req, id); opErr != nil {
		t.Fatalf("Serve завершился с ошибкой: %v", opErr)
	}

	if rec.Code != http.StatusPartialContent {
		t.Errorf("ожидался 206, получено %d", rec.Code)
	}
	if got := rec.Body.String(); got != "2345" {
		t.Errorf("неверный фрагмент: %q", got)
	}
}

func TestDownloadServe_NotFound(t *testing.T) {
	env := newTestEnv(t)
	svc := NewDownloadService(env.store, env.meta, env.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/files/missing/download", nil)

	opErr := svc.Serve(rec, req, "missing-id")
	if opErr == nil || opErr.StatusCode != 404 {
		t.Errorf("ожидался 404, получено %v", opErr)
	}
}

func TestDownloadServe_TrashedNotServed(t *testing.T) {
	env := newTestEnv(t)
	svc := NewDownloadService(env.store, env.meta, env.logger)
	trash := env.trashService()

	id := uploadNamed(t, env, "gone.txt", "", "text/plain", "данные")
	if _, opErr := trash.SoftDelete(id); opErr != nil {
		t.Fatalf("SoftDelete завершился с ошибкой: %v", opErr)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/files/"+id+"/download", nil)

	if opErr := svc.Serve(rec, req, id); opErr == nil || opErr.StatusCode != 404 {
		t.Errorf("файл из корзины не должен отдаваться, получено %v", opErr)
	}
}
