package service

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// pngFixture кодирует градиентное изображение 64x64 в PNG.
func pngFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8((x + y) * 2), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("не удалось закодировать PNG: %v", err)
	}
	return buf.Bytes()
}

func uploadPNG(t *testing.T, env *testEnv) string {
	t.Helper()
	data := pngFixture(t)
	entry, opErr := env.uploadService().Upload(UploadParams{
		Reader:       bytes.NewReader(data),
		OriginalName: "picture.png",
		ContentType:  "image/png",
		Size:         int64(len(data)),
	})
	if opErr != nil {
		t.Fatalf("не удалось загрузить PNG: %v", opErr)
	}
	return entry.ID
}

func TestRenditionDescribe(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRenditionService(env.store, env.meta, env.logger)

	id := uploadPNG(t, env)

	_, rendition, opErr := svc.Describe(id)
	if opErr != nil {
		t.Fatalf("Describe завершился с ошибкой: %v", opErr)
	}
	if rendition.ContentType != "image/jpeg" {
		t.Errorf("ожидался image/jpeg, получено %s", rendition.ContentType)
	}
	if rendition.Filename != "picture.png.compressed.jpg" {
		t.Errorf("неверное имя рендиции: %s", rendition.Filename)
	}
}

func TestRenditionDescribe_Unsupported(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRenditionService(env.store, env.meta, env.logger)

	id := uploadNamed(t, env, "notes.txt", "", "text/plain", "текст")

	_, _, opErr := svc.Describe(id)
	if opErr == nil || opErr.StatusCode != 415 || opErr.Code != "UNSUPPORTED_TYPE" {
		t.Errorf("ожидался 415 UNSUPPORTED_TYPE, получено %v", opErr)
	}
}

func TestRenditionCompress_Image(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRenditionService(env.store, env.meta, env.logger)

	id := uploadPNG(t, env)
	entry := env.meta.GetFile(id)

	var low, high bytes.Buffer
	if opErr := svc.Compress(&low, entry, 10); opErr != nil {
		t.Fatalf("Compress q=10 завершился с ошибкой: %v", opErr)
	}
	if opErr := svc.Compress(&high, entry, 90); opErr != nil {
		t.Fatalf("Compress q=90 завершился с ошибкой: %v", opErr)
	}

	// Результат — корректный JPEG
	if _, err := jpeg.Decode(bytes.NewReader(low.Bytes())); err != nil {
		t.Errorf("результат не декодируется как JPEG: %v", err)
	}
	// Низкое качество даёт меньший размер на градиентном изображении
	if low.Len() >= high.Len() {
		t.Errorf("ожидалось q10 (%d байт) < q90 (%d байт)", low.Len(), high.Len())
	}

	// Оригинал на диске не изменился
	size, err := env.store.Size(entry.StoredPath)
	if err != nil || size != entry.Size {
		t.Errorf("оригинальный файл изменился: size=%d, err=%v", size, err)
	}
}

func TestRenditionCompress_QualityOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRenditionService(env.store, env.meta, env.logger)

	id := uploadPNG(t, env)
	entry := env.meta.GetFile(id)

	var buf bytes.Buffer
	for _, q := range []int{0, 101, -5} {
		if opErr := svc.Compress(&buf, entry, q); opErr == nil || opErr.StatusCode != 400 {
			t.Errorf("quality=%d: ожидался 400, получено %v", q, opErr)
		}
	}
}

func TestRenditionCompress_CorruptImage(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRenditionService(env.store, env.meta, env.logger)

	// Файл с MIME image/png, но без корректных PNG-данных
	id := uploadNamed(t, env, "broken.png", "", "image/png", "это не изображение")
	entry := env.meta.GetFile(id)

	var buf bytes.Buffer
	opErr := svc.Compress(&buf, entry, QualityDefault)
	if opErr == nil || opErr.StatusCode != 422 {
		t.Errorf("ожидался 422 для битого изображения, получено %v", opErr)
	}
}
