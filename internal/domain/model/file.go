// Пакет model — доменные модели LAN Share.
// FileEntry — запись живого индекса, TrashEntry — запись корзины.
// Обе структуры сериализуются как есть в JSON-документы индексов
// (files.json и trash.json).
package model

import (
	"path"
	"strings"
	"time"
)

// FileEntry — метаданные одного живого файла в хранилище.
type FileEntry struct {
	// ID — уникальный идентификатор файла (UUID v4), первичный ключ
	ID string `json:"id"`

	// StoredPath — относительный путь файла внутри storage root.
	// Формат: {folder}/{id}_{имя}. Уникален среди живых записей,
	// никогда не меняется после загрузки.
	StoredPath string `json:"stored_path"`

	// OriginalName — пользовательское имя файла, меняется при rename
	OriginalName string `json:"original_name"`

	// Folder — логическая папка, сохранённая при загрузке ("" = корень)
	Folder string `json:"folder,omitempty"`

	// Size — размер файла в байтах (по фактически записанным данным)
	Size int64 `json:"size"`

	// MimeType — MIME-тип файла
	MimeType string `json:"mime_type"`

	// Checksum — SHA-256 хэш содержимого файла
	Checksum string `json:"checksum"`

	// CreatedAt — дата и время загрузки (UTC)
	CreatedAt time.Time `json:"created_at"`
}

// TrashEntry — запись корзины: удалённый FileEntry плюс окно восстановления.
// Физический файл существует всё время жизни записи.
type TrashEntry struct {
	FileEntry

	// DeletedAt — момент мягкого удаления (UTC)
	DeletedAt time.Time `json:"deleted_at"`

	// ExpiresAt — конец окна восстановления (DeletedAt + trash window)
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired проверяет, истекло ли окно восстановления.
func (t *TrashEntry) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TypeClass — класс файла для фильтрации списков и поиска.
type TypeClass string

const (
	// ClassImage — растровые изображения
	ClassImage TypeClass = "image"
	// ClassDocument — документы (PDF, офисные форматы)
	ClassDocument TypeClass = "document"
	// ClassText — текстовые файлы (plain, markdown, JSON, CSV)
	ClassText TypeClass = "text"
	// ClassMedia — аудио и видео
	ClassMedia TypeClass = "media"
	// ClassArchive — архивы
	ClassArchive TypeClass = "archive"
	// ClassOther — всё остальное
	ClassOther TypeClass = "other"
)

// Classify определяет класс файла по MIME-типу и имени.
func Classify(mimeType, name string) TypeClass {
	mt := strings.ToLower(mimeType)
	if i := strings.Index(mt, ";"); i != -1 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch {
	case strings.HasPrefix(mt, "image/"):
		return ClassImage
	case strings.HasPrefix(mt, "audio/"), strings.HasPrefix(mt, "video/"):
		return ClassMedia
	case mt == "application/pdf",
		mt == "application/msword",
		mt == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		mt == "application/vnd.ms-excel",
		mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mt == "application/vnd.ms-powerpoint",
		mt == "application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return ClassDocument
	case strings.HasPrefix(mt, "text/"), mt == "application/json":
		return ClassText
	case mt == "application/zip", mt == "application/gzip",
		mt == "application/x-tar", mt == "application/x-gzip":
		return ClassArchive
	}

	// MIME не определён — пробуем по расширению
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "png", "jpg", "jpeg", "gif", "webp":
		return ClassImage
	case "pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx":
		return ClassDocument
	case "txt", "md", "json", "csv":
		return ClassText
	case "mp3", "wav", "mp4", "avi", "mov":
		return ClassMedia
	case "zip", "tar", "gz":
		return ClassArchive
	}
	return ClassOther
}

// IsPreviewable проверяет, поддерживается ли предпросмотр для MIME-типа.
// Предпросмотр доступен для изображений, текстовых типов и PDF.
func IsPreviewable(mimeType string) bool {
	mt := strings.ToLower(mimeType)
	return strings.HasPrefix(mt, "image/") ||
		strings.HasPrefix(mt, "text/") ||
		mt == "application/json" ||
		mt == "application/pdf"
}
