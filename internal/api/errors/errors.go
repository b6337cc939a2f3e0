// Пакет errors — конструкторы стандартных ошибок HTTP API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // TODO: переименовать пакет errors, конфликт со stdlib

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeInvalidPath         = "INVALID_PATH"
	CodeInvalidName         = "INVALID_NAME"
	CodeInvalidType         = "INVALID_TYPE"
	CodeNotFound            = "NOT_FOUND"
	CodeTrashExpired        = "TRASH_EXPIRED"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeUnsupportedPreview  = "UNSUPPORTED_PREVIEW"
	CodeUnsupportedType     = "UNSUPPORTED_TYPE"
	CodeStorageError        = "STORAGE_ERROR"
	CodeReconcileInProgress = "RECONCILE_IN_PROGRESS"
	CodeInternalError       = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// InvalidPath — 400 путь выходит за пределы хранилища.
func InvalidPath(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidPath, message)
}

// InvalidName — 400 недопустимое имя файла.
func InvalidName(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidName, message)
}

// InvalidType — 400 расширение файла не входит в список разрешённых.
func InvalidType(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidType, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// TrashExpired — 410 окно восстановления истекло.
func TrashExpired(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusGone, CodeTrashExpired, message)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// UnsupportedPreview — 415 предпросмотр для этого типа не поддерживается.
func UnsupportedPreview(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnsupportedMediaType, CodeUnsupportedPreview, message)
}

// UnsupportedType — 415 сжатие для этого типа не поддерживается.
func UnsupportedType(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnsupportedMediaType, CodeUnsupportedType, message)
}

// StorageError — 500 ошибка файловой системы.
func StorageError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeStorageError, message)
}

// ReconcileInProgress — 409 сверка уже выполняется.
func ReconcileInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeReconcileInProgress, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
