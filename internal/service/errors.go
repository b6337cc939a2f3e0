// Пакет service — бизнес-логика файлового сервиса.
// errors.go — типизированная ошибка сервисного слоя с HTTP-кодом.
package service

import (
	"fmt"

	apierrors "github.com/bigkaa/lanshare/internal/api/errors"
)

// OpError — ошибка операции с HTTP-кодом и машиночитаемым кодом.
// Handlers транслируют её в ответ через apierrors.WriteError.
type OpError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Конструкторы типичных ошибок сервисного слоя ---

func errNotFound(message string) *OpError {
	return &OpError{StatusCode: 404, Code: apierrors.CodeNotFound, Message: message}
}

func errInvalidPath(message string) *OpError {
	return &OpError{StatusCode: 400, Code: apierrors.CodeInvalidPath, Message: message}
}

func errInvalidName(message string) *OpError {
	return &OpError{StatusCode: 400, Code: apierrors.CodeInvalidName, Message: message}
}

func errInternal(message string) *OpError {
	return &OpError{StatusCode: 500, Code: apierrors.CodeInternalError, Message: message}
}

func errStorage(message string) *OpError {
	return &OpError{StatusCode: 500, Code: apierrors.CodeStorageError, Message: message}
}
