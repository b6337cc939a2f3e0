// Пакет journal — файловый журнал незавершённых операций с файлами.
// Загрузка выполняется в два шага (запись на диск, затем запись в индекс),
// и сбой между шагами оставляет на диске осиротевший файл. Журнал
// фиксирует начало операции до первого побочного эффекта, поэтому
// при рестарте такие файлы находятся и удаляются.
// Каждая транзакция — отдельный файл {tx_id}.journal.json.
package journal

import (
	"time"
)

// OperationType — тип журналируемой операции.
type OperationType string

const (
	// OpUpload — приём нового файла
	OpUpload OperationType = "upload"
)

// TransactionStatus — статус транзакции журнала.
type TransactionStatus string

const (
	// StatusPending — операция начата и ещё не завершена
	StatusPending TransactionStatus = "pending"
	// StatusCommitted — операция успешно завершена
	StatusCommitted TransactionStatus = "committed"
	// StatusRolledBack — операция отменена
	StatusRolledBack TransactionStatus = "rolled_back"
)

// Entry — запись журнала. Хранится как JSON-файл {tx_id}.journal.json.
type Entry struct {
	// TransactionID — уникальный идентификатор транзакции (UUID v4)
	TransactionID string `json:"transaction_id"`

	// Operation — тип операции
	Operation OperationType `json:"operation"`

	// Status — текущий статус транзакции
	Status TransactionStatus `json:"status"`

	// FileID — идентификатор файла операции
	FileID string `json:"file_id"`

	// StoredPath — относительный путь файла внутри storage root.
	// По нему recovery находит и удаляет недописанный файл.
	StoredPath string `json:"stored_path"`

	// StartedAt — время начала операции (UTC)
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения операции (UTC).
	// nil для pending транзакций.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// entryFileName возвращает имя файла журнала для данной транзакции.
func entryFileName(txID string) string {
	return txID + ".journal.json"
}
