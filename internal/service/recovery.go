// recovery.go — разбор журнала загрузок после некорректного завершения.
//
// Pending-транзакция не всегда означает недописанный файл: коммит
// журнала выполняется после записи в живой индекс, и сбой между этими
// шагами оставляет pending-запись для полностью завершённой загрузки.
// Поэтому перед удалением файла журнал сверяется с живым индексом.
package service

import (
	"fmt"
	"log/slog"

	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/journal"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
)

// RecoverUploads разбирает незавершённые транзакции журнала.
// Транзакция, чей файл уже числится в живом индексе, дофиксируется:
// загрузка успела завершиться, физический файл не трогается.
// Остальные pending-транзакции откатываются вместе с недописанными
// файлами. Финализированные записи журнала в конце вычищаются.
func RecoverUploads(
	jrnl *journal.Journal,
	store *filestore.FileStore,
	meta *metastore.Store,
	logger *slog.Logger,
) error {
	log := logger.With(slog.String("component", "recovery"))

	pending, err := jrnl.RecoverPending()
	if err != nil {
		return fmt.Errorf("чтение журнала: %w", err)
	}

	if len(pending) > 0 {
		log.Warn("Обнаружены незавершённые загрузки",
			slog.Int("count", len(pending)),
		)
	}

	for _, entry := range pending {
		if entry.FileID != "" && meta.GetFile(entry.FileID) != nil {
			if cErr := jrnl.Commit(entry.TransactionID); cErr != nil {
				log.Error("Ошибка дофиксации транзакции",
					slog.String("tx_id", entry.TransactionID),
					slog.String("error", cErr.Error()),
				)
				continue
			}
			log.Info("Загрузка уже в живом индексе, транзакция дофиксирована",
				slog.String("tx_id", entry.TransactionID),
				slog.String("file_id", entry.FileID),
			)
			continue
		}

		if entry.StoredPath != "" {
			if rmErr := store.Delete(entry.StoredPath); rmErr != nil {
				log.Error("Ошибка удаления недописанного файла",
					slog.String("stored_path", entry.StoredPath),
					slog.String("error", rmErr.Error()),
				)
			}
		}
		if rbErr := jrnl.Rollback(entry.TransactionID); rbErr != nil {
			log.Error("Ошибка отката транзакции",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
			continue
		}
		log.Info("Загрузка откачена",
			slog.String("tx_id", entry.TransactionID),
			slog.String("file_id", entry.FileID),
		)
	}

	if cleaned, cleanErr := jrnl.CleanFinished(); cleanErr != nil {
		log.Warn("Ошибка очистки журнала", slog.String("error", cleanErr.Error()))
	} else if cleaned > 0 {
		log.Info("Журнал очищен", slog.Int("cleaned", cleaned))
	}

	return nil
}
