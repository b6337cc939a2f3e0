// maintenance.go — обработчик POST /api/v1/maintenance/reconcile.
package handlers

import (
	"net/http"

	"github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/service"
)

// ReconcileRunner — интерфейс для запуска сверки хранилища.
// Позволяет тестировать handler без полного ReconcileService.
type ReconcileRunner interface {
	// RunOnce выполняет один цикл сверки.
	// Возвращает отчёт и флаг "уже выполняется".
	RunOnce() (*service.ReconcileReport, bool)
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	reconciler ReconcileRunner
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(reconciler ReconcileRunner) *MaintenanceHandler {
	return &MaintenanceHandler{reconciler: reconciler}
}

// Reconcile обрабатывает POST /api/v1/maintenance/reconcile.
// Запускает синхронный цикл сверки и возвращает отчёт.
// Если сверка уже выполняется — 409 RECONCILE_IN_PROGRESS.
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, _ *http.Request) {
	report, inProgress := h.reconciler.RunOnce()
	if inProgress {
		errors.ReconcileInProgress(w, "Сверка уже выполняется")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
