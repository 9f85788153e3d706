package app

import (
	"context"
	"time"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
)

const maintenanceStampKey = "maintenance_last_run"

// StartMaintenance subscribes to the auth-state stream and runs the
// session-start maintenance pass on each sign-in, at most once per day
// per owner. Overdue invoices are closed and due recurring definitions
// materialized opportunistically; there is no background scheduler.
func (a *App) StartMaintenance() {
	events, cancel := a.AuthWatcher.Subscribe()
	ctx, ctxCancel := context.WithCancel(context.Background())
	a.maintenanceStop = func() {
		cancel()
		ctxCancel()
	}

	go func() {
		for event := range events {
			if !event.SignedIn {
				continue
			}
			runSessionMaintenance(ctx, event.UserID, a.Storage.Users(), a.Invoices, a.Recurring, a.Logger, time.Now().UTC())
		}
	}()
}

// runSessionMaintenance closes overdue invoices and materializes due
// recurring definitions for one owner, guarded by a per-owner daily stamp.
func runSessionMaintenance(ctx context.Context, owner string, users interfaces.UserStore, invoices interfaces.InvoiceService, recurring interfaces.RecurringService, logger *common.Logger, now time.Time) {
	today := now.Format("2006-01-02")

	stamp, err := users.GetKV(ctx, owner, maintenanceStampKey)
	if err == nil && stamp == today {
		return
	}

	sessionCtx := common.WithSession(ctx, &common.Session{Owner: owner})

	closed, err := invoices.CloseOverdueInvoices(sessionCtx, now)
	if err != nil {
		logger.Warn().Err(err).Str("owner", owner).Msg("session maintenance: closing overdue invoices failed")
		return
	}

	materialized, err := recurring.ProcessDue(sessionCtx, now)
	if err != nil {
		logger.Warn().Err(err).Str("owner", owner).Msg("session maintenance: recurring materialization failed")
		return
	}

	if err := users.SetKV(ctx, owner, maintenanceStampKey, today); err != nil {
		logger.Warn().Err(err).Str("owner", owner).Msg("session maintenance: stamp write failed")
		return
	}

	logger.Info().
		Str("owner", owner).
		Int("invoices_closed", closed).
		Int("recurring_materialized", materialized).
		Msg("Session maintenance complete")
}
