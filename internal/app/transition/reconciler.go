package transition

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/toleubekov/kitchen-sync/internal/adapter/logger"
	"github.com/toleubekov/kitchen-sync/internal/config"
	"github.com/toleubekov/kitchen-sync/internal/interfaces"
)

// Reconciler periodically re-emits events whose ledger row was committed but
// never confirmed broadcast (crash between persist and fan-out). This bounds
// the window in which an order can be visible in the store yet invisible on
// kitchen screens. Re-emitted events carry the original event id so displays
// deduplicate.
type Reconciler struct {
	ledger      interfaces.BroadcastLedger
	broadcaster Broadcaster
	logger      logger.Logger
	cfg         config.TransitionConfig
	cron        *cron.Cron
}

func NewReconciler(ledger interfaces.BroadcastLedger, broadcaster Broadcaster, lgr logger.Logger, cfg config.TransitionConfig) *Reconciler {
	return &Reconciler{
		ledger:      ledger,
		broadcaster: broadcaster,
		logger:      lgr,
		cfg:         cfg,
		cron:        cron.New(cron.WithSeconds()),
	}
}

func (r *Reconciler) Start() error {
	if _, err := r.cron.AddFunc(r.cfg.SweepSchedule, r.Sweep); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("reconciler_started", "Broadcast reconciliation sweep started", "", map[string]interface{}{
		"schedule": r.cfg.SweepSchedule,
	})
	return nil
}

func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("reconciler_stopped", "Broadcast reconciliation sweep stopped", "", nil)
}

// Sweep runs one reconciliation pass. Exported so startup can run it once
// before accepting traffic.
func (r *Reconciler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, err := r.ledger.ListPending(ctx, r.cfg.SweepPendingAge(), r.cfg.SweepBatchLimit)
	if err != nil {
		r.logger.Error("sweep_failed", "Failed to list pending broadcasts", "", nil, err)
		return
	}

	for _, event := range events {
		seq := r.broadcaster.Publish(*event)
		if err := r.ledger.MarkBroadcast(ctx, event.ID); err != nil {
			r.logger.Error("sweep_mark_failed", "Failed to mark re-emitted event", event.OrderID, map[string]interface{}{
				"event_id": event.ID,
			}, err)
			continue
		}
		r.logger.Warn("event_reemitted", "Re-emitted event pending broadcast", event.OrderID, map[string]interface{}{
			"event_id":  event.ID,
			"tenant_id": event.TenantID,
			"sequence":  seq,
		})
	}
}
