// Package worker hosts periodic background jobs.
package worker

import (
	"context"
	"time"

	pointsRepo "anoa.com/challengebot/internal/modules/points/repository"
	"anoa.com/challengebot/pkg/logger"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const reconcileTimeout = 2 * time.Minute

// DriftSource finds members whose cached balance disagrees with the ledger.
type DriftSource interface {
	Drift(ctx context.Context) ([]pointsRepo.Drift, error)
}

// Reconciler compares balances to ledger sums. It only reports, it never repairs.
type Reconciler struct {
	source DriftSource
	log    *zap.Logger
}

func NewReconciler(source DriftSource) *Reconciler {
	return &Reconciler{source: source, log: logger.WithComponent("reconcile")}
}

// Run returns the number of drifted balances.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	drifts, err := r.source.Drift(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range drifts {
		r.log.Warn("balance drifted from ledger",
			zap.String("guild_id", d.GuildID),
			zap.String("user_id", d.UserID),
			zap.Int("balance", d.Balance),
			zap.Int("ledger", d.Ledger),
		)
	}
	if len(drifts) == 0 {
		r.log.Debug("balances match ledger")
	}
	return len(drifts), nil
}

// Worker runs the reconciler on a fixed interval.
type Worker struct {
	sched gocron.Scheduler
	log   *zap.Logger
}

func Start(r *Reconciler, interval time.Duration) (*Worker, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
			defer cancel()
			if _, err := r.Run(ctx); err != nil {
				r.log.Error("reconciliation failed", zap.Error(err))
			}
		}),
		gocron.WithName("ledger-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	w := &Worker{sched: sched, log: logger.WithComponent("worker")}
	w.log.Info("reconcile worker started", zap.Duration("interval", interval))
	return w, nil
}

func (w *Worker) Stop() {
	if err := w.sched.Shutdown(); err != nil {
		w.log.Warn("worker shutdown", zap.Error(err))
	}
}
