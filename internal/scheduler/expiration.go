package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expiration_sweep_runs_total",
		Help: "Completed expiration sweep passes",
	})
	sweepOrders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiration_sweep_orders_total",
			Help: "Orders seen by the expiration sweep, by result",
		},
		[]string{"result"},
	)
)

// Sweeper periodically cancels orders whose payment deadline has passed.
type Sweeper struct {
	sweep    *usecase.ExpireOrders
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(sweep *usecase.ExpireOrders, interval time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{sweep: sweep, interval: interval, log: log}
}

// Start runs the sweep loop until ctx is cancelled. Non-blocking.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.log.Info("expiration sweeper stopped")
				return
			case <-t.C:
				s.runOnce(ctx)
			}
		}
	}()
}

func (s *Sweeper) runOnce(ctx context.Context) {
	stats := s.sweep.RunOnce(ctx)
	sweepRuns.Inc()
	sweepOrders.WithLabelValues("expired").Add(float64(stats.Expired))
	sweepOrders.WithLabelValues("skipped").Add(float64(stats.Skipped))
	sweepOrders.WithLabelValues("failed").Add(float64(stats.Failed))
	if stats.Scanned > 0 {
		s.log.Info("expiration sweep",
			"scanned", stats.Scanned, "expired", stats.Expired,
			"skipped", stats.Skipped, "failed", stats.Failed)
	}
}
