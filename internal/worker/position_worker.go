package worker

import (
	"context"
	"fmt"
	"time"

	"financeangle/internal/amqp"
	"financeangle/internal/core"
	"financeangle/internal/log"
)

// Recomputer rebuilds a stored monthly position from current snapshots.
type Recomputer interface {
	RecomputeStored(ctx context.Context, month core.Month) (core.AccountPosition, error)
}

// PositionWorker keeps monthly account positions in step with balance
// snapshots. Messages name the month; the data always comes from SQLite.
type PositionWorker struct {
	positions Recomputer
	logger    *log.Logger
	now       func() time.Time
}

func NewPositionWorker(positions Recomputer, logger *log.Logger) *PositionWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &PositionWorker{
		positions: positions,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// HandleRecompute processes one position recompute message from AMQP.
func (w *PositionWorker) HandleRecompute(ctx context.Context, msg *amqp.PositionRecomputeMessage) error {
	month, err := msg.TargetMonth()
	if err != nil {
		return fmt.Errorf("position recompute message: %w", err)
	}

	w.logger.InfoContext(ctx, "Processing recompute message",
		log.FieldMonth, month.String(),
		"reason", msg.Reason,
		"timestamp", msg.Timestamp)

	pos, err := w.positions.RecomputeStored(ctx, month)
	if err != nil {
		return fmt.Errorf("recompute %s: %w", month, err)
	}

	w.logger.InfoContext(ctx, "Position recomputed",
		log.FieldMonth, month.String(),
		log.FieldOperation, log.OpRecompute,
		"net_position", pos.Totals.NetPosition.String())
	return nil
}

// PeriodicRecompute refreshes the current month. It is the backup for lost
// messages and for months that see no snapshot changes at all.
func (w *PositionWorker) PeriodicRecompute(ctx context.Context) error {
	msg := amqp.NewPositionRecomputeMessage(core.MonthOf(w.now()), amqp.ReasonScheduled)
	return w.HandleRecompute(ctx, msg)
}

// RunPeriodic calls PeriodicRecompute once at start and then every interval
// until ctx is done. Failures are logged and retried on the next tick.
func (w *PositionWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	if err := w.PeriodicRecompute(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup recompute failed", log.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.PeriodicRecompute(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic recompute failed", log.FieldError, err)
			}
		}
	}
}
