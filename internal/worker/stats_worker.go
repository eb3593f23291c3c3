package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"penny/internal/amqp"
	"penny/internal/core"
	"penny/internal/log"
	"penny/internal/storage"
)

// StatsWorker keeps the monthly_stats cache current. It consumes refresh
// messages published on writes and runs a periodic sweep as a backup for
// lost messages.
type StatsWorker struct {
	storage   *storage.SQLiteRepository
	client    *amqp.Client
	logger    *log.Logger
	batchSize int
	interval  time.Duration
}

func NewStatsWorker(storage *storage.SQLiteRepository, client *amqp.Client, logger *log.Logger, batchSize int, interval time.Duration) *StatsWorker {
	return &StatsWorker{
		storage:   storage,
		client:    client,
		logger:    logger.WithComponent(log.ComponentWorker),
		batchSize: batchSize,
		interval:  interval,
	}
}

// HandleRefreshMessage recomputes the cached totals named by one message.
func (w *StatsWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.StatsRefreshMessage) error {
	if err := w.storage.RefreshMonthlyStats(ctx, msg.UserID, msg.Month); err != nil {
		return fmt.Errorf("refresh monthly stats: %w", err)
	}

	w.logger.InfoContext(ctx, "Stats refreshed",
		log.FieldUserID, msg.UserID,
		log.FieldMonth, msg.Month)

	return nil
}

// RefreshAll sweeps every user's active months plus the current month. At
// most batchSize rows are refreshed per call so a large backlog cannot
// monopolize the single database connection.
func (w *StatsWorker) RefreshAll(ctx context.Context) error {
	userIDs, err := w.storage.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	currentMonth := core.MonthKey(time.Now())
	refreshed := 0

	for _, userID := range userIDs {
		if refreshed >= w.batchSize {
			break
		}

		months, err := w.storage.ActiveMonths(ctx, userID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to list active months",
				log.FieldUserID, userID,
				log.FieldError, err)
			continue
		}

		seen := false
		for _, m := range months {
			if m == currentMonth {
				seen = true
			}
		}
		if !seen {
			months = append([]string{currentMonth}, months...)
		}

		for _, month := range months {
			if refreshed >= w.batchSize {
				break
			}
			if err := w.storage.RefreshMonthlyStats(ctx, userID, month); err != nil {
				w.logger.ErrorContext(ctx, "Failed to refresh stats",
					log.FieldUserID, userID,
					log.FieldMonth, month,
					log.FieldError, err)
				continue
			}
			refreshed++
		}
	}

	if refreshed > 0 {
		w.logger.InfoContext(ctx, "Sweep completed", "refreshed", refreshed)
	}

	return nil
}

// Run blocks until ctx is cancelled, driving the consume loop and the
// periodic sweep concurrently.
func (w *StatsWorker) Run(ctx context.Context) error {
	// Catch up before taking live traffic.
	if err := w.RefreshAll(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sweep failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.client.ConsumeStatsRefresh(ctx, func(msg *amqp.StatsRefreshMessage) error {
			return w.HandleRefreshMessage(ctx, msg)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.RefreshAll(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Periodic sweep failed", log.FieldError, err)
				}
			}
		}
	})

	return g.Wait()
}
