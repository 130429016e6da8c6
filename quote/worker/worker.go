package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
)

type Retrier interface {
	RetryNotifications(c context.Context, olderThan time.Duration, limit int) (int, error)
}

// NotificationWorker polls for quote requests whose admin email never went
// out and hands them back to the retrier.
type NotificationWorker struct {
	retrier   Retrier
	every     time.Duration
	olderThan time.Duration
	batch     int
}

func NewNotificationWorker(retrier Retrier, cfg config.Notification) *NotificationWorker {
	w := &NotificationWorker{retrier: retrier, every: cfg.RetryEvery, olderThan: cfg.RetryAfter, batch: cfg.RetryBatch}
	if w.every <= 0 {
		w.every = time.Minute
	}
	if w.batch <= 0 {
		w.batch = 50
	}
	return w
}

// Run polls until c is cancelled. The first round starts immediately.
func (w *NotificationWorker) Run(c context.Context) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "NotificationWorker Run").
		Str(log.KeyProcess, "retrying quote notifications").
		Dur("every", w.every).
		Logger()
	c = logger.WithContext(c)

	logger.Info().Msg("started retrying quote notifications")
	ticker := time.NewTicker(w.every)
	defer ticker.Stop()
	for {
		sent, err := w.retrier.RetryNotifications(c, w.olderThan, w.batch)
		switch {
		case err != nil && c.Err() == nil:
			logger.Error().Err(err).Msg(err.Error())
		case sent > 0:
			logger.Info().Int("sent", sent).Msg("retried quote notifications")
		}

		select {
		case <-c.Done():
			logger.Info().Msg("stopped retrying quote notifications")
			return
		case <-ticker.C:
		}
	}
}
