package reservation

import (
	"context"
	"time"

	"tutorbook/pkg/logger"
)

// RunSweeper purges expired claims every interval until ctx is done.
func RunSweeper(ctx context.Context, lock Lock, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Reservation sweeper stopped")
			return
		case <-ticker.C:
			removed, err := lock.Sweep(ctx, time.Now())
			if err != nil {
				log.Error("Reservation sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Debug("Swept expired reservations", "removed", removed)
			}
		}
	}
}
