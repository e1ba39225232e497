package service

import (
	"context"
	"time"

	"tutorbook/pkg/logger"
)

// RunAdvancer calls AdvanceDue every interval until ctx is done.
func RunAdvancer(ctx context.Context, svc BookingService, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Booking advancer stopped")
			return
		case <-ticker.C:
			advanced, err := svc.AdvanceDue(ctx, time.Now())
			if err != nil && ctx.Err() == nil {
				log.Error("Advancing due bookings failed", "advanced", advanced, "error", err)
				continue
			}
			if advanced > 0 {
				log.Info("Advanced due bookings", "advanced", advanced)
			}
		}
	}
}
