package subscription

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const sweepBatchSize = 500

// SweepExpired transitions every ACTIVE subscription whose end date lies in
// the past to EXPIRED and returns how many rows changed. Batched so the scan
// never holds a long lock; a second immediate run changes nothing.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	var total int64
	cutoff := today()

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, err := s.repo.ExpireDueBatch(cutoff, sweepBatchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < sweepBatchSize {
			break
		}
	}

	if total > 0 {
		log.Infof("expiry sweep transitioned %d subscriptions to EXPIRED", total)
	}
	return total, nil
}

// StartSweeper runs SweepExpired once immediately and then on every tick of
// the given interval until ctx is canceled. Intended to be launched once from
// the application entrypoint.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	go func() {
		if _, err := s.SweepExpired(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("expiry sweep failed: %v", err)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepExpired(ctx); err != nil && ctx.Err() == nil {
					log.Errorf("expiry sweep failed: %v", err)
				}
			}
		}
	}()
}
