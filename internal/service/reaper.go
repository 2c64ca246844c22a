package service

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"checkout/internal/apperr"
	"checkout/internal/domain"
	"checkout/internal/repository"
)

const reaperConcurrency = 4

var pendingStatuses = []domain.PaymentStatus{
	domain.PaymentStatusCreated,
	domain.PaymentStatusAuthorized,
}

// Reaper cancels payments left in a non-terminal status for longer than
// the pending TTL.
type Reaper struct {
	payments *PaymentService
	repo     repository.PaymentRepository
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewReaper creates a new Reaper.
func NewReaper(payments *PaymentService, repo repository.PaymentRepository, ttl, interval time.Duration) *Reaper {
	return &Reaper{
		payments: payments,
		repo:     repo,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps on every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("Payment reaper started: ttl=%s interval=%s", r.ttl, r.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Payment reaper stopped")
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				log.Printf("Error sweeping stale payments: %v", err)
			} else if n > 0 {
				log.Printf("Cancelled %d stale payments", n)
			}
		}
	}
}

// Sweep cancels every stale payment once and returns how many it cancelled.
// Payments that are locked or already moved on are skipped.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	stale, err := r.repo.ListStale(ctx, pendingStatuses, r.now().Add(-r.ttl))
	if err != nil {
		return 0, err
	}

	var cancelled int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reaperConcurrency)

	for _, p := range stale {
		id := p.ID
		g.Go(func() error {
			_, err := r.payments.Cancel(gctx, id, "payment expired")
			switch {
			case err == nil:
				atomic.AddInt64(&cancelled, 1)
				return nil
			case errors.Is(err, apperr.ErrConflict):
				return nil
			default:
				return err
			}
		})
	}

	err = g.Wait()
	return int(cancelled), err
}
