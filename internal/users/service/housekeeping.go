package service

import (
	"context"
	"time"

	"github.com/opsarea/userd/internal/users/store"
	"github.com/opsarea/userd/pkg/slogx"
)

// defunctRetention is how long a token row outlives its expiry before the
// sweeper may remove it. Keeping expired rows around for a while preserves
// the audit trail of recent sessions.
const defunctRetention = 14 * 24 * time.Hour

// HousekeepingService periodically sweeps refresh tokens whose expiry is so
// far in the past that no validation outcome can depend on them anymore.
type HousekeepingService struct {
	store    store.Store
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHousekeepingService(s store.Store, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HousekeepingService{store: s, interval: interval}
}

// Start launches the sweep loop. One immediate sweep runs at startup so a
// long-idle database is cleaned without waiting a full interval.
func (h *HousekeepingService) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)

		h.sweep(ctx)

		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.sweep(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (h *HousekeepingService) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
}

func (h *HousekeepingService) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-defunctRetention)

	n, err := h.store.RefreshTokens().DeleteDefunct(ctx, cutoff)
	if err != nil {
		slogx.FromContext(ctx).Error("refresh token sweep failed", "error", err)
		return
	}
	if n > 0 {
		slogx.FromContext(ctx).Info("swept defunct refresh tokens", "deleted", n)
	}
}
