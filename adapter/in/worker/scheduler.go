package worker

import (
	"context"
	"time"

	"github.com/pretzelai/email-use/core/service/discovery"
	"github.com/pretzelai/email-use/pkg/logger"
)

// SweepScheduler fires the recurring discovery sweep. Each tick enqueues
// one discovery job per connected mailbox; the queue delivers them
// at-least-once and the ledger absorbs duplicate ticks.
type SweepScheduler struct {
	discovery     *discovery.Service
	checkInterval time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewSweepScheduler creates a new sweep scheduler.
func NewSweepScheduler(discoverySvc *discovery.Service, interval time.Duration) *SweepScheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SweepScheduler{
		discovery:     discoverySvc,
		checkInterval: interval,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start starts the scheduler.
func (s *SweepScheduler) Start() {
	logger.Info("[SweepScheduler] Starting with interval %v", s.checkInterval)
	go s.run()
}

// Stop stops the scheduler.
func (s *SweepScheduler) Stop() {
	logger.Info("[SweepScheduler] Stopping...")
	s.cancel()
}

func (s *SweepScheduler) run() {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[SweepScheduler] Stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *SweepScheduler) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Minute)
	defer cancel()

	n, err := s.discovery.DiscoverAll(ctx)
	if err != nil {
		logger.Error("[SweepScheduler] Sweep failed: %v", err)
		return
	}
	if n > 0 {
		logger.Info("[SweepScheduler] Enqueued discovery for %d users", n)
	}
}
