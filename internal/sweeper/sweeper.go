// Package sweeper periodically expires overdue signature requests.
package sweeper

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"

	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
)

// Expirer is the batch operation the sweeper triggers.
type Expirer interface {
	ProcessExpiredRequests(ctx context.Context) ([]*model.SignatureRequest, error)
}

// Sweeper runs Expirer on a cron schedule. Runs never overlap.
type Sweeper struct {
	svc      Expirer
	schedule string
	timeout  time.Duration
	log      *zap.Logger
	running  atomic.Bool
}

// New validates schedule (cron with seconds or a descriptor such as "@every 5m").
func New(svc Expirer, schedule string, timeout time.Duration, log *zap.Logger) (*Sweeper, error) {
	if _, err := cron.Parse(schedule); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w: %v", schedule, errs.ErrConfiguration, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{svc: svc, schedule: schedule, timeout: timeout, log: log}, nil
}

// RunOnce performs one sweep unless another is in progress. It reports whether it ran.
func (s *Sweeper) RunOnce(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug("sweep skipped, previous run still active")
		return false
	}
	defer s.running.Store(false)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	expired, err := s.svc.ProcessExpiredRequests(ctx)
	if err != nil {
		s.log.Error("sweep failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return true
	}
	s.log.Debug("sweep done", zap.Int("expired", len(expired)), zap.Duration("duration", time.Since(start)))
	return true
}

// Run schedules sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New()
	if err := c.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("sweep schedule: %w", err)
	}
	s.log.Info("sweeper started", zap.String("schedule", s.schedule))
	c.Start()
	<-ctx.Done()
	c.Stop()
	s.log.Info("sweeper stopped")
	return nil
}
