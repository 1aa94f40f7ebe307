package backup

import (
	"context"
	"time"

	"github.com/inkleaf/inkleaf/internal/logging"
)

// Scheduler runs backup rotation after save notifications and, optionally,
// on a fixed interval. Rotation failures are logged, never fatal to the
// caller's save path.
type Scheduler struct {
	rotator     *Rotator
	archivePath string
	interval    time.Duration
	saveCh      chan struct{}
	stopCh      chan struct{}
}

// NewScheduler creates a scheduler. interval <= 0 disables the ticker; the
// scheduler then only reacts to NotifySaved.
func NewScheduler(rotator *Rotator, archivePath string, interval time.Duration) *Scheduler {
	return &Scheduler{
		rotator:     rotator,
		archivePath: archivePath,
		interval:    interval,
		saveCh:      make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the rotation loop. It returns immediately; the loop runs
// until Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	var tick <-chan time.Time
	var ticker *time.Ticker
	if s.interval > 0 {
		ticker = time.NewTicker(s.interval)
		tick = ticker.C
	}

	logging.Info("backup scheduler started", map[string]interface{}{
		"archive":  s.archivePath,
		"interval": s.interval.String(),
	})

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-s.saveCh:
				s.rotate()
			case <-tick:
				s.rotate()
			case <-s.stopCh:
				logging.Info("backup scheduler stopped")
				return
			case <-ctx.Done():
				logging.Info("backup scheduler context cancelled")
				return
			}
		}
	}()
}

// Stop shuts down the rotation loop.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// NotifySaved queues a rotation after a successful archive save. Never
// blocks; a rotation already queued is enough.
func (s *Scheduler) NotifySaved() {
	select {
	case s.saveCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) rotate() {
	if err := s.rotator.Rotate(s.archivePath); err != nil {
		logging.Error("backup rotation failed", err, map[string]interface{}{
			"archive": s.archivePath,
		})
	}
}
