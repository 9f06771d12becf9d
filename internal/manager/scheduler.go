package manager

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"nodectl/pkg/logging"
)

// AttachScheduler queues the detached post-start network attachment for
// an instance. Tasks are fire-and-forget: after the delay they re-check
// what is actually running, attach idempotently and only log. The
// invoking operation has long since returned.
type AttachScheduler struct {
	clock    clock.Clock
	delay    time.Duration
	attacher LiveAttacher
}

func NewAttachScheduler(clk clock.Clock, delay time.Duration, attacher LiveAttacher) *AttachScheduler {
	return &AttachScheduler{clock: clk, delay: delay, attacher: attacher}
}

// ScheduleAttach arms the delayed attachment for name.
func (s *AttachScheduler) ScheduleAttach(name string) {
	task := uuid.NewString()[:8]
	logging.Info(subsystem, "Scheduled network attachment for %s in %s (task %s)", name, s.delay, task)
	s.clock.AfterFunc(s.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.attacher.AttachLive(ctx, name); err != nil {
			logging.Error(subsystem, err, "Detached attachment for %s failed (task %s)", name, task)
			return
		}
		logging.Debug(subsystem, "Detached attachment for %s done (task %s)", name, task)
	})
}
