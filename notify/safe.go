package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"album-publisher/types"
)

// DefaultTimeout bounds a single notification
const DefaultTimeout = 15 * time.Second

// Safe wraps a Notifier so that it never fails and never blocks longer than
// its timeout. Errors are logged.
type Safe struct {
	next    Notifier
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewSafe wraps next; a zero timeout means DefaultTimeout
func NewSafe(next Notifier, timeout time.Duration, log logrus.FieldLogger) *Safe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Safe{next: next, timeout: timeout, log: log}
}

func (s *Safe) Notify(ctx context.Context, n types.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.next.Notify(ctx, n)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.WithError(err).WithField("subject", n.Subject).Error("Failed to send notification")
		}
	case <-ctx.Done():
		s.log.WithField("subject", n.Subject).Warn("Notification timed out, continuing")
	}
	return nil
}
