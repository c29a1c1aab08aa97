package scheduler

import (
	"context"
	"time"

	"tradewatch/internal/logger"
)

// TickScheduler runs a task every Interval until its context is done. Ticks are
// aligned to wall-clock multiples of Interval.
type TickScheduler struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewTickScheduler(ctx context.Context, name string, interval time.Duration) *TickScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &TickScheduler{
		Name:     name,
		Interval: interval,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

func (s *TickScheduler) prefix() string {
	if s.Name == "" {
		return "TickScheduler"
	}
	return "TickScheduler[" + s.Name + "]"
}

// Start blocks until the context is cancelled.
func (s *TickScheduler) Start(task func(now time.Time)) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("%s: task is nil, exit", s.prefix())
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("%s: invalid interval=%s, exit", s.prefix(), s.Interval)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn()
	logger.Infof("%s: started interval=%s run_immediately=%v at=%s",
		s.prefix(), s.Interval, s.RunImmediately, startAt.UTC().Format(time.RFC3339))

	if s.RunImmediately {
		task(s.nowFn())
	}

	for {
		now := s.nowFn()
		wakeAt, wait := s.nextTimes(now)
		logger.Debugf("%s: next tick at=%s (in %s) | uptime=%s",
			s.prefix(), wakeAt.UTC().Format(time.RFC3339), wait.Truncate(time.Millisecond),
			now.Sub(startAt).Truncate(time.Second))

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-s.ctx.Done():
				timer.Stop()
				logger.Infof("%s: ctx done, exit", s.prefix())
				return
			case <-timer.C:
			}
		} else if s.ctx.Err() != nil {
			logger.Infof("%s: ctx done, exit", s.prefix())
			return
		}
		task(s.nowFn())
	}
}

func (s *TickScheduler) nextTimes(now time.Time) (wakeAt time.Time, wait time.Duration) {
	wakeAt = now.Truncate(s.Interval).Add(s.Interval)
	return wakeAt, wakeAt.Sub(now)
}
