package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TimerScheduler keeps reminders in process memory. Pending reminders are
// lost on restart; it is the fallback when no Redis is configured.
type TimerScheduler struct {
	sender  SMSSender
	logger  zerolog.Logger
	timeout time.Duration

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
	wg      sync.WaitGroup
}

func NewTimerScheduler(sender SMSSender, logger zerolog.Logger) *TimerScheduler {
	return &TimerScheduler{
		sender:  sender,
		logger:  logger.With().Str("component", "reminder-timer").Logger(),
		timeout: 30 * time.Second,
		timers:  make(map[*time.Timer]struct{}),
	}
}

func (s *TimerScheduler) Schedule(_ context.Context, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}

	var t *time.Timer
	s.wg.Add(1)
	t = time.AfterFunc(time.Until(r.At), func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		s.deliver(r)
	})
	s.timers[t] = struct{}{}
	return nil
}

func (s *TimerScheduler) deliver(r Reminder) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.sender.SendSMS(ctx, r.Number, r.Text); err != nil {
		s.logger.Error().Err(err).Str("to", r.Number).Msg("send reminder failed")
		return
	}
	s.logger.Info().Str("to", r.Number).Msg("reminder sent")
}

// Pending reports how many reminders are waiting for their timer.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels pending reminders and waits for in-flight sends.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, t)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
