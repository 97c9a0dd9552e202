package services

import (
	"log"
	"sync"
	"time"
)

// TimerService runs at most one countdown per room code. Starting a countdown
// always supersedes whatever was running for that code, and cancellation is
// idempotent. Ticks fire once per second with the remaining time; expiry
// fires at most once when the countdown reaches zero and is suppressed once
// a cancel has been observed. A callback that is already executing when
// Cancel lands can still complete, so callers must key their callbacks to
// the countdown that armed them and discard superseded deliveries.
type TimerService struct {
	mu     sync.Mutex
	timers map[string]*countdown

	// tick interval, overridable in tests
	interval time.Duration
}

type countdown struct {
	stop chan struct{}
}

func NewTimerService() *TimerService {
	return &TimerService{
		timers:   make(map[string]*countdown),
		interval: time.Second,
	}
}

// Start begins a countdown of the given number of seconds for the room code,
// cancelling any countdown already running for it.
func (s *TimerService) Start(code string, seconds int, onTick func(remaining int), onExpire func()) {
	s.mu.Lock()
	s.cancelLocked(code)
	cd := &countdown{stop: make(chan struct{})}
	s.timers[code] = cd
	s.mu.Unlock()

	log.Printf("[TIMER] Started %ds countdown for room %s", seconds, code)
	go s.run(code, cd, seconds, onTick, onExpire)
}

func (s *TimerService) run(code string, cd *countdown, seconds int, onTick func(int), onExpire func()) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	remaining := seconds
	for {
		select {
		case <-cd.stop:
			return
		case <-ticker.C:
			remaining--
			if onTick != nil {
				onTick(remaining)
			}
			if remaining <= 0 {
				// A cancel may have landed while the final tick callback ran.
				select {
				case <-cd.stop:
					return
				default:
				}
				s.clear(code, cd)
				log.Printf("[TIMER] Countdown expired for room %s", code)
				onExpire()
				return
			}
		}
	}
}

// Cancel stops the countdown for the room code, if any.
func (s *TimerService) Cancel(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(code)
}

func (s *TimerService) cancelLocked(code string) {
	if cd, ok := s.timers[code]; ok {
		close(cd.stop)
		delete(s.timers, code)
	}
}

// clear drops the countdown entry, but only if it is still the current one
// for the code (a newer Start may already have replaced it).
func (s *TimerService) clear(code string, cd *countdown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timers[code] == cd {
		delete(s.timers, code)
	}
}

// Active reports whether a countdown is currently live for the room code.
func (s *TimerService) Active(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[code]
	return ok
}
