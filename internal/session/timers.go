package session

import "time"

// schedule is a periodic deadline. it advances by its interval from the
// previous deadline, never from the tick that noticed it, so late ticks do
// not push later firings back.
type schedule struct {
	next     time.Time
	interval time.Duration
}

func (s *schedule) arm(now time.Time) {
	s.next = now.Add(s.interval)
}

func (s *schedule) armed() bool {
	return !s.next.IsZero()
}

// due fires at most once per call.
func (s *schedule) due(now time.Time) bool {
	if !s.armed() || now.Before(s.next) {
		return false
	}
	s.next = s.next.Add(s.interval)
	return true
}

type timers struct {
	keepAlive schedule
	chatCheck schedule
	// roomJoinDeadline is one-shot: zero until the session enters a room.
	roomJoinDeadline time.Time
}

func newTimers(cfg Config) timers {
	return timers{
		keepAlive: schedule{interval: cfg.KeepAliveInterval},
		chatCheck: schedule{interval: cfg.ChatCheckInterval},
	}
}
