package handler

import "time"

// AttemptLimiter caps hello attempts per remote host per minute.
// Game loop only.
type AttemptLimiter struct {
	perMinute int
	windows   map[string]*attemptWindow
	now       func() time.Time
}

type attemptWindow struct {
	start time.Time
	count int
}

// NewAttemptLimiter returns a limiter; perMinute <= 0 disables it.
func NewAttemptLimiter(perMinute int) *AttemptLimiter {
	return &AttemptLimiter{
		perMinute: perMinute,
		windows:   make(map[string]*attemptWindow),
		now:       time.Now,
	}
}

// Allow records an attempt from host and reports whether it is within budget.
func (l *AttemptLimiter) Allow(host string) bool {
	if l == nil || l.perMinute <= 0 {
		return true
	}
	now := l.now()
	w, ok := l.windows[host]
	if !ok || now.Sub(w.start) >= time.Minute {
		l.windows[host] = &attemptWindow{start: now, count: 1}
		l.prune(now)
		return true
	}
	w.count++
	return w.count <= l.perMinute
}

func (l *AttemptLimiter) prune(now time.Time) {
	for host, w := range l.windows {
		if now.Sub(w.start) >= time.Minute {
			delete(l.windows, host)
		}
	}
}
