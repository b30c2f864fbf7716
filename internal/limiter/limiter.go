package limiter

import (
	"runtime"
	"sync"
	"time"
)

// CPULimiter paces the fingerprint workers to cap aggregate CPU usage at
// a maximum percentage. Safe for concurrent use; all workers share one
// limiter.
type CPULimiter struct {
	maxPercent float64

	mu        sync.Mutex
	lastSleep time.Time
}

// NewCPULimiter creates a new CPU limiter. Percentages outside (0, 100)
// disable throttling.
func NewCPULimiter(maxPercent float64) *CPULimiter {
	return &CPULimiter{
		maxPercent: maxPercent,
		lastSleep:  time.Now(),
	}
}

// Throttle sleeps between files to keep CPU usage near maxPercent.
// Pacing happens only at file boundaries; a file is never interrupted
// mid-hash.
func (l *CPULimiter) Throttle() {
	if l.maxPercent <= 0 || l.maxPercent >= 100 {
		return
	}

	sleepPercent := 100.0 - l.maxPercent

	// Treat every 10ms of hashing as one work cycle and pay back the
	// proportional sleep share
	workTime := 10 * time.Millisecond
	sleepTime := time.Duration(float64(workTime) * (sleepPercent / l.maxPercent))

	l.mu.Lock()
	due := time.Since(l.lastSleep) > workTime
	if due {
		l.lastSleep = time.Now().Add(sleepTime)
	}
	l.mu.Unlock()

	if due {
		time.Sleep(sleepTime)
	}

	runtime.Gosched()
}
