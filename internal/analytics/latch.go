package analytics

import (
	"sync"
	"time"
)

// latch remembers keys for a TTL. Fire succeeds once per key until the
// entry expires.
type latch struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newLatch(ttl, sweepEvery time.Duration, now func() time.Time) *latch {
	l := &latch{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.sweepLoop(sweepEvery)
	return l
}

// Fire reports whether key was not already latched, latching it.
func (l *latch) Fire(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if at, ok := l.seen[key]; ok && now.Sub(at) < l.ttl {
		return false
	}
	l.seen[key] = now
	return true
}

func (l *latch) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

func (l *latch) sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, at := range l.seen {
		if now.Sub(at) >= l.ttl {
			delete(l.seen, key)
		}
	}
}

func (l *latch) sweepLoop(every time.Duration) {
	defer close(l.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *latch) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}
