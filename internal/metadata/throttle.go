package metadata

import (
	"sync"
	"time"
)

const DefaultFetchWindow = 5 * time.Minute

// FetchThrottle suppresses repeated metadata fetches for the same anime
// inside a quiet window.
type FetchThrottle struct {
	mu     sync.Mutex
	window time.Duration
	last   map[int]time.Time
	now    func() time.Time
}

func NewFetchThrottle(window time.Duration) *FetchThrottle {
	if window <= 0 {
		window = DefaultFetchWindow
	}
	return &FetchThrottle{window: window, last: make(map[int]time.Time), now: time.Now}
}

// TryAcquire records a fetch for animeID and reports whether it may
// proceed. force always proceeds.
func (t *FetchThrottle) TryAcquire(animeID int, force bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.last[animeID]; ok && !force && now.Sub(last) < t.window {
		return false
	}
	t.last[animeID] = now
	t.sweep(now)
	return true
}

// Release forgets the last fetch so a failed attempt can be retried at once.
func (t *FetchThrottle) Release(animeID int) {
	t.mu.Lock()
	delete(t.last, animeID)
	t.mu.Unlock()
}

func (t *FetchThrottle) sweep(now time.Time) {
	for id, last := range t.last {
		if now.Sub(last) >= t.window {
			delete(t.last, id)
		}
	}
}
