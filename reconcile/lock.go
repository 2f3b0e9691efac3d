package reconcile

import "sync"

// RunLock allows at most one pipeline run at a time.
type RunLock struct {
	mu sync.Mutex
}

// TryAcquire takes the lock without waiting. The returned release func is
// safe to call more than once.
func (l *RunLock) TryAcquire() (release func(), err error) {
	if !l.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}
