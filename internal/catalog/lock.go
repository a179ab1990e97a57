package catalog

import (
	"context"
	"sync"
	"time"
)

// Lock is the backoff shared by every request of one client. A 429 response
// installs it and all requests, including ones already in flight, wait on
// the same timer instead of sleeping independently.
type Lock struct {
	mu  sync.Mutex
	cur *backoff
}

type backoff struct {
	until time.Time
	done  chan struct{}
}

func (b *backoff) elapsed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

func NewLock() *Lock {
	return &Lock{}
}

// Extend installs a backoff that resumes at resumeAt once wait has passed.
// It never shortens an active backoff: a resume instant that is not later
// than the active one is ignored. Reports whether the backoff was installed.
func (l *Lock) Extend(resumeAt time.Time, wait time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur != nil && !l.cur.elapsed() && !resumeAt.After(l.cur.until) {
		return false
	}

	b := &backoff{until: resumeAt, done: make(chan struct{})}
	time.AfterFunc(wait, func() { close(b.done) })
	l.cur = b
	return true
}

// Wait blocks until no backoff is active. A waiter whose backoff was
// superseded while it slept joins the newer one; only the waiter of the
// backoff that is still current clears it.
func (l *Lock) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		b := l.cur
		l.mu.Unlock()

		if b == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
		}

		l.mu.Lock()
		if l.cur == b {
			l.cur = nil
		}
		l.mu.Unlock()
	}
}

// ResumeAt returns the resume instant of the active backoff, if any.
func (l *Lock) ResumeAt() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur == nil || l.cur.elapsed() {
		return time.Time{}, false
	}
	return l.cur.until, true
}
