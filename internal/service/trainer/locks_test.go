package trainer

import (
	"sync"
	"testing"
)

func TestSessionLocksSerialize(t *testing.T) {
	locks := newSessionLocks()

	var n int
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.acquire("session-a")
			defer unlock()
			n++
		}()
	}
	wg.Wait()

	if n != 64 {
		t.Fatalf("lost updates under the session lock: %d", n)
	}
}

func TestSessionLocksPerSession(t *testing.T) {
	locks := newSessionLocks()

	releaseA := locks.acquire("session-a")
	defer releaseA()

	// A held lock on one session must not block another session.
	done := make(chan struct{})
	go func() {
		unlock := locks.acquire("session-b")
		unlock()
		close(done)
	}()
	<-done

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.locks) != 2 {
		t.Fatalf("expected 2 session locks, got %d", len(locks.locks))
	}
}
