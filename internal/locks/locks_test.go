package locks_test

import (
	"sync"
	"testing"

	"github.com/craftboard/platform/internal/locks"
)

func TestLockSerializesSameKey(t *testing.T) {
	m := locks.NewManager()

	const writers = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("list_42")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != writers {
		t.Fatalf("expected %d increments, got %d", writers, counter)
	}
}

func TestLockDifferentKeysIndependent(t *testing.T) {
	m := locks.NewManager()

	unlockA := m.Lock("list_1")
	defer unlockA()

	// A second key must still be acquirable while the first is held.
	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("pipeline_1")
		unlockB()
		close(done)
	}()
	<-done
}

func TestLockReleaseAllowsReacquire(t *testing.T) {
	m := locks.NewManager()

	unlock := m.Lock("record_7")
	unlock()

	unlock = m.Lock("record_7")
	unlock()
}
