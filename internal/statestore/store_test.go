package statestore

import (
	"sync"
	"testing"
)

func TestStore_GetSet(t *testing.T) {
	s := New(1)

	if got := s.Get(); got != 1 {
		t.Errorf("initial value = %d, want 1", got)
	}

	s.Set(2)
	if got := s.Get(); got != 2 {
		t.Errorf("after Set = %d, want 2", got)
	}
}

func TestStore_SubscribeObservesEverySet(t *testing.T) {
	s := New(0)

	var seen []int
	cancel := s.Subscribe(func(v int) { seen = append(seen, v) })
	defer cancel()

	s.Set(1)
	s.Set(2)
	s.Set(3)

	if len(seen) != 3 || seen[0] != 1 || seen[1] != 2 || seen[2] != 3 {
		t.Errorf("observed %v, want [1 2 3]", seen)
	}
}

func TestStore_CancelStopsNotifications(t *testing.T) {
	s := New(0)

	var calls int
	cancel := s.Subscribe(func(int) { calls++ })

	s.Set(1)
	cancel()
	s.Set(2)

	if calls != 1 {
		t.Errorf("calls = %d, want 1 after cancel", calls)
	}

	// Cancelling twice is harmless.
	cancel()
}

func TestStore_SubscriberMayCallGet(t *testing.T) {
	s := New(0)

	var observed int
	cancel := s.Subscribe(func(int) { observed = s.Get() })
	defer cancel()

	s.Set(7)
	if observed != 7 {
		t.Errorf("Get inside subscriber = %d, want 7", observed)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New(0)
	cancel := s.Subscribe(func(int) {})
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			s.Set(v)
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Get()
		}()
	}
	wg.Wait()
}
