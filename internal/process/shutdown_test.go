// SPDX-License-Identifier: MPL-2.0

package process

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
)

func TestShutdownRegistry_Register(t *testing.T) {
	t.Parallel()

	r := NewShutdownRegistry()
	noop := func() error { return nil }

	if !r.Register("a", noop) {
		t.Fatal("Register(a) = false, want true")
	}
	if r.Register("a", noop) {
		t.Error("duplicate Register(a) = true, want false")
	}
	if !r.Registered("a") || r.Registered("b") {
		t.Error("Registered() does not reflect registrations")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if !r.Unregister("a") || r.Unregister("a") {
		t.Error("Unregister(a) should succeed exactly once")
	}
	if r.Len() != 0 {
		t.Errorf("Len() after Unregister = %d, want 0", r.Len())
	}
}

func TestShutdownRegistry_ShutdownRunsEachHookOnce(t *testing.T) {
	t.Parallel()

	r := NewShutdownRegistry()
	var mu sync.Mutex
	var calls []string
	for _, id := range []string{"first", "second", "third"} {
		r.Register(id, func() error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, id)
			return nil
		})
	}

	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := r.Shutdown(); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}

	want := []string{"third", "second", "first"}
	if !slices.Equal(calls, want) {
		t.Errorf("hook calls = %v, want %v", calls, want)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after Shutdown = %d, want 0", r.Len())
	}
}

func TestShutdownRegistry_ShutdownJoinsErrors(t *testing.T) {
	t.Parallel()

	r := NewShutdownRegistry()
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	ran := 0
	r.Register("a", func() error { ran++; return errA })
	r.Register("b", func() error { ran++; return nil })
	r.Register("c", func() error { ran++; return errC })

	err := r.Shutdown()
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Errorf("Shutdown() error = %v, want both hook errors", err)
	}
	if ran != 3 {
		t.Errorf("hooks run = %d, want 3", ran)
	}
}

func TestShutdownRegistry_Concurrent(t *testing.T) {
	t.Parallel()

	r := NewShutdownRegistry()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(fmt.Sprintf("id-%d", i), func() error { return nil })
		}()
	}
	wg.Wait()
	if r.Len() != 50 {
		t.Errorf("Len() = %d, want 50", r.Len())
	}
}
