package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAddAndFire(t *testing.T) {
	var mu sync.Mutex
	var calls int

	sched := New(nil)
	err := sched.Add("assign", "@every 1s", func(context.Context) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d", sched.JobCount())
	}

	// Start cron and wait for it to fire
	sched.cron.Start()
	time.Sleep(1500 * time.Millisecond)
	sched.cron.Stop()

	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Error("expected at least one call")
	}
}

func TestInvalidSchedule(t *testing.T) {
	sched := New(nil)
	err := sched.Add("assign", "invalid-cron", func(context.Context) {})
	if err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestAddReplacesJob(t *testing.T) {
	sched := New(nil)
	sched.Add("assign", "@every 1h", func(context.Context) {})
	sched.Add("assign", "@every 2h", func(context.Context) {})

	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d, same name should replace", sched.JobCount())
	}
}

func TestRemove(t *testing.T) {
	sched := New(nil)
	sched.Add("assign", "@every 1h", func(context.Context) {})
	sched.Add("archives", "@every 2h", func(context.Context) {})

	sched.Remove("assign")
	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d after remove", sched.JobCount())
	}
	sched.Remove("ghost")
	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d, removing unknown name must be a no-op", sched.JobCount())
	}
}

func TestStartStops(t *testing.T) {
	sched := New(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
