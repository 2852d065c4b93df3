package refresh

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type countingMounter struct {
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
	sawDL   atomic.Bool
}

func (m *countingMounter) Mount(ctx context.Context) {
	m.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		m.sawDL.Store(true)
	}
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	if _, err := New(&countingMounter{}, "every tuesday", 0, nil, nil); err == nil {
		t.Fatal("New() expected error for invalid schedule, got nil")
	}
}

func TestRunOnce_MountsAndRecordsLastRun(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	m := &countingMounter{}
	r, err := New(m, "*/5 * * * *", time.Second, nil, clock)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !r.RunOnce(context.Background()) {
		t.Fatal("RunOnce() = false, want true")
	}
	if got := m.calls.Load(); got != 1 {
		t.Errorf("Mount calls = %d, want 1", got)
	}
	if !m.sawDL.Load() {
		t.Error("Mount context had no deadline, want run timeout applied")
	}
	if !r.LastRun().Equal(clock.Now()) {
		t.Errorf("LastRun() = %v, want %v", r.LastRun(), clock.Now())
	}
}

func TestRunOnce_NoTimeout(t *testing.T) {
	m := &countingMounter{}
	r, err := New(m, "@hourly", 0, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	r.RunOnce(context.Background())
	if m.sawDL.Load() {
		t.Error("Mount context had a deadline, want none when timeout is zero")
	}
}

func TestRunOnce_SkipsWhileRunning(t *testing.T) {
	m := &countingMounter{block: make(chan struct{}), started: make(chan struct{}, 1)}
	r, err := New(m, "@hourly", 0, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan bool)
	go func() { done <- r.RunOnce(context.Background()) }()
	<-m.started

	if r.RunOnce(context.Background()) {
		t.Error("RunOnce() during a run = true, want false")
	}
	close(m.block)
	if !<-done {
		t.Error("first RunOnce() = false, want true")
	}
	if got := m.calls.Load(); got != 1 {
		t.Errorf("Mount calls = %d, want 1", got)
	}
}

func TestStartStop_RunsOnSchedule(t *testing.T) {
	m := &countingMounter{started: make(chan struct{}, 8)}
	r, err := New(m, "@every 1s", 0, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	r.Start()
	if r.Next().IsZero() {
		t.Error("Next() is zero after Start")
	}

	select {
	case <-m.started:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled Mount did not run within 3s")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
