package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/control"
)

func TestExecutor_RunsTasks(t *testing.T) {
	e := NewExecutor(4)
	defer e.Close()

	const tasks = 10_000
	var done atomic.Int64
	var wg sync.WaitGroup
	wg.Add(tasks)
	for i := 0; i < tasks; i++ {
		err := e.Submit(func() {
			done.Add(1)
			wg.Done()
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	waitDone(t, &wg, 5*time.Second)
	if done.Load() != tasks {
		t.Fatalf("ran %d tasks, want %d", done.Load(), tasks)
	}
}

func TestExecutor_SubmitAfterClose(t *testing.T) {
	e := NewExecutor(1)
	e.Close()
	if err := e.Submit(func() {}); err != api.ErrExecutorClosed {
		t.Fatalf("Submit after Close = %v, want ErrExecutorClosed", err)
	}
	// Close is idempotent.
	e.Close()
}

func TestExecutor_Resize(t *testing.T) {
	e := NewExecutor(2)
	defer e.Close()

	e.Resize(6)
	if got := e.NumWorkers(); got != 6 {
		t.Fatalf("NumWorkers after grow = %d, want 6", got)
	}
	e.Resize(1)
	if got := e.NumWorkers(); got != 1 {
		t.Fatalf("NumWorkers after shrink = %d, want 1", got)
	}

	// The remaining worker still executes tasks.
	var wg sync.WaitGroup
	wg.Add(1)
	if err := e.Submit(wg.Done); err != nil {
		t.Fatal(err)
	}
	waitDone(t, &wg, 2*time.Second)
}

func TestExecutor_PanicInTaskDoesNotKillWorker(t *testing.T) {
	e := NewExecutor(1)
	defer e.Close()

	_ = e.Submit(func() { panic("boom") })
	var wg sync.WaitGroup
	wg.Add(1)
	if err := e.Submit(wg.Done); err != nil {
		t.Fatal(err)
	}
	waitDone(t, &wg, 2*time.Second)
}

func TestExecutor_SnapshotInto(t *testing.T) {
	e := NewExecutor(3)
	defer e.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	_ = e.Submit(wg.Done)
	waitDone(t, &wg, 2*time.Second)

	reg := control.NewMetricsRegistry()
	if !reg.Updated().IsZero() {
		t.Fatal("fresh registry reports a write time")
	}
	e.SnapshotInto(reg)
	snap := reg.GetSnapshot()
	if snap["executor.workers"] != 3 {
		t.Fatalf("executor.workers = %v, want 3", snap["executor.workers"])
	}
	if snap["executor.submitted"].(uint64) < 1 {
		t.Fatal("executor.submitted not counted")
	}
	if v, ok := reg.Get("executor.workers"); !ok || v != 3 {
		t.Fatalf("Get(executor.workers) = %v, %v", v, ok)
	}
	if _, ok := reg.Get("executor.unknown"); ok {
		t.Fatal("Get reported a metric that was never set")
	}
	if reg.Updated().IsZero() {
		t.Fatal("snapshot publication did not stamp the write time")
	}
}

func waitDone(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timeout waiting for tasks")
	}
}
