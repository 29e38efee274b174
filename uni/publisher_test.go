// File: uni/publisher_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uni

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/fake"
)

func TestToPublisher_ItemThenComplete(t *testing.T) {
	sub := fake.NewSubscriber[int](1)
	ToPublisher(Of(5)).Subscribe(sub)

	if !sub.AwaitTerminal(time.Second) {
		t.Fatal("no terminal signal")
	}
	if items := sub.Items(); len(items) != 1 || items[0] != 5 {
		t.Fatalf("items = %v, want [5]", items)
	}
	if !sub.Completed() {
		t.Fatal("missing completion")
	}
}

func TestToPublisher_EmptyBecomesEmptyStream(t *testing.T) {
	sub := fake.NewSubscriber[int](api.Unbounded)
	ToPublisher(Empty[int]()).Subscribe(sub)

	if !sub.AwaitTerminal(time.Second) {
		t.Fatal("no terminal signal")
	}
	if len(sub.Items()) != 0 || !sub.Completed() {
		t.Fatalf("items=%v completed=%v", sub.Items(), sub.Completed())
	}
}

func TestToPublisher_FailurePropagates(t *testing.T) {
	boom := errors.New("boom")
	sub := fake.NewSubscriber[int](1)
	ToPublisher(Failure[int](boom)).Subscribe(sub)

	if !sub.AwaitTerminal(time.Second) {
		t.Fatal("no terminal signal")
	}
	if !errors.Is(sub.Err(), boom) {
		t.Fatalf("err = %v, want %v", sub.Err(), boom)
	}
}

// Upstream must not be touched before the first request.
func TestToPublisher_LazyUntilRequested(t *testing.T) {
	var subscribed atomic.Bool
	u := FromSupplier(func() (int, error) {
		subscribed.Store(true)
		return 1, nil
	})

	sub := fake.NewSubscriber[int](0) // requests nothing
	ToPublisher(u).Subscribe(sub)
	if subscribed.Load() {
		t.Fatal("upstream subscribed before any demand")
	}

	sub.Request(1)
	if !sub.AwaitTerminal(time.Second) {
		t.Fatal("no terminal signal after request")
	}
	if !subscribed.Load() {
		t.Fatal("upstream never subscribed")
	}
}

func TestToPublisher_InvalidRequestFails(t *testing.T) {
	for _, n := range []int64{0, -1} {
		sub := fake.NewSubscriber[int](0)
		ToPublisher(Of(1)).Subscribe(sub)
		sub.Request(n)
		if !errors.Is(sub.Err(), api.ErrIllegalDemand) {
			t.Fatalf("request(%d): err = %v, want ErrIllegalDemand", n, sub.Err())
		}
		if len(sub.Items()) != 0 {
			t.Fatalf("request(%d): unexpected items %v", n, sub.Items())
		}
	}
}

func TestToPublisher_CancelBeforeRequestSuppressesEverything(t *testing.T) {
	var subscribed atomic.Bool
	u := FromSupplier(func() (int, error) {
		subscribed.Store(true)
		return 1, nil
	})

	sub := fake.NewSubscriber[int](0)
	ToPublisher(u).Subscribe(sub)
	sub.Cancel()
	sub.Request(1)

	if subscribed.Load() {
		t.Fatal("cancelled subscription still fired upstream")
	}
	if sub.Terminal() || len(sub.Items()) != 0 {
		t.Fatalf("signals after cancel: items=%v terminal=%v", sub.Items(), sub.Terminal())
	}
}

func TestToPublisher_CancelPendingStopsDelivery(t *testing.T) {
	release := make(chan struct{})
	var handle atomic.Pointer[Emitter[int]]
	u := Create(func(e Emitter[int]) {
		handle.Store(&e)
		go func() {
			<-release
			e.Complete(1)
		}()
	})

	sub := fake.NewSubscriber[int](1)
	ToPublisher(u).Subscribe(sub)
	sub.Cancel()
	close(release)

	time.Sleep(50 * time.Millisecond)
	if sub.Terminal() || len(sub.Items()) != 0 {
		t.Fatalf("late outcome leaked: items=%v terminal=%v", sub.Items(), sub.Terminal())
	}
	if e := handle.Load(); e == nil || !(*e).IsCancelled() {
		t.Fatal("upstream emitter not cancelled")
	}
}

// Many racing requests must yield exactly one item and one completion.
func TestToPublisher_ConcurrentRequestsSingleDelivery(t *testing.T) {
	for run := 0; run < 100; run++ {
		sub := fake.NewSubscriber[int](0)
		ToPublisher(Of(run)).Subscribe(sub)

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sub.Request(1)
			}()
		}
		wg.Wait()

		if !sub.AwaitTerminal(time.Second) {
			t.Fatalf("run %d: no terminal", run)
		}
		if items := sub.Items(); len(items) != 1 || items[0] != run {
			t.Fatalf("run %d: items = %v", run, items)
		}
		if sub.ExtraTerminals != 0 || sub.ItemsAfterDone != 0 {
			t.Fatalf("run %d: protocol violations: %d terminals, %d late items",
				run, sub.ExtraTerminals, sub.ItemsAfterDone)
		}
	}
}
