// File: multi/multi_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package multi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/fake"
)

func collectAll[T any](t *testing.T, m Multi[T]) []T {
	t.Helper()
	items, present, err := Collect(m).Await(context.Background())
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if !present {
		t.Fatal("collect yielded no outcome")
	}
	return items
}

func TestMulti_RangeEmitsAll(t *testing.T) {
	items := collectAll(t, Range(1, 5))
	want := []int{1, 2, 3, 4, 5}
	if len(items) != len(want) {
		t.Fatalf("items = %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("items = %v, want %v", items, want)
		}
	}
}

func TestMulti_EmptyAndFailed(t *testing.T) {
	if items := collectAll(t, Empty[int]()); len(items) != 0 {
		t.Fatalf("empty stream yielded %v", items)
	}

	boom := errors.New("boom")
	_, _, err := Collect(Failure[int](boom)).Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestMulti_ZeroValueIsEmpty(t *testing.T) {
	var m Multi[string]
	if items := collectAll(t, m); len(items) != 0 {
		t.Fatalf("zero Multi yielded %v", items)
	}
}

// A source must deliver exactly min(demand, available) items and hold the
// rest until more demand arrives.
func TestMulti_SourceHonorsDemand(t *testing.T) {
	sub := fake.NewSubscriber[int](2)
	Range(0, 10).Subscribe(sub)

	if items := sub.Items(); len(items) != 2 {
		t.Fatalf("delivered %v with demand 2", items)
	}
	sub.Request(3)
	if items := sub.Items(); len(items) != 5 {
		t.Fatalf("delivered %v after 2+3 requests", items)
	}
	if sub.Terminal() {
		t.Fatal("terminated with demand outstanding only for 5 of 10 items")
	}
	sub.Request(api.Unbounded)
	if !sub.AwaitTerminal(time.Second) {
		t.Fatal("no completion after unbounded request")
	}
	if items := sub.Items(); len(items) != 10 {
		t.Fatalf("delivered %v, want all 10", items)
	}
}

func TestMulti_IllegalDemandFailsStream(t *testing.T) {
	sub := fake.NewSubscriber[int](0)
	Range(0, 3).Subscribe(sub)
	sub.Request(0)
	if !errors.Is(sub.Err(), api.ErrIllegalDemand) {
		t.Fatalf("err = %v, want ErrIllegalDemand", sub.Err())
	}
}

func TestMulti_CancelStopsEmission(t *testing.T) {
	sub := fake.NewSubscriber[int](3)
	Range(0, 100).Subscribe(sub)
	sub.Cancel()
	sub.Request(50)
	if items := sub.Items(); len(items) != 3 {
		t.Fatalf("items after cancel: %v", items)
	}
	if sub.Terminal() {
		t.Fatal("cancelled stream must not emit a terminal signal")
	}
}

func TestMulti_MapTransforms(t *testing.T) {
	doubled := collectAll(t, Map(Range(1, 3), func(v int) (int, error) {
		return v * 2, nil
	}))
	if len(doubled) != 3 || doubled[0] != 2 || doubled[1] != 4 || doubled[2] != 6 {
		t.Fatalf("doubled = %v", doubled)
	}
}

func TestMulti_MapErrorCancelsUpstream(t *testing.T) {
	boom := errors.New("boom")
	src := fake.NewSource(1, 2, 3, 4)
	m := Map(New(src.Subscribe), func(v int) (int, error) {
		if v == 3 {
			return 0, boom
		}
		return v, nil
	})
	_, _, err := Collect(m).Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if src.Cancels() == 0 {
		t.Fatal("mapper failure did not cancel upstream")
	}
}

// Filtered-out items must be transparently re-requested so a bounded demand
// still receives the full set of passing items.
func TestMulti_FilterCompensatesDemand(t *testing.T) {
	src := fake.NewSource(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	even := New(src.Subscribe).Filter(func(v int) (bool, error) {
		return v%2 == 0, nil
	})

	sub := fake.NewSubscriber[int](3)
	even.Subscribe(sub)
	if items := sub.Items(); len(items) != 3 {
		t.Fatalf("items = %v, want the first 3 even numbers", items)
	}
	// 3 delivered evens require 6 upstream items plus 1:1 compensation.
	if total := src.RequestedTotal(); total < 6 {
		t.Fatalf("upstream demand %d cannot cover 3 evens", total)
	}
}

func TestMulti_FilterMapDropsAndMaps(t *testing.T) {
	out := collectAll(t, FilterMap(Range(0, 6), func(v int) (string, bool, error) {
		if v%2 != 0 {
			return "", false, nil
		}
		return string(rune('a'+v)), true, nil
	}))
	if len(out) != 3 || out[0] != "a" || out[1] != "c" || out[2] != "e" {
		t.Fatalf("out = %v", out)
	}
}

func TestMulti_TakeCancelsUpstream(t *testing.T) {
	src := fake.NewSource(1, 2, 3, 4, 5)
	items := collectAll(t, New(src.Subscribe).Take(2))
	if len(items) != 2 || items[0] != 1 || items[1] != 2 {
		t.Fatalf("items = %v, want [1 2]", items)
	}
	if src.Cancels() != 1 {
		t.Fatalf("upstream cancels = %d, want 1", src.Cancels())
	}
}

func TestMulti_TakeZeroCompletesImmediately(t *testing.T) {
	if items := collectAll(t, Range(0, 5).Take(0)); len(items) != 0 {
		t.Fatalf("items = %v, want none", items)
	}
}

func TestMulti_SkipIsPerSubscription(t *testing.T) {
	m := Range(0, 5).Skip(2)
	for run := 0; run < 2; run++ {
		items := collectAll(t, m)
		if len(items) != 3 || items[0] != 2 {
			t.Fatalf("run %d: items = %v, want [2 3 4]", run, items)
		}
	}
}

func TestMulti_ScanEmitsIntermediates(t *testing.T) {
	sums := collectAll(t, Scan(Range(1, 4),
		func() int { return 0 },
		func(acc, v int) (int, error) { return acc + v, nil }))
	want := []int{1, 3, 6, 10}
	for i := range want {
		if sums[i] != want[i] {
			t.Fatalf("sums = %v, want %v", sums, want)
		}
	}
}

// The seed must take effect even when downstream requests synchronously
// from OnSubscribe, before any item flows.
func TestMulti_ScanNonZeroSeed(t *testing.T) {
	sums := collectAll(t, Scan(Range(1, 3),
		func() int { return 100 },
		func(acc, v int) (int, error) { return acc + v, nil }))
	want := []int{101, 103, 106}
	if len(sums) != len(want) {
		t.Fatalf("sums = %v, want %v", sums, want)
	}
	for i := range want {
		if sums[i] != want[i] {
			t.Fatalf("sums = %v, want %v", sums, want)
		}
	}
}

func TestMulti_ScanSeedPanicFailsBeforeItems(t *testing.T) {
	src := fake.NewSource(1, 2, 3)
	m := Scan(New(src.Subscribe),
		func() int { panic("seed exploded") },
		func(acc, v int) (int, error) { return acc + v, nil })

	sub := fake.NewSubscriber[int](api.Unbounded)
	m.Subscribe(sub)
	if !sub.AwaitTerminal(time.Second) {
		t.Fatal("no terminal signal")
	}
	if sub.Err() == nil {
		t.Fatal("expected a failure from the panicking seed")
	}
	if got := len(sub.Items()); got != 0 {
		t.Fatalf("%d items delivered before the seed failure", got)
	}
	if src.Cancels() == 0 {
		t.Fatal("seed failure did not cancel upstream")
	}
}

func TestMulti_ScanFirstSeedsFromFirstItem(t *testing.T) {
	maxes := collectAll(t, ScanFirst(Of(3, 1, 4, 1, 5), func(acc, v int) (int, error) {
		if v > acc {
			return v, nil
		}
		return acc, nil
	}))
	want := []int{3, 3, 4, 4, 5}
	for i := range want {
		if maxes[i] != want[i] {
			t.Fatalf("maxes = %v, want %v", maxes, want)
		}
	}
}

func TestMulti_ScanFailureCancelsUpstream(t *testing.T) {
	boom := errors.New("boom")
	src := fake.NewSource(1, 2, 3)
	m := Scan(New(src.Subscribe),
		func() int { return 0 },
		func(acc, v int) (int, error) {
			if v == 2 {
				return 0, boom
			}
			return acc + v, nil
		})
	_, _, err := Collect(m).Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if src.Cancels() == 0 {
		t.Fatal("scanner failure did not cancel upstream")
	}
}

func TestMulti_PeekObservesWithoutChanging(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	items := collectAll(t, Range(0, 3).Peek(func(v int) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	}))
	if len(items) != 3 || len(seen) != 3 {
		t.Fatalf("items = %v, seen = %v", items, seen)
	}
}

func TestMulti_SubscribeWithCallbacks(t *testing.T) {
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	Range(0, 4).SubscribeWith(
		func(v int) { mu.Lock(); got = append(got, v); mu.Unlock() },
		func(err error) { t.Errorf("unexpected failure: %v", err) },
		func() { close(done) },
	)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("no completion")
	}
	if len(got) != 4 {
		t.Fatalf("got = %v", got)
	}
}
