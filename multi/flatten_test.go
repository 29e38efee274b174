// File: multi/flatten_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package multi

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/momentics/hioload-flow/fake"
)

func TestConcatMap_PreservesUpstreamOrder(t *testing.T) {
	m := ConcatMap(Range(0, 4), func(v int) Multi[int] {
		return Of(v*10, v*10+1, v*10+2)
	})
	items := collectAll(t, m)
	want := []int{0, 1, 2, 10, 11, 12, 20, 21, 22, 30, 31, 32}
	if len(items) != len(want) {
		t.Fatalf("items = %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("items = %v, want %v", items, want)
		}
	}
}

func TestConcatMap_EmptyInnersSkipped(t *testing.T) {
	m := ConcatMap(Range(0, 5), func(v int) Multi[int] {
		if v%2 == 0 {
			return Empty[int]()
		}
		return Of(v)
	})
	items := collectAll(t, m)
	if len(items) != 2 || items[0] != 1 || items[1] != 3 {
		t.Fatalf("items = %v, want [1 3]", items)
	}
}

func TestMergeMap_DeliversEverythingPerInnerOrdered(t *testing.T) {
	m := MergeMap(Range(0, 4), func(v int) Multi[int] {
		return Of(v*100, v*100+1, v*100+2)
	}, WithConcurrency(2))
	items := collectAll(t, m)
	if len(items) != 12 {
		t.Fatalf("delivered %d items, want 12: %v", len(items), items)
	}

	// Per-inner order must survive the merge even if inners interleave.
	positions := map[int]int{}
	for pos, v := range items {
		positions[v] = pos
	}
	for inner := 0; inner < 4; inner++ {
		base := inner * 100
		if !(positions[base] < positions[base+1] && positions[base+1] < positions[base+2]) {
			t.Fatalf("inner %d out of order: %v", inner, items)
		}
	}

	sort.Ints(items)
	for inner := 0; inner < 4; inner++ {
		for k := 0; k < 3; k++ {
			if items[inner*3+k] != inner*100+k {
				t.Fatalf("missing or duplicated items: %v", items)
			}
		}
	}
}

// Downstream demand bounds delivery across all inners combined.
func TestMergeMap_HonorsDownstreamDemand(t *testing.T) {
	m := MergeMap(Range(0, 3), func(v int) Multi[int] {
		return Range(v*10, 5)
	})
	sub := fake.NewSubscriber[int](4)
	m.Subscribe(sub)

	if got := len(sub.Items()); got != 4 {
		t.Fatalf("delivered %d items with demand 4", got)
	}
	if sub.Terminal() {
		t.Fatal("terminated while items remain undelivered")
	}
	sub.Request(1000)
	if !sub.AwaitTerminal(time.Second) {
		t.Fatal("no completion")
	}
	if got := len(sub.Items()); got != 15 {
		t.Fatalf("delivered %d items total, want 15", got)
	}
}

func TestMergeMap_FailFastStopsSiblings(t *testing.T) {
	boom := errors.New("boom")
	src := fake.NewSource(1, 2, 3)
	m := MergeMap(New(src.Subscribe), func(v int) Multi[int] {
		if v == 2 {
			return Failure[int](boom)
		}
		return Of(v)
	})
	_, _, err := Collect(m).Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if src.Cancels() == 0 {
		t.Fatal("inner failure did not cancel the outer stream")
	}
}

func TestMergeMap_DelayFailureJoinsErrors(t *testing.T) {
	e1, e2 := errors.New("first"), errors.New("second")
	m := MergeMap(Range(0, 4), func(v int) Multi[int] {
		switch v {
		case 1:
			return Failure[int](e1)
		case 3:
			return Failure[int](e2)
		default:
			return Of(v)
		}
	}, WithDelayFailure())

	sub := fake.NewSubscriber[int](1000)
	m.Subscribe(sub)
	if !sub.AwaitTerminal(time.Second) {
		t.Fatal("no terminal signal")
	}
	if got := len(sub.Items()); got != 2 {
		t.Fatalf("delivered %d items before delayed failure, want 2", got)
	}
	err := sub.Err()
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("joined err = %v, want both causes", err)
	}
}

func TestMergeMap_MapperPanicFailsStream(t *testing.T) {
	m := MergeMap(Range(0, 3), func(v int) Multi[int] {
		if v == 1 {
			panic("mapper exploded")
		}
		return Of(v)
	})
	_, _, err := Collect(m).Await(context.Background())
	if err == nil {
		t.Fatal("expected failure from panicking mapper")
	}
}

func TestConcatMap_CancelReachesInnerAndOuter(t *testing.T) {
	outer := fake.NewSource(1, 2, 3)
	inner := fake.NewNeverSource[int]()
	m := ConcatMap(New(outer.Subscribe), func(int) Multi[int] {
		return New(inner.Subscribe)
	})

	sub := fake.NewSubscriber[int](10)
	m.Subscribe(sub)
	sub.Cancel()

	if outer.Cancels() == 0 {
		t.Fatal("outer not cancelled")
	}
	if inner.Cancels() == 0 {
		t.Fatal("live inner not cancelled")
	}
	if sub.Terminal() {
		t.Fatal("cancellation must not produce a terminal signal")
	}
}
