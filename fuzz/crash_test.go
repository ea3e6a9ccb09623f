// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzz

import (
	"sync"
	"testing"
	"time"

	"github.com/SunHao-0/healer/prog"
)

func TestCrashSetRecordDedupsByTitle(t *testing.T) {
	cs := NewCrashSet()
	if !cs.Record(Crash{Title: "bug A"}) {
		t.Fatal("first Record of a new title should return true")
	}
	if cs.Record(Crash{Title: "bug A"}) {
		t.Fatal("second Record of the same title should return false")
	}
	if cs.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", cs.Count())
	}
}

type countingReproducer struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (r *countingReproducer) Reproduce(c Crash) (*prog.Prog, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.release != nil {
		<-r.release
	}
	return &prog.Prog{}, nil
}

func TestCrashSetRequestReproCollapsesConcurrentCalls(t *testing.T) {
	cs := NewCrashSet()
	r := &countingReproducer{release: make(chan struct{})}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cs.RequestRepro(r, Crash{Title: "same bug"}); err != nil {
				t.Errorf("RequestRepro: %v", err)
			}
		}()
	}
	// Keep the first call in flight until the other goroutines have joined it.
	time.Sleep(50 * time.Millisecond)
	close(r.release)
	wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls != 1 {
		t.Fatalf("Reproduce called %d times, want 1 (singleflight should collapse)", r.calls)
	}
}
