// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzz

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/SunHao-0/healer/prog"
)

// Crash records one observed kernel crash: the title the symbolizer (out
// of scope here) would otherwise assign, and the program that triggered
// it as the human-readable dump of Prog.String (there is no parser for
// that dump).
type Crash struct {
	Title   string
	Program []byte
}

// Reproducer is the collaborator interface a real crash-reproduction
// pipeline (out of scope) would implement: given a crash, attempt to
// find a minimal, reliably reproducing program.
type Reproducer interface {
	Reproduce(c Crash) (*prog.Prog, error)
}

// CrashSet deduplicates crashes by title and collapses concurrent
// reproduction requests for the same title into a single in-flight
// attempt via singleflight, so N workers hitting the same bug in the
// same second don't each kick off their own (expensive) repro run.
type CrashSet struct {
	mu    sync.Mutex
	seen  map[string]Crash
	group singleflight.Group
}

// NewCrashSet creates an empty CrashSet.
func NewCrashSet() *CrashSet {
	return &CrashSet{seen: make(map[string]Crash)}
}

// Record reports whether title is new (not previously recorded), storing
// c if so.
func (cs *CrashSet) Record(c Crash) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.seen[c.Title]; ok {
		return false
	}
	cs.seen[c.Title] = c
	return true
}

// Count returns the number of distinct crash titles recorded.
func (cs *CrashSet) Count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.seen)
}

// RequestRepro runs r.Reproduce for c, collapsing concurrent requests for
// the same title into one in-flight call; every caller for the same
// title observes the same result.
func (cs *CrashSet) RequestRepro(r Reproducer, c Crash) (*prog.Prog, error) {
	v, err, _ := cs.group.Do(c.Title, func() (interface{}, error) {
		return r.Reproduce(c)
	})
	if err != nil {
		return nil, err
	}
	return v.(*prog.Prog), nil
}
