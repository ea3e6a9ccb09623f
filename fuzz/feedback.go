// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzz implements the orchestration-adjacent parts of the
// fuzzing loop that spec.md names as in-core: coverage feedback, the
// per-worker queue, the main loop, stats, and crash bookkeeping.
package fuzz

import "sync"

// Feedback tracks two coverage sets, following syzkaller's own max/local
// split: MaxCov is the global set of every block ever observed across
// the whole run (used for corpus admission: a program is only interesting
// if it adds to MaxCov), while CorpusCov is the union of the coverage of
// every admitted corpus entry. Per-entry contributions, which culling
// works from, are kept by Queue rather than here; culling does not scan
// either set. Each set has its own RWMutex so a check on one doesn't
// block an update of the other.
type Feedback struct {
	maxMu  sync.RWMutex
	maxCov map[uint32]bool

	corpusMu  sync.RWMutex
	corpusCov map[uint32]bool
}

// NewFeedback creates empty coverage sets.
func NewFeedback() *Feedback {
	return &Feedback{maxCov: make(map[uint32]bool), corpusCov: make(map[uint32]bool)}
}

// NewSignal reports which of cov's entries are not yet in MaxCov,
// without modifying it — used to decide whether an execution merits a
// second, confirmatory run before admission (see Loop's calibration
// step).
func (f *Feedback) NewSignal(cov []uint32) []uint32 {
	f.maxMu.RLock()
	defer f.maxMu.RUnlock()
	var out []uint32
	for _, pc := range cov {
		if !f.maxCov[pc] {
			out = append(out, pc)
		}
	}
	return out
}

// MergeMax adds cov to MaxCov, returning how many entries were new.
func (f *Feedback) MergeMax(cov []uint32) int {
	f.maxMu.Lock()
	defer f.maxMu.Unlock()
	n := 0
	for _, pc := range cov {
		if !f.maxCov[pc] {
			f.maxCov[pc] = true
			n++
		}
	}
	return n
}

// MaxCovSize returns the size of the global coverage set.
func (f *Feedback) MaxCovSize() int {
	f.maxMu.RLock()
	defer f.maxMu.RUnlock()
	return len(f.maxCov)
}

// MergeCorpus adds cov to CorpusCov and returns the newly covered subset
// (the program's unique contribution at admission time, which Queue
// stores alongside the corpus entry for later culling decisions).
func (f *Feedback) MergeCorpus(cov []uint32) []uint32 {
	f.corpusMu.Lock()
	defer f.corpusMu.Unlock()
	var uniq []uint32
	for _, pc := range cov {
		if !f.corpusCov[pc] {
			f.corpusCov[pc] = true
			uniq = append(uniq, pc)
		}
	}
	return uniq
}

// StillUnique reports which of own's previously-unique blocks are still
// only covered by this entry (every other entry's contribution has since
// been subtracted out by culling). Used by Queue's culling pass.
func (f *Feedback) StillUnique(own []uint32, coveredByOthers map[uint32]bool) []uint32 {
	var out []uint32
	for _, pc := range own {
		if !coveredByOthers[pc] {
			out = append(out, pc)
		}
	}
	return out
}
