// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzz

import (
	"math/rand"

	"github.com/SunHao-0/healer/prog"
)

// entryCov records the coverage blocks uniquely attributed to a corpus
// entry at admission time, so Cull can tell whether the entry is still
// pulling its weight.
type entryCov struct {
	id  prog.CorpusId
	cov []uint32
}

// Queue schedules work for one fuzzing worker: it owns that worker's
// share of the shared Corpus/Feedback/Relation and decides what to
// generate or mutate next. Each worker goroutine owns exactly one Queue
// (and its own *rand.Rand, never shared), so Queue itself needs no
// internal locking - all locking lives in the shared Corpus/Relation it
// wraps.
type Queue struct {
	Target   *prog.Target
	Relation *prog.Relation
	Corpus   *prog.CorpusWrapper
	Feedback *Feedback
	rng      *rand.Rand

	entryCov map[prog.CorpusId][]uint32
}

// NewQueue creates a Queue for one worker.
func NewQueue(target *prog.Target, rel *prog.Relation, corpus *prog.CorpusWrapper, fb *Feedback, rng *rand.Rand) *Queue {
	return &Queue{Target: target, Relation: rel, Corpus: corpus, Feedback: fb, rng: rng, entryCov: make(map[prog.CorpusId][]uint32)}
}

// Next produces the next candidate program to execute: with small
// probability a brand-new generated program, otherwise a mutation of one
// corpus entry (optionally spliced with a second, to recombine
// independently discovered call sequences).
func (q *Queue) Next() *prog.Prog {
	if q.Corpus.IsEmpty() || q.rng.Intn(10) == 0 {
		return prog.GenProg(q.rng, q.Target, q.Relation)
	}
	base := q.Corpus.SelectOne(q.rng)
	var donor *prog.Prog
	if q.rng.Intn(2) == 0 {
		donor = q.Corpus.SelectOne(q.rng)
	}
	return prog.Mutate(q.rng, q.Target, q.Relation, base, donor)
}

// Admit records a newly admitted corpus entry's unique coverage
// contribution so a later Cull pass can re-evaluate it.
func (q *Queue) Admit(id prog.CorpusId, uniqueCov []uint32) {
	q.entryCov[id] = uniqueCov
}

// Cull asks the shared Corpus to drop entries whose unique coverage
// contribution has been fully subsumed by other entries (each
// contributing block is now also covered by at least one other surviving
// entry), keeping the corpus from growing without bound as mutation
// rediscovers the same coverage via smaller programs. Priority for
// surviving entries is left unchanged; a production loop would also
// re-prioritize based on program size here, but that policy is left to
// the caller via Corpus.Culling's own update callback.
func (q *Queue) Cull() int {
	coveredByOthers := make(map[uint32]bool)
	seen := make(map[uint32]int)
	for _, cov := range q.entryCov {
		for _, pc := range cov {
			seen[pc]++
		}
	}
	for pc, n := range seen {
		if n > 1 {
			coveredByOthers[pc] = true
		}
	}

	n := q.Corpus.Culling(func(p *prog.ProgInfo) {
		cov, ok := q.entryCov[p.Id]
		if !ok {
			return
		}
		still := q.Feedback.StillUnique(cov, coveredByOthers)
		if len(still) == 0 && len(cov) > 0 {
			p.Prio = 0
			delete(q.entryCov, p.Id)
			for _, pc := range cov {
				seen[pc]--
				if seen[pc] <= 1 {
					delete(coveredByOthers, pc)
				}
			}
		}
	})
	return n
}
