// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzz

import (
	"math/rand"
	"testing"

	"github.com/SunHao-0/healer/prog"
	_ "github.com/SunHao-0/healer/targets"
)

func mustTarget(t *testing.T) *prog.Target {
	t.Helper()
	target, err := prog.GetTarget("linux", "amd64")
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	return target
}

func TestQueueNextGeneratesWhenCorpusEmpty(t *testing.T) {
	target := mustTarget(t)
	rel := prog.NewRelation(target)
	corpus := prog.NewCorpusWrapper()
	fb := NewFeedback()
	q := NewQueue(target, rel, corpus, fb, rand.New(rand.NewSource(1)))

	p := q.Next()
	if p == nil || len(p.Calls) == 0 {
		t.Fatal("Next() on an empty corpus should still produce a non-empty generated program")
	}
}

func TestQueueNextCanMutateCorpusEntries(t *testing.T) {
	target := mustTarget(t)
	rel := prog.NewRelation(target)
	corpus := prog.NewCorpusWrapper()
	fb := NewFeedback()
	rng := rand.New(rand.NewSource(1))

	seed := prog.GenProg(rng, target, rel)
	corpus.AddProg(seed, 10)

	q := NewQueue(target, rel, corpus, fb, rng)
	for i := 0; i < 20; i++ {
		p := q.Next()
		if p == nil {
			t.Fatal("Next() returned nil")
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("Next() produced an invalid program: %v", err)
		}
	}
}

func TestQueueAdmitAndCullDropsFullySubsumedEntries(t *testing.T) {
	target := mustTarget(t)
	rel := prog.NewRelation(target)
	corpus := prog.NewCorpusWrapper()
	fb := NewFeedback()
	rng := rand.New(rand.NewSource(1))
	q := NewQueue(target, rel, corpus, fb, rng)

	p1 := prog.GenProg(rng, target, rel)
	p2 := prog.GenProg(rng, target, rel)
	id1 := corpus.AddProg(p1, 5)
	id2 := corpus.AddProg(p2, 5)
	q.Admit(id1, []uint32{100, 101})
	q.Admit(id2, []uint32{100, 101, 102})

	n := q.Cull()
	if n != 1 {
		t.Fatalf("Cull() retained %d entries, want 1 (only id2 has coverage no other entry also has)", n)
	}
	if corpus.Len() != 1 {
		t.Fatalf("corpus.Len() = %d, want 1", corpus.Len())
	}
	if corpus.Get(id2) == nil {
		t.Fatal("expected id2 (unique contributor) to survive culling")
	}
	if corpus.Get(id1) != nil {
		t.Fatal("expected id1 (fully subsumed) to be culled")
	}
}
