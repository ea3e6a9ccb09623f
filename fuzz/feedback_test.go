// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzz

import "testing"

func TestFeedbackMergeMaxCountsOnlyNewBlocks(t *testing.T) {
	fb := NewFeedback()
	if n := fb.MergeMax([]uint32{1, 2, 3}); n != 3 {
		t.Fatalf("first merge: got %d new blocks, want 3", n)
	}
	if n := fb.MergeMax([]uint32{2, 3, 4}); n != 1 {
		t.Fatalf("second merge: got %d new blocks, want 1", n)
	}
	if got := fb.MaxCovSize(); got != 4 {
		t.Fatalf("MaxCovSize() = %d, want 4", got)
	}
}

func TestFeedbackNewSignalIsReadOnly(t *testing.T) {
	fb := NewFeedback()
	fb.MergeMax([]uint32{1, 2})
	sig := fb.NewSignal([]uint32{2, 3})
	if len(sig) != 1 || sig[0] != 3 {
		t.Fatalf("NewSignal = %v, want [3]", sig)
	}
	if fb.MaxCovSize() != 2 {
		t.Fatalf("NewSignal must not mutate maxCov, size = %d, want 2", fb.MaxCovSize())
	}
}

func TestFeedbackMergeCorpusReturnsOnlyUniqueBlocks(t *testing.T) {
	fb := NewFeedback()
	unique1 := fb.MergeCorpus([]uint32{10, 20})
	if len(unique1) != 2 {
		t.Fatalf("first corpus merge unique = %v, want len 2", unique1)
	}
	unique2 := fb.MergeCorpus([]uint32{20, 30})
	if len(unique2) != 1 || unique2[0] != 30 {
		t.Fatalf("second corpus merge unique = %v, want [30]", unique2)
	}
}

func TestFeedbackStillUnique(t *testing.T) {
	fb := NewFeedback()
	own := []uint32{1, 2, 3}
	coveredByOthers := map[uint32]bool{2: true}
	still := fb.StillUnique(own, coveredByOthers)
	if len(still) != 2 {
		t.Fatalf("StillUnique = %v, want 2 entries (1 and 3)", still)
	}
}
