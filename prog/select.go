// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"math/rand"
	"sort"
)

// WeightedPrefix is a prefix-summed weight table supporting O(log n)
// weighted random selection, used by the generator's syscall-choice
// logic (Corpus keeps its own prefix sums and uses chooseWeighted).
type WeightedPrefix struct {
	prefix []uint64 // prefix[i] = sum of weights[0..=i]
}

// NewWeightedPrefix builds a WeightedPrefix from a weight list. Weights
// must be non-negative; a weight of 0 is a valid (never-chosen) entry.
func NewWeightedPrefix(weights []uint64) *WeightedPrefix {
	prefix := make([]uint64, len(weights))
	var sum uint64
	for i, w := range weights {
		sum += w
		prefix[i] = sum
	}
	return &WeightedPrefix{prefix: prefix}
}

// Total returns the sum of all weights.
func (w *WeightedPrefix) Total() uint64 {
	if len(w.prefix) == 0 {
		return 0
	}
	return w.prefix[len(w.prefix)-1]
}

// Choose draws an index proportional to its weight. Returns -1 if the
// total weight is zero (nothing to choose from).
func (w *WeightedPrefix) Choose(rng *rand.Rand) int {
	total := w.Total()
	if total == 0 {
		return -1
	}
	target := uint64(rng.Int63n(int64(total))) + 1
	return sort.Search(len(w.prefix), func(i int) bool { return w.prefix[i] >= target })
}

// syscallWeight assigns a base selection weight to a syscall: calls that
// are disabled or flagged NoGenerate never get picked; everything else
// gets an equal baseline weight, nudged up slightly for syscalls that
// produce a resource (they are disproportionately useful early in a
// program, since later calls often need something to act on).
func syscallWeight(c *Syscall) uint64 {
	if c.Attrs.Disabled || c.Attrs.NoGenerate {
		return 0
	}
	if len(c.outputResources) > 0 {
		return 15
	}
	return 10
}

// BuildSyscallTable returns a WeightedPrefix over target.Syscalls usable
// to pick the next syscall to append during program generation.
func BuildSyscallTable(target *Target) *WeightedPrefix {
	weights := make([]uint64, len(target.Syscalls))
	for i, c := range target.Syscalls {
		weights[i] = syscallWeight(c)
	}
	return NewWeightedPrefix(weights)
}

// ChooseSyscall picks a syscall id. When prev (the syscall id most
// recently appended, or -1 if this is the first call) has influence
// edges in the relation, with probability 2/3 it picks uniformly among
// the syscalls prev influences, steering generation toward
// dataflow-connected sequences; otherwise it draws from the base table.
func ChooseSyscall(rng *rand.Rand, target *Target, rel *Relation, table *WeightedPrefix, prev SyscallId) SyscallId {
	if prev >= 0 && rel != nil {
		if next := rel.InfluenceOf(prev); len(next) > 0 && rng.Intn(3) != 0 {
			candidate := next[rng.Intn(len(next))]
			if !target.Syscalls[candidate].Attrs.Disabled && !target.Syscalls[candidate].Attrs.NoGenerate {
				return candidate
			}
		}
	}
	idx := table.Choose(rng)
	if idx < 0 {
		return -1
	}
	return SyscallId(idx)
}
