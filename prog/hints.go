// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

// CompHints maps an observed scalar argument value to the set of values
// the kernel was seen comparing it against during execution (collected
// by the in-guest executor when comparison-tracing is enabled). Keyed by
// the original value rather than by argument position, since the same
// comparison table is shared across every ConstArg-shaped leaf in the
// call that happened to carry that value.
type CompHints map[uint64][]uint64

// MutateWithHints generates candidate programs by replacing a single
// scalar argument of p.Calls[callIndex] with one of the operands the
// kernel was observed comparing that argument's original value against,
// and invokes cb once per candidate. It never mutates p itself — cb
// receives a fresh clone per candidate — which lets a caller try every
// hinted replacement without having to restore p between attempts.
func MutateWithHints(target *Target, p *Prog, callIndex int, comps CompHints, cb func(candidate *Prog)) {
	if callIndex < 0 || callIndex >= len(p.Calls) {
		return
	}
	leaves := collectLeaves(p.Calls[callIndex].Args)
	for _, leaf := range leaves {
		ca, ok := leaf.(*ConstArg)
		if !ok {
			continue
		}
		hints, ok := comps[ca.Val]
		if !ok {
			continue
		}
		for _, replacement := range hints {
			cand := p.Clone()
			candLeaf := collectLeaves(cand.Calls[callIndex].Args)
			for _, cl := range candLeaf {
				if cca, ok := cl.(*ConstArg); ok && cca.Val == ca.Val && cca.Type() == ca.Type() {
					cca.Val = replacement
					break
				}
			}
			FixupCall(target, cand.Calls[callIndex])
			cb(cand)
		}
	}
}
