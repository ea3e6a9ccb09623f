// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

// MinimizePred reports whether candidate still reproduces the property
// being minimized for (a crash, a piece of coverage, ...). callIndex, if
// >= 0, is the call of interest that must be preserved across removals;
// -1 means "minimize the whole program, no call is distinguished."
type MinimizePred func(candidate *Prog, callIndex int) bool

// Minimize simplifies p0 into an equivalent-but-smaller program: first by
// dropping whole calls (coarse unrelated-call pruning, then one-at-a-time
// removal), then by shrinking each remaining call's arguments in place.
// Calls whose Syscall.Attrs.NoMinimize is set are never touched by the
// argument-shrinking pass, though they can still be removed wholesale if
// nothing depends on them. Returns the minimized program and the
// surviving index of the original call of interest (or -1 if callIndex0
// was -1).
func Minimize(p0 *Prog, callIndex0 int, pred MinimizePred) (*Prog, int) {
	if callIndex0 >= len(p0.Calls) {
		panic("prog: minimize: bad call index")
	}
	p0, callIndex0 = removeCalls(p0, callIndex0, pred)

	for i := 0; i < len(p0.Calls); i++ {
		if p0.Calls[i].Meta.Attrs.NoMinimize {
			continue
		}
		p0 = minimizeCallArgs(p0, i, callIndex0, pred)
	}
	return p0, callIndex0
}

// removeCalls drops calls that removeUnrelatedCalls's reachability
// closure shows are irrelevant to callIndex0, then falls back to
// removing remaining calls one at a time (from the end, so indices
// before the removed one never shift).
func removeCalls(p0 *Prog, callIndex0 int, pred MinimizePred) (*Prog, int) {
	if callIndex0 >= 0 {
		p0, callIndex0 = removeUnrelatedCalls(p0, callIndex0, pred)
	}
	for i := len(p0.Calls) - 1; i >= 0; i-- {
		if i == callIndex0 {
			continue
		}
		newIndex := callIndex0
		if i < callIndex0 {
			newIndex--
		}
		p := p0.Clone()
		p.RemoveCall(i)
		if newIndex >= len(p.Calls) {
			newIndex = -1
		}
		if !pred(p, newIndex) {
			continue
		}
		p0, callIndex0 = p, newIndex
	}
	return p0, callIndex0
}

// removeUnrelatedCalls computes, via a fixpoint over "does call A use a
// resource produced by call B" (filenames are not tracked), the set of calls callIndex0
// transitively depends on, then removes everything outside that set in
// one shot. This is a pure optimization over exhaustive one-at-a-time
// removal (same end result, reached in far fewer predicate calls on long
// programs): predicate calls are the dominant cost of minimization since
// each one re-executes the candidate program.
func removeUnrelatedCalls(p0 *Prog, callIndex0 int, pred MinimizePred) (*Prog, int) {
	related := relatedCalls(p0, callIndex0)
	var toRemove []int
	for i := range p0.Calls {
		if i != callIndex0 && !related[i] {
			toRemove = append(toRemove, i)
		}
	}
	if len(toRemove) == 0 {
		return p0, callIndex0
	}
	p := p0.Clone()
	for i := len(toRemove) - 1; i >= 0; i-- {
		p.RemoveCall(toRemove[i])
	}
	newIndex := callIndex0
	for _, removed := range toRemove {
		if removed < callIndex0 {
			newIndex--
		}
	}
	if pred(p, newIndex) {
		return p, newIndex
	}
	return p0, callIndex0
}

// relatedCalls returns the set of call indices that callIndex0 depends
// on transitively: callIndex0 itself, plus every call that produces a
// resource used (directly or indirectly) by a call already known to be
// related. Shared filenames do not make calls related.
func relatedCalls(p0 *Prog, callIndex0 int) map[int]bool {
	related := map[int]bool{callIndex0: true}
	changed := true
	for changed {
		changed = false
		for i := callIndex0; i >= 0; i-- {
			if !related[i] {
				continue
			}
			for j := i - 1; j >= 0; j-- {
				if !related[j] && intersects(uses(p0.Calls[j]), p0.Calls[i]) {
					related[j] = true
					changed = true
				}
			}
		}
	}
	return related
}

// uses returns the set of Own resource arguments produced by c; filenames
// are not included.
func uses(c *Call) map[*ResultArg]bool {
	out := map[*ResultArg]bool{}
	c.ForeachArg(func(a Arg) {
		if r, ok := a.(*ResultArg); ok && r.Kind == ResOwn {
			out[r] = true
		}
	})
	return out
}

// intersects reports whether call consumes any of the Own arguments in
// produced (i.e. holds a Ref pointing at one of them).
func intersects(produced map[*ResultArg]bool, call *Call) bool {
	found := false
	call.ForeachArg(func(a Arg) {
		if found {
			return
		}
		if r, ok := a.(*ResultArg); ok && r.Kind == ResRef && produced[r.Res] {
			found = true
		}
	})
	return found
}

// minimizeCallArgs repeatedly finds one argument of p0.Calls[callIdx] it
// can simplify and does so, re-checking pred after each change. It stops
// when no argument can be simplified further or at the first
// simplification pred rejects, returning the last accepted program.
func minimizeCallArgs(p0 *Prog, callIdx, callIndex0 int, pred MinimizePred) *Prog {
	for {
		p := p0.Clone()
		call := p.Calls[callIdx]
		changed := false
		for i := range call.Args {
			if minimizeArg(p0.Target, p, call, i, pred, callIndex0) {
				changed = true
				break
			}
		}
		if !changed {
			return p0
		}
		if pred(p, callIndex0) {
			p0 = p
		} else {
			return p0
		}
	}
}

// minimizeArg attempts one simplification of call.Args[i] in place
// (within the already-cloned program p) and reports whether it made a
// change worth asking pred about. The caller is responsible for checking
// pred and rolling back to p0 if the change was rejected.
func minimizeArg(target *Target, p *Prog, call *Call, i int, pred MinimizePred, callIndex0 int) bool {
	return minimizeOne(target, call.Args[i], func(newVal Arg) {
		call.Args[i] = newVal
		FixupCall(target, call)
	})
}

// minimizeOne dispatches a single-step shrink attempt by the argument's
// concrete shape; every branch simplifies the argument in place and none
// of them calls replace. Returns whether a simplification was attempted at all (not
// whether it was ultimately accepted - that is pred's job).
func minimizeOne(target *Target, a Arg, replace func(Arg)) bool {
	switch v := a.(type) {
	case *GroupArg:
		return minimizeGroup(target, v, replace)
	case *UnionArg:
		return minimizeUnion(target, v)
	case *PointerArg:
		return minimizePointer(target, v)
	case *DataArg:
		return minimizeData(v)
	case *ResultArg:
		return minimizeResult(v)
	case *ConstArg:
		return minimizeConst(v)
	default:
		return false
	}
}

func minimizeConst(v *ConstArg) bool {
	if v.Val == 0 {
		return false
	}
	v.Val = 0
	return true
}

func minimizeResult(v *ResultArg) bool {
	if v.Kind != ResRef {
		return false
	}
	owner := v.Res
	owner.RemoveUse(v)
	v.Kind = ResNull
	v.Res = nil
	return true
}

func minimizeData(v *DataArg) bool {
	if v.dir == DirOut {
		if v.outSize == 0 {
			return false
		}
		v.outSize /= 2
		return true
	}
	if len(v.data) == 0 {
		return false
	}
	v.data = v.data[:len(v.data)/2]
	return true
}

func minimizePointer(target *Target, v *PointerArg) bool {
	if v.Special || v.Pointee == nil {
		return false
	}
	v.Pointee = nil
	v.Special = true
	v.SpecialIdx = 0
	if len(target.SpecialPointers) > 0 {
		v.Addr = target.SpecialPointers[0]
	}
	return true
}

func minimizeUnion(target *Target, v *UnionArg) bool {
	return minimizeOne(target, v.Opt, func(newVal Arg) { v.Opt = newVal })
}

// minimizeGroup shrinks an array by dropping its last element (bulk
// drop), or recurses into the first child argument it can simplify
// (struct fields, or remaining array elements).
func minimizeGroup(target *Target, v *GroupArg, replace func(Arg)) bool {
	if arr, ok := v.typ.(*ArrayType); ok && arr.ElemKind == ArrayRangeLen && len(v.Inner) > 0 {
		if len(v.Inner) > 1 || arr.RangeBegin == 0 {
			v.Inner = v.Inner[:len(v.Inner)-1]
			return true
		}
	}
	for i := range v.Inner {
		if minimizeOne(target, v.Inner[i], func(newVal Arg) { v.Inner[i] = newVal }) {
			return true
		}
	}
	return false
}
