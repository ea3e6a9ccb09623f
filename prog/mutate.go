// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import "math/rand"

// mutationStrategy identifies one of the structural edits Mutate can
// apply to a program on a given pass.
type mutationStrategy int

const (
	stratInsertCall mutationStrategy = iota
	stratMutateArgs
	stratSplice
)

// Mutate returns a mutated clone of p. It repeatedly applies a randomly
// chosen structural strategy (insert a freshly generated call, mutate an
// existing call's arguments, or splice in calls from another corpus
// program) until a coin flip says stop, mirroring syzkaller's own
// "keep mutating while lucky" loop. other, when non-nil, supplies donor
// calls for the splice strategy; it may be nil, in which case splice
// degrades to insert.
func Mutate(rng *rand.Rand, target *Target, rel *Relation, p *Prog, other *Prog) *Prog {
	np := p.Clone()
	if len(np.Calls) == 0 {
		return GenProg(rng, target, rel)
	}
	for {
		switch mutationStrategy(rng.Intn(3)) {
		case stratInsertCall:
			mutateInsertCall(rng, target, rel, np)
		case stratMutateArgs:
			mutateArgsInPlace(rng, target, np)
		case stratSplice:
			mutateSplice(rng, target, np, other)
		}
		if rng.Intn(3) == 0 {
			break
		}
		if len(np.Calls) >= maxGenCalls {
			break
		}
	}
	return np
}

func mutateInsertCall(rng *rand.Rand, target *Target, rel *Relation, p *Prog) {
	idx := rng.Intn(len(p.Calls) + 1)
	ctx := NewContext(target, rel)
	seedContextFromProg(ctx, &Prog{Target: p.Target, Calls: p.Calls[:idx]})
	table := BuildSyscallTable(target)
	prev := SyscallId(-1)
	if len(p.Calls) > 0 {
		prev = p.Calls[len(p.Calls)-1].Meta.ID
	}
	sid := ChooseSyscall(rng, target, rel, table, prev)
	if sid < 0 {
		return
	}
	call := GenCall(rng, ctx, target.Syscalls[sid])
	p.Calls = append(p.Calls, nil)
	copy(p.Calls[idx+1:], p.Calls[idx:])
	p.Calls[idx] = call
}

// seedContextFromProg pre-populates a fresh Context's resource/string
// pools from an already-built program, so a newly generated call inserted
// into it can reference the existing program's resources instead of only
// ones it creates itself.
func seedContextFromProg(ctx *Context, p *Prog) {
	for _, c := range p.Calls {
		c.ForeachArg(func(a Arg) {
			if r, ok := a.(*ResultArg); ok && r.Kind == ResOwn {
				if rt, ok := r.Type().(*ResType); ok {
					// Pool only: no call is under construction here.
					if _, ok := ctx.resIDs[rt.ResKind]; !ok {
						ctx.resKinds = append(ctx.resKinds, rt.ResKind)
					}
					ctx.resIDs[rt.ResKind] = append(ctx.resIDs[rt.ResKind], r)
				}
			}
			if d, ok := a.(*DataArg); ok && d.dir != DirOut {
				switch d.typ.(type) {
				case *BufferStringType:
					ctx.RecordStr(append([]byte(nil), d.data...))
				case *BufferFilenameType:
					ctx.RecordFilename(append([]byte(nil), d.data...))
				}
			}
		})
	}
}

// mutateArgsInPlace picks one call and mutates one of its arguments,
// re-running FixupCall afterward so any len fields stay consistent with
// the new value.
func mutateArgsInPlace(rng *rand.Rand, target *Target, p *Prog) {
	if len(p.Calls) == 0 {
		return
	}
	c := p.Calls[rng.Intn(len(p.Calls))]
	leaves := collectLeaves(c.Args)
	if len(leaves) == 0 {
		return
	}
	mutateValue(rng, target, leaves[rng.Intn(len(leaves))])
	FixupCall(target, c)
}

// collectLeaves gathers every non-container argument reachable from
// args, skipping the containers themselves (Group/Union/Pointer), which
// are never mutated directly — only the scalar/data/resource leaves they
// hold are.
func collectLeaves(args []Arg) []Arg {
	var out []Arg
	ForeachArg(args, func(a Arg) {
		switch a.(type) {
		case *GroupArg, *UnionArg, *PointerArg:
			return
		}
		out = append(out, a)
	})
	return out
}

// mutateValue replaces a leaf argument's value in place, dispatching on
// its ValueKind. Resource-typed (ValueResource) arguments are left alone
// here: flipping Own/Ref/Null in place would corrupt the program's
// uses bookkeeping, so resource identity changes only ever happen
// through full re-generation (mutateInsertCall/mutateSplice).
func mutateValue(rng *rand.Rand, target *Target, a Arg) {
	switch v := a.(type) {
	case *ConstArg:
		mutateConst(rng, v)
	case *VmaArg:
		v.VmaSize = v.VmaSize + 1
	case *DataArg:
		mutateData(rng, v)
	}
}

func mutateConst(rng *rand.Rand, v *ConstArg) {
	switch rng.Intn(3) {
	case 0:
		v.Val = magicValues[rng.Intn(len(magicValues))]
	case 1:
		v.Val += uint64(rng.Intn(9)) - 4
	default:
		bit := uint(rng.Intn(64))
		v.Val ^= 1 << bit
	}
}

func mutateData(rng *rand.Rand, v *DataArg) {
	if v.dir == DirOut {
		if rng.Intn(2) == 0 {
			v.outSize++
		} else if v.outSize > 0 {
			v.outSize--
		}
		return
	}
	if len(v.data) == 0 {
		v.data = []byte{byte(rng.Intn(256))}
		return
	}
	switch rng.Intn(3) {
	case 0: // flip a byte
		v.data[rng.Intn(len(v.data))] = byte(rng.Intn(256))
	case 1: // grow
		v.data = append(v.data, byte(rng.Intn(256)))
	default: // shrink
		if len(v.data) > 1 {
			idx := rng.Intn(len(v.data))
			v.data = append(v.data[:idx], v.data[idx+1:]...)
		}
	}
}

// mutateSplice inserts a copy of one randomly chosen call from other into
// p at a random position. The calls it depends on are not copied: every
// Ref in the copy is rewritten to Null, since p has no corresponding Own
// to point at.
func mutateSplice(rng *rand.Rand, target *Target, p *Prog, other *Prog) {
	if other == nil || len(other.Calls) == 0 {
		mutateInsertCall(rng, target, nil, p)
		return
	}
	donor := other.Calls[rng.Intn(len(other.Calls))].Clone()
	donor.ForeachArg(func(a Arg) {
		r, ok := a.(*ResultArg)
		if !ok || r.Kind != ResRef {
			return
		}
		r.Kind = ResNull
		r.Res = nil
	})
	idx := rng.Intn(len(p.Calls) + 1)
	p.Calls = append(p.Calls, nil)
	copy(p.Calls[idx+1:], p.Calls[idx:])
	p.Calls[idx] = donor
}

// Clone returns a deep copy of a single call. The clone's Refs still
// point at the Owns of the original program but are not registered in
// their uses; mutateSplice, the only caller, rewrites them to Null.
func (c *Call) Clone() *Call {
	resMap := map[*ResultArg]*ResultArg{}
	return cloneCall(c, resMap)
}
