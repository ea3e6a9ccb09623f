// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"math/rand"
)

const (
	maxGenCalls   = 30 // stop appending once a program reaches this many calls
	recurseDepthMax = 6
)

// GenProg generates a brand-new program from scratch: it repeatedly
// chooses a syscall (biased by the relation, see select.go) and appends
// a fully materialized call for it until reaching maxGenCalls or running
// out of useful syscalls to pick.
func GenProg(rng *rand.Rand, target *Target, rel *Relation) *Prog {
	ctx := NewContext(target, rel)
	table := BuildSyscallTable(target)
	prev := SyscallId(-1)
	for i := 0; i < maxGenCalls; i++ {
		sid := ChooseSyscall(rng, target, rel, table, prev)
		if sid < 0 {
			break
		}
		GenCall(rng, ctx, target.Syscalls[sid])
		prev = sid
	}
	return ctx.ToProg()
}

// GenCall synthesizes one fully materialized Call for meta and appends
// it to ctx, including any resource Own/Ref argument bookkeeping.
func GenCall(rng *rand.Rand, ctx *Context, meta *Syscall) *Call {
	ctx.PushCall(meta)
	args := make([]Arg, len(meta.Args))
	for i, f := range meta.Args {
		args[i] = genArg(rng, ctx, ctx.target.Type(f.Type), dirOfField(f), 0)
	}
	ctx.Current().SetArgs(args)
	if meta.Ret != TypeIdNone {
		retType := ctx.target.Type(meta.Ret)
		ret := genResultOwn(rng, ctx, retType.(*ResType))
		ctx.Current().SetRet(ret)
	}
	call := ctx.PopCall()
	FixupCall(ctx.target, call)
	return call
}

// dirOfField returns the direction top-level syscall parameters are
// generated with absent more specific information: syscall arguments
// are conventionally inputs unless their Type says otherwise (a Ptr's
// own ElemDir governs the pointee).
func dirOfField(f Field) Dir { return DirIn }

// genArg dispatches to the per-TypeKind value constructor. depth guards
// against runaway recursion through self-referential struct/union/ptr
// chains (e.g. a linked-list-shaped type), falling back to the type's
// default/minimal value once recurseDepthMax is reached.
func genArg(rng *rand.Rand, ctx *Context, t Type, dir Dir, depth int) Arg {
	if depth > recurseDepthMax {
		return t.DefaultValue(dir)
	}
	if t.Optional() && rng.Intn(5) == 0 {
		return t.DefaultValue(dir)
	}
	switch tt := t.(type) {
	case *ResType:
		return genResource(rng, ctx, tt, dir)
	case *ConstType:
		return &ConstArg{argCommon: argCommon{tt, dir}, Val: tt.Val}
	case *IntType:
		return genInt(rng, tt, dir)
	case *FlagsType:
		return genFlags(rng, tt, dir)
	case *LenType:
		return &ConstArg{argCommon: argCommon{tt, dir}, Val: 0} // filled by FixupCall
	case *ProcType:
		return &ConstArg{argCommon: argCommon{tt, dir}, Val: uint64(rng.Intn(int(tt.PerProc) + 1))}
	case *CsumType:
		return &ConstArg{argCommon: argCommon{tt, dir}, Val: rng.Uint64()} // recomputed by the in-guest executor
	case *VmaType:
		return genVma(rng, ctx, tt, dir)
	case *BufferBlobType:
		return genBufferBlob(rng, ctx, tt, dir)
	case *BufferStringType:
		return genBufferString(rng, ctx, tt, dir)
	case *BufferFilenameType:
		return genBufferFilename(rng, ctx, tt, dir)
	case *ArrayType:
		return genArray(rng, ctx, tt, dir, depth)
	case *PtrType:
		return genPtr(rng, ctx, tt, dir, depth)
	case *StructType:
		return genStruct(rng, ctx, tt, dir, depth)
	case *UnionType:
		return genUnion(rng, ctx, tt, dir, depth)
	default:
		panic("prog: genArg: unknown type kind")
	}
}

func genInt(rng *rand.Rand, t *IntType, dir Dir) *ConstArg {
	var v uint64
	switch {
	case rng.Intn(5) == 0:
		v = magicValues[rng.Intn(len(magicValues))]
	case t.HasRange:
		span := t.RangeEnd - t.RangeBegin + 1
		v = t.RangeBegin + uint64(rng.Int63n(int64(span)))
	default:
		v = rng.Uint64()
	}
	if t.ValAlign > 1 {
		v -= v % t.ValAlign
	}
	if t.BitfieldLen > 0 {
		mask := uint64(1)<<t.BitfieldLen - 1
		v &= mask
	}
	return &ConstArg{argCommon: argCommon{t, dir}, Val: v}
}

func genFlags(rng *rand.Rand, t *FlagsType, dir Dir) *ConstArg {
	if len(t.Vals) == 0 {
		return &ConstArg{argCommon: argCommon{t, dir}, Val: 0}
	}
	if !t.Bitmask {
		return &ConstArg{argCommon: argCommon{t, dir}, Val: t.Vals[rng.Intn(len(t.Vals))]}
	}
	var v uint64
	for _, fv := range t.Vals {
		if rng.Intn(2) == 0 {
			v |= fv
		}
	}
	return &ConstArg{argCommon: argCommon{t, dir}, Val: v}
}

func genVma(rng *rand.Rand, ctx *Context, t *VmaType, dir Dir) *VmaArg {
	num := uint64(1)
	if t.HasRange {
		span := t.RangeEnd - t.RangeBegin + 1
		num = t.RangeBegin + uint64(rng.Int63n(int64(span)))
	}
	if num == 0 {
		num = 1
	}
	page := ctx.VmaAlloc.Alloc(rng, num)
	return &VmaArg{argCommon: argCommon{t, dir}, Addr: page * ctx.target.PageSize, VmaSize: num}
}

func randBlobLen(rng *rand.Rand, t *BufferBlobType) uint64 {
	if t.Size() > 0 {
		return t.Size()
	}
	if t.HasRange {
		span := t.RangeEnd - t.RangeBegin + 1
		return t.RangeBegin + uint64(rng.Int63n(int64(span)))
	}
	return uint64(rng.Intn(256))
}

func genBufferBlob(rng *rand.Rand, ctx *Context, t *BufferBlobType, dir Dir) *DataArg {
	n := randBlobLen(rng, t)
	if dir == DirOut {
		return &DataArg{argCommon: argCommon{t, dir}, outSize: n}
	}
	if len(t.Literals) > 0 && rng.Intn(2) == 0 {
		lit := t.Literals[rng.Intn(len(t.Literals))]
		return &DataArg{argCommon: argCommon{t, dir}, data: append([]byte(nil), lit...)}
	}
	data := make([]byte, n)
	rng.Read(data)
	return &DataArg{argCommon: argCommon{t, dir}, data: data}
}

func genBufferString(rng *rand.Rand, ctx *Context, t *BufferStringType, dir Dir) *DataArg {
	var raw string
	switch {
	case len(t.Literals) > 0:
		raw = t.Literals[rng.Intn(len(t.Literals))]
	case len(ctx.strs) > 0 && rng.Intn(2) == 0:
		data := stringDefaultBytes("", t.NoZ)
		raw = string(bytesTrimNul(ctx.strs[rng.Intn(len(ctx.strs))]))
		out := &DataArg{argCommon: argCommon{t, dir}, data: stringDefaultBytes(raw, t.NoZ)}
		_ = data
		return out
	default:
		raw = randPrintable(rng, 1+rng.Intn(16))
	}
	b := stringDefaultBytes(raw, t.NoZ)
	if dir != DirOut {
		ctx.RecordStr(append([]byte(nil), b...))
	}
	return &DataArg{argCommon: argCommon{t, dir}, data: b}
}

func bytesTrimNul(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == 0 {
		return b[:n-1]
	}
	return b
}

func genBufferFilename(rng *rand.Rand, ctx *Context, t *BufferFilenameType, dir Dir) *DataArg {
	var raw string
	switch {
	case len(t.Literals) > 0:
		raw = t.Literals[rng.Intn(len(t.Literals))]
	case len(ctx.filenames) > 0 && rng.Intn(3) != 0:
		raw = string(bytesTrimNul(ctx.filenames[rng.Intn(len(ctx.filenames))]))
	default:
		raw = "/tmp/file" + randPrintable(rng, 4)
	}
	b := stringDefaultBytes(raw, t.NoZ)
	ctx.RecordFilename(append([]byte(nil), b...))
	return &DataArg{argCommon: argCommon{t, dir}, data: b}
}

const printableAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_"

func randPrintable(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = printableAlphabet[rng.Intn(len(printableAlphabet))]
	}
	return string(b)
}

func genArray(rng *rand.Rand, ctx *Context, t *ArrayType, dir Dir, depth int) *GroupArg {
	var n uint64
	switch t.ElemKind {
	case ArrayRangeLen:
		if t.HasRange {
			span := t.RangeEnd - t.RangeBegin + 1
			n = t.RangeBegin + uint64(rng.Int63n(int64(span)))
		}
	default:
		n = uint64(rng.Intn(6))
	}
	elemType := ctx.target.Type(t.Elem)
	inner := make([]Arg, n)
	for i := range inner {
		inner[i] = genArg(rng, ctx, elemType, dir, depth+1)
	}
	return &GroupArg{argCommon: argCommon{t, dir}, Inner: inner}
}

func genStruct(rng *rand.Rand, ctx *Context, t *StructType, dir Dir, depth int) *GroupArg {
	inner := make([]Arg, len(t.Fields))
	for i, f := range t.Fields {
		inner[i] = genArg(rng, ctx, ctx.target.Type(f.Type), dir, depth+1)
	}
	return &GroupArg{argCommon: argCommon{t, dir}, Inner: inner}
}

func genUnion(rng *rand.Rand, ctx *Context, t *UnionType, dir Dir, depth int) *UnionArg {
	idx := rng.Intn(len(t.Fields))
	f := t.Fields[idx]
	opt := genArg(rng, ctx, ctx.target.Type(f.Type), dir, depth+1)
	return &UnionArg{argCommon: argCommon{t, dir}, Index: idx, Opt: opt}
}

func genPtr(rng *rand.Rand, ctx *Context, t *PtrType, dir Dir, depth int) *PointerArg {
	if len(ctx.target.SpecialPointers) > 0 && rng.Intn(20) == 0 {
		idx := rng.Intn(len(ctx.target.SpecialPointers))
		return &PointerArg{argCommon: argCommon{t, dir}, Special: true, SpecialIdx: idx, Addr: ctx.target.SpecialPointers[idx]}
	}
	elemType := ctx.target.Type(t.Elem)
	pointee := genArg(rng, ctx, elemType, t.ElemDir, depth+1)
	addr := allocFor(ctx, pointee)
	return &PointerArg{argCommon: argCommon{t, dir}, Addr: addr, Pointee: pointee}
}

// allocFor reserves address space for an already-materialized pointee
// value, using its serialized size as the allocation size.
func allocFor(ctx *Context, a Arg) uint64 {
	size := ArgSize(a)
	if size == 0 {
		size = 1
	}
	return ctx.MemAlloc.Alloc(size, AllocGranule)
}

// genResource produces either a fresh Own occurrence (minting a new
// resource id), a Ref to a compatible previously generated resource, or
// a Null constant, weighted toward reuse once some compatible resource
// already exists in the program (since most resource-typed parameters
// are meant to operate on state an earlier call created).
func genResource(rng *rand.Rand, ctx *Context, t *ResType, dir Dir) *ResultArg {
	if dir == DirOut || dir == DirInOut {
		return genResultOwn(rng, ctx, t)
	}
	existing := ctx.ResIDs(t.ResKind)
	if len(existing) > 0 && rng.Intn(4) != 0 {
		owner := existing[rng.Intn(len(existing))]
		ref := &ResultArg{argCommon: argCommon{t, dir}, Kind: ResRef, Res: owner}
		owner.AddUse(ref)
		ctx.RecordUse(t.ResKind, ref)
		return ref
	}
	return &ResultArg{argCommon: argCommon{t, dir}, Kind: ResNull, Val: t.DefaultSpecialValue()}
}

func genResultOwn(rng *rand.Rand, ctx *Context, t *ResType) *ResultArg {
	r := &ResultArg{argCommon: argCommon{t, DirOut}, Kind: ResOwn, Id: ctx.NextResID()}
	ctx.RecordRes(t.ResKind, r)
	return r
}
