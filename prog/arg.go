// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import "fmt"

// Arg is a materialized value attached to a Type. Every Type kind
// produces exactly one Arg shape, per ValueKindOf: integers/flags/len/proc
// fields all share ConstArg, vma fields use VmaArg, buffers use DataArg,
// resources use ResultArg, pointers use PointerArg, struct/array use
// GroupArg, and unions use UnionArg.
type Arg interface {
	Type() Type
	Dir() Dir
}

type argCommon struct {
	typ Type
	dir Dir
}

func (a *argCommon) Type() Type { return a.typ }
func (a *argCommon) Dir() Dir   { return a.dir }

// ConstArg carries a scalar for Const/Int/Flags/Len/Proc/Csum types.
type ConstArg struct {
	argCommon
	Val uint64
}

func (a *ConstArg) String() string { return fmt.Sprintf("%#x", a.Val) }

// VmaArg is a virtual memory area argument: either a page range drawn
// from the per-program VmaAllocator, or one of the type's special values.
type VmaArg struct {
	argCommon
	Addr    uint64
	VmaSize uint64 // size in pages
	Special bool
}

func (a *VmaArg) String() string { return fmt.Sprintf("vma[%#x/%d]", a.Addr, a.VmaSize) }

// DataArg holds a Buffer value. For In/InOut directions data holds the
// actual bytes; for Out-only buffers only outSize (the space the executor
// must reserve) is meaningful and data is nil.
type DataArg struct {
	argCommon
	data    []byte
	outSize uint64
}

// Data returns the buffer's bytes. Only valid for non-Out-only args.
func (a *DataArg) Data() []byte { return a.data }

// SetData replaces the buffer's bytes (DirIn/DirInOut only).
func (a *DataArg) SetData(b []byte) { a.data = b }

// Size returns the buffer's length in bytes, whether backed by real
// data or by a reserved output size.
func (a *DataArg) Size() uint64 {
	if a.dir == DirOut {
		return a.outSize
	}
	return uint64(len(a.data))
}

func (a *DataArg) String() string {
	if a.dir == DirOut {
		return fmt.Sprintf("data(out, %d bytes)", a.outSize)
	}
	return fmt.Sprintf("data(%d bytes)", len(a.data))
}

// GroupArg holds the ordered sub-arguments of a Struct or Array value.
type GroupArg struct {
	argCommon
	Inner []Arg
}

func (a *GroupArg) String() string { return fmt.Sprintf("group(%d)", len(a.Inner)) }

// UnionArg holds the single chosen option of a Union value.
type UnionArg struct {
	argCommon
	Index int // index into the UnionType's Fields
	Opt   Arg
}

func (a *UnionArg) String() string { return fmt.Sprintf("union(#%d)", a.Index) }

// ResArgKind distinguishes the three shapes a resource argument can take.
type ResArgKind int

const (
	// ResOwn introduces a brand-new resource instance: this call's return
	// value (or an out-parameter) is the resource's creation point.
	ResOwn ResArgKind = iota
	// ResRef points at a resource instance introduced by an earlier Own
	// occurrence in the same program.
	ResRef
	// ResNull is a resource argument that carries a constant (often zero
	// or a type-declared special value) rather than referencing any
	// program-generated resource.
	ResNull
)

// ResultArg is the resource-typed Arg shape. An Own occurrence is
// identified by its Id and tracks every Ref that currently points to it in
// uses, so that removing the owning call can rewrite dangling refs to
// Null. A Ref occurrence points back to its Own via Res. Div/Add apply an
// optional arithmetic transform to the referenced value (e.g. fd+1),
// mirroring syzkaller's ResultArg OpDiv/OpAdd.
type ResultArg struct {
	argCommon
	Kind ResArgKind
	Id   ResourceId     // valid when Kind == ResOwn
	Res  *ResultArg     // valid when Kind == ResRef, points at the Own arg
	Val  uint64         // valid when Kind == ResNull
	uses map[*ResultArg]bool
	Div  uint64
	Add  uint64
}

func (a *ResultArg) String() string {
	switch a.Kind {
	case ResOwn:
		return fmt.Sprintf("r%d=", a.Id)
	case ResRef:
		return fmt.Sprintf("ref(r%d)", a.Res.Id)
	default:
		return fmt.Sprintf("%#x", a.Val)
	}
}

// AddUse records that ref points to this Own argument.
func (a *ResultArg) AddUse(ref *ResultArg) {
	if a.uses == nil {
		a.uses = make(map[*ResultArg]bool)
	}
	a.uses[ref] = true
}

// RemoveUse forgets that ref points to this Own argument.
func (a *ResultArg) RemoveUse(ref *ResultArg) {
	delete(a.uses, ref)
}

// Uses returns every Ref argument currently pointing at this Own argument.
func (a *ResultArg) Uses() []*ResultArg {
	out := make([]*ResultArg, 0, len(a.uses))
	for r := range a.uses {
		out = append(out, r)
	}
	return out
}

// PointerArg is the Ptr value shape: an address drawn from the byte
// Allocator plus the pointee Arg, or one of the type's special (often
// null) pointer values when Special is true.
type PointerArg struct {
	argCommon
	Addr       uint64
	Pointee    Arg
	Special    bool
	SpecialIdx int
	VmaSize    uint64 // non-zero when the pointee is itself a vma range
}

func (a *PointerArg) String() string {
	if a.Special {
		return fmt.Sprintf("ptr(special#%d)", a.SpecialIdx)
	}
	return fmt.Sprintf("ptr(%#x)", a.Addr)
}

// applyArith returns v transformed by a ResultArg's Div/Add modifiers, as
// applied when a reference argument's value is serialized or read back by
// the generator/mutator.
func applyArith(v, div, add uint64) uint64 {
	if div != 0 {
		v /= div
	}
	return v + add
}
