// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"fmt"
	"strings"
)

// Type is the common contract every syscall parameter/return shape
// satisfies: identity/layout (via the embedded TypeCommon), the value it
// defaults to in a given direction, and a textual display used for
// logging. Pointee/element/field types are referenced by TypeId, never by
// direct pointer, so the type graph may contain cycles (a struct
// containing a pointer to itself) without shared-ownership trickery.
type Type interface {
	ID() TypeId
	Name() string
	Size() uint64
	Align() uint64
	Optional() bool
	Varlen() bool
	Kind() TypeKind
	DefaultValue(dir Dir) Arg
	IsDefault(a Arg) bool
	fmt.Stringer
}

// ResType describes a resource (e.g. a file descriptor). ResKind is the
// resource's own name; Lineage lists ResKind followed by every ancestor kind
// it is a sub-type of, narrowest first (e.g. ["sock_tcp", "sock", "fd"]).
type ResType struct {
	TypeCommon
	ResKind     ResKind
	Lineage     []ResKind
	SpecialVals []uint64
	Fmt         BinaryFormat
}

func (t *ResType) Kind() TypeKind { return TypeRes }

func (t *ResType) DefaultSpecialValue() uint64 {
	if len(t.SpecialVals) > 0 {
		return t.SpecialVals[0]
	}
	return 0
}

func (t *ResType) DefaultValue(dir Dir) Arg {
	return &ResultArg{typ: t, dir: dir, Kind: ResNull, Val: t.DefaultSpecialValue()}
}

func (t *ResType) IsDefault(a Arg) bool {
	r, ok := a.(*ResultArg)
	return ok && r.Kind == ResNull && r.Val == t.DefaultSpecialValue()
}

func (t *ResType) String() string {
	return fmt.Sprintf("res[%s]%s", t.ResKind, optSuffix(t.Optional()))
}

// ConstType is a fixed, never-varying integer value (e.g. a literal flag).
type ConstType struct {
	TypeCommon
	Val uint64
	Pad bool
	Fmt BinaryFormat
}

func (t *ConstType) Kind() TypeKind { return TypeConst }
func (t *ConstType) DefaultValue(dir Dir) Arg {
	return &ConstArg{typ: t, dir: dir, Val: t.Val}
}
func (t *ConstType) IsDefault(a Arg) bool {
	c, ok := a.(*ConstArg)
	return ok && c.Val == t.Val
}
func (t *ConstType) String() string { return fmt.Sprintf("const[%#x]", t.Val) }

// IntType is a bounded or unbounded integer.
type IntType struct {
	TypeCommon
	HasRange    bool
	RangeBegin  uint64
	RangeEnd    uint64
	ValAlign    uint64 // generation-time alignment of drawn values, 0 = none
	Fmt         BinaryFormat
	BitfieldLen uint64 // 0 = not a bitfield
	BitfieldOff uint64
}

func (t *IntType) Kind() TypeKind { return TypeInt }
func (t *IntType) DefaultValue(dir Dir) Arg {
	v := uint64(0)
	if t.HasRange {
		v = t.RangeBegin
	}
	return &ConstArg{typ: t, dir: dir, Val: v}
}
func (t *IntType) IsDefault(a Arg) bool {
	c, ok := a.(*ConstArg)
	return ok && c.Val == t.DefaultValue(DirIn).(*ConstArg).Val
}
func (t *IntType) String() string {
	if t.HasRange {
		return fmt.Sprintf("int[%d:%d]", t.RangeBegin, t.RangeEnd)
	}
	return "int"
}

// FlagsType is a named set of bit/enum values, optionally combined as a
// bitmask.
type FlagsType struct {
	TypeCommon
	Vals    []uint64
	Bitmask bool
}

func (t *FlagsType) Kind() TypeKind { return TypeFlags }
func (t *FlagsType) DefaultValue(dir Dir) Arg {
	return &ConstArg{typ: t, dir: dir, Val: 0}
}
func (t *FlagsType) IsDefault(a Arg) bool {
	c, ok := a.(*ConstArg)
	return ok && c.Val == 0
}
func (t *FlagsType) String() string { return fmt.Sprintf("flags%v", t.Vals) }

// LenType measures another field of the same call, identified by Path
// (e.g. ["buf"] for a sibling field); "parent" has no special meaning,
// and an empty Path measures the summed size of all the call's
// arguments. FixupCall does not consult Offset.
type LenType struct {
	TypeCommon
	BitSize uint64 // 0 = measured in bytes
	Offset  bool   // true = offset-of rather than size-of
	Path    []string
}

func (t *LenType) Kind() TypeKind { return TypeLen }
func (t *LenType) DefaultValue(dir Dir) Arg {
	return &ConstArg{typ: t, dir: dir, Val: 0}
}
func (t *LenType) IsDefault(a Arg) bool {
	c, ok := a.(*ConstArg)
	return ok && c.Val == 0
}
func (t *LenType) String() string { return fmt.Sprintf("len[%s]", strings.Join(t.Path, ".")) }

// ProcType yields a small per-process-instance stride, used to keep
// concurrently executing processes from colliding on the same value
// (e.g. distinct pids).
type ProcType struct {
	TypeCommon
	PerProc uint64
}

func (t *ProcType) Kind() TypeKind { return TypeProc }
func (t *ProcType) DefaultValue(dir Dir) Arg {
	return &ConstArg{typ: t, dir: dir, Val: 0}
}
func (t *ProcType) IsDefault(a Arg) bool {
	c, ok := a.(*ConstArg)
	return ok && c.Val == 0
}
func (t *ProcType) String() string { return fmt.Sprintf("proc[0:%d]", t.PerProc) }

// CsumKind identifies what a CsumType checksums.
type CsumKind int

const (
	CsumInet CsumKind = iota
	CsumPseudo
)

// CsumType is a checksum field; the generator fills in a random value and
// the in-guest executor recomputes the real checksum before the call.
type CsumType struct {
	TypeCommon
	Buf  string
	Kind_ CsumKind
}

func (t *CsumType) Kind() TypeKind { return TypeCsum }
func (t *CsumType) DefaultValue(dir Dir) Arg {
	return &ConstArg{typ: t, dir: dir, Val: 0}
}
func (t *CsumType) IsDefault(a Arg) bool {
	c, ok := a.(*ConstArg)
	return ok && c.Val == 0
}
func (t *CsumType) String() string { return fmt.Sprintf("csum[%s]", t.Buf) }

// VmaType is a virtual-memory-area argument: an address plus a page count.
type VmaType struct {
	TypeCommon
	RangeBegin uint64
	RangeEnd   uint64
	HasRange   bool
}

func (t *VmaType) Kind() TypeKind { return TypeVma }
func (t *VmaType) DefaultValue(dir Dir) Arg {
	return &VmaArg{typ: t, dir: dir}
}
func (t *VmaType) IsDefault(a Arg) bool {
	v, ok := a.(*VmaArg)
	return ok && v.Addr == 0 && v.VmaSize == 0 && !v.Special
}
func (t *VmaType) String() string { return "vma" }

// BufferBlobType is an opaque byte buffer (fixed or within a declared
// range of lengths).
type BufferBlobType struct {
	TypeCommon
	HasRange   bool
	RangeBegin uint64
	RangeEnd   uint64
	SubKind    string
	Literals   [][]byte
	TextKind   string
	HasText    bool
}

func (t *BufferBlobType) Kind() TypeKind { return TypeBufferBlob }
func (t *BufferBlobType) DefaultValue(dir Dir) Arg {
	if dir == DirOut {
		return &DataArg{typ: t, dir: dir, outSize: t.defaultSize()}
	}
	return &DataArg{typ: t, dir: dir, data: make([]byte, t.defaultSize())}
}
func (t *BufferBlobType) defaultSize() uint64 {
	if t.Size() > 0 {
		return t.Size()
	}
	if t.HasRange {
		return t.RangeBegin
	}
	return 0
}
func (t *BufferBlobType) IsDefault(a Arg) bool {
	d, ok := a.(*DataArg)
	return ok && len(d.data) == 0 && d.outSize == t.defaultSize()
}
func (t *BufferBlobType) String() string { return "buffer" }

// BufferStringType is a buffer drawn from a set of literal values, a
// pool of previously generated strings, or random printable bytes.
type BufferStringType struct {
	TypeCommon
	SubKind  string
	Literals []string
	NoZ      bool
	Glob     bool
}

func (t *BufferStringType) Kind() TypeKind { return TypeBufferString }
func (t *BufferStringType) DefaultValue(dir Dir) Arg {
	if len(t.Literals) > 0 {
		return &DataArg{typ: t, dir: dir, data: stringDefaultBytes(t.Literals[0], t.NoZ)}
	}
	return &DataArg{typ: t, dir: dir, data: stringDefaultBytes("", t.NoZ)}
}
func stringDefaultBytes(s string, noz bool) []byte {
	b := []byte(s)
	if !noz {
		b = append(b, 0)
	}
	return b
}
func (t *BufferStringType) IsDefault(a Arg) bool {
	d, ok := a.(*DataArg)
	if !ok {
		return false
	}
	var want []byte
	if len(t.Literals) > 0 {
		want = stringDefaultBytes(t.Literals[0], t.NoZ)
	} else {
		want = stringDefaultBytes("", t.NoZ)
	}
	return string(d.data) == string(want)
}
func (t *BufferStringType) String() string { return "string" }

// BufferFilenameType is a file path buffer.
type BufferFilenameType struct {
	TypeCommon
	Literals []string
	NoZ      bool
}

func (t *BufferFilenameType) Kind() TypeKind { return TypeBufferFilename }
func (t *BufferFilenameType) DefaultValue(dir Dir) Arg {
	return &DataArg{typ: t, dir: dir, data: stringDefaultBytes("", t.NoZ)}
}
func (t *BufferFilenameType) IsDefault(a Arg) bool {
	d, ok := a.(*DataArg)
	return ok && string(d.data) == string(stringDefaultBytes("", t.NoZ))
}
func (t *BufferFilenameType) String() string { return "filename" }

// ArrayKind distinguishes a range-bounded array from one with a free
// (random) length.
type ArrayKind int

const (
	ArrayRandLen ArrayKind = iota
	ArrayRangeLen
)

// ArrayType is a homogeneous sequence of Elem-typed values.
type ArrayType struct {
	TypeCommon
	Elem       TypeId
	ElemKind   ArrayKind
	RangeBegin uint64
	RangeEnd   uint64
	HasRange   bool
}

func (t *ArrayType) Kind() TypeKind { return TypeArray }
func (t *ArrayType) DefaultValue(dir Dir) Arg {
	return &GroupArg{typ: t, dir: dir}
}
func (t *ArrayType) IsDefault(a Arg) bool {
	g, ok := a.(*GroupArg)
	return ok && len(g.Inner) == 0
}
func (t *ArrayType) String() string { return fmt.Sprintf("array[%d]", t.Elem) }

// PtrType describes a pointer; ElemDir gives the pointee's direction
// independent of the pointer's own (some ABIs pass an `in` pointer to an
// `out` buffer).
type PtrType struct {
	TypeCommon
	Elem    TypeId
	ElemDir Dir
}

func (t *PtrType) Kind() TypeKind { return TypePtr }
func (t *PtrType) DefaultValue(dir Dir) Arg {
	return &PointerArg{typ: t, dir: dir, Special: true, SpecialIdx: 0}
}
func (t *PtrType) IsDefault(a Arg) bool {
	p, ok := a.(*PointerArg)
	return ok && p.Special && p.SpecialIdx == 0
}
func (t *PtrType) String() string { return fmt.Sprintf("ptr[%s, %d]", t.ElemDir, t.Elem) }

// StructType is a sequence of named, independently typed fields.
type StructType struct {
	TypeCommon
	Fields    []Field
	AlignAttr uint64
}

func (t *StructType) Kind() TypeKind { return TypeStruct }
func (t *StructType) DefaultValue(dir Dir) Arg {
	return &GroupArg{typ: t, dir: dir}
}
func (t *StructType) IsDefault(a Arg) bool {
	_, ok := a.(*GroupArg)
	return ok
}
func (t *StructType) String() string { return fmt.Sprintf("struct %s", t.Name()) }

// UnionType is a choice between differently typed fields, exactly one of
// which is materialized at a time.
type UnionType struct {
	TypeCommon
	Fields []Field
}

func (t *UnionType) Kind() TypeKind { return TypeUnion }
func (t *UnionType) DefaultValue(dir Dir) Arg {
	return &UnionArg{typ: t, dir: dir, Index: 0}
}
func (t *UnionType) IsDefault(a Arg) bool {
	u, ok := a.(*UnionArg)
	return ok && u.Index == 0
}
func (t *UnionType) String() string { return fmt.Sprintf("union %s", t.Name()) }

func optSuffix(opt bool) string {
	if opt {
		return "(opt)"
	}
	return ""
}
