// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package prog implements the syzlang-derived type system, the program
// representation, and the generator/mutator/serializer that together form
// the core of the fuzzing engine.
package prog

import "fmt"

// TypeId identifies a Type within a Target. Type references inside other
// Types (array element, pointer pointee, struct/union fields) are stored as
// TypeId rather than direct references, so the type graph can contain
// cycles (e.g. a struct holding a pointer to itself) without requiring
// shared ownership.
type TypeId uint32

// SyscallId identifies a Syscall within a Target's Syscalls slice.
type SyscallId int

// ResKind is the name of a resource kind, e.g. "fd" or "sock".
type ResKind string

// ResourceId identifies one resource instance (an Own occurrence) within a
// single Prog. Ids are stable across clones and structural mutation.
type ResourceId uint64

// Dir is the direction of a value: whether it is read by the kernel (In),
// written by the kernel (Out), or both (InOut).
type Dir int

const (
	DirIn Dir = iota
	DirOut
	DirInOut
)

func (d Dir) String() string {
	switch d {
	case DirIn:
		return "in"
	case DirOut:
		return "out"
	case DirInOut:
		return "inout"
	default:
		return fmt.Sprintf("Dir(%d)", int(d))
	}
}

// TypeKind identifies which concrete Type a Type value wraps.
type TypeKind int

const (
	TypeRes TypeKind = iota
	TypeConst
	TypeInt
	TypeFlags
	TypeLen
	TypeProc
	TypeCsum
	TypeVma
	TypeBufferBlob
	TypeBufferString
	TypeBufferFilename
	TypeArray
	TypePtr
	TypeStruct
	TypeUnion
)

func (k TypeKind) String() string {
	switch k {
	case TypeRes:
		return "res"
	case TypeConst:
		return "const"
	case TypeInt:
		return "int"
	case TypeFlags:
		return "flags"
	case TypeLen:
		return "len"
	case TypeProc:
		return "proc"
	case TypeCsum:
		return "csum"
	case TypeVma:
		return "vma"
	case TypeBufferBlob:
		return "buffer_blob"
	case TypeBufferString:
		return "buffer_string"
	case TypeBufferFilename:
		return "buffer_filename"
	case TypeArray:
		return "array"
	case TypePtr:
		return "ptr"
	case TypeStruct:
		return "struct"
	case TypeUnion:
		return "union"
	default:
		return fmt.Sprintf("TypeKind(%d)", int(k))
	}
}

// ValueKind identifies which concrete Arg shape corresponds to a TypeKind,
// per the table in spec §4.1.
type ValueKind int

const (
	ValueInteger ValueKind = iota
	ValueVma
	ValueData
	ValueResource
	ValuePointer
	ValueGroup
	ValueUnion
)

// ValueKindOf returns the Arg shape that a value of the given TypeKind is
// represented with.
func ValueKindOf(k TypeKind) ValueKind {
	switch k {
	case TypeConst, TypeInt, TypeFlags, TypeLen, TypeProc, TypeCsum:
		return ValueInteger
	case TypeVma:
		return ValueVma
	case TypeBufferBlob, TypeBufferString, TypeBufferFilename:
		return ValueData
	case TypeRes:
		return ValueResource
	case TypePtr:
		return ValuePointer
	case TypeArray, TypeStruct:
		return ValueGroup
	case TypeUnion:
		return ValueUnion
	default:
		panic(fmt.Sprintf("prog: no value kind for %v", k))
	}
}

// BinaryFormat controls how an integer-like value is laid out on the wire.
type BinaryFormat int

const (
	FormatNative BinaryFormat = iota
	FormatBigEndian
	FormatStrDec
	FormatStrHex
	FormatStrOct
)

// Field is a named, typed member of a Struct/Union type or a Syscall's
// parameter list.
type Field struct {
	Name string
	Type TypeId
}

// TypeCommon is the header embedded in every concrete Type, carrying the
// identity/layout/optionality/varlen attributes common to all type kinds
// (spec §3 "Type (tagged variant + common header)").
type TypeCommon struct {
	id       TypeId
	name     string
	size     uint64
	align    uint64
	optional bool
	varlen   bool
}

func newCommon(id TypeId, name string, size, align uint64, optional, varlen bool) TypeCommon {
	return TypeCommon{id: id, name: name, size: size, align: align, optional: optional, varlen: varlen}
}

// NewTypeCommon builds a TypeCommon header, exported so target
// description packages outside prog (e.g. a per-OS syscall table) can
// construct concrete Type values without reaching into unexported
// fields, the same way syzkaller's generated sys/<os> packages build
// their type tables against the prog package's public constructors.
func NewTypeCommon(id TypeId, name string, size, align uint64, optional, varlen bool) TypeCommon {
	return newCommon(id, name, size, align, optional, varlen)
}

func (c *TypeCommon) ID() TypeId      { return c.id }
func (c *TypeCommon) Name() string    { return c.name }
func (c *TypeCommon) Size() uint64    { return c.size }
func (c *TypeCommon) Align() uint64   { return c.align }
func (c *TypeCommon) Optional() bool  { return c.optional }
func (c *TypeCommon) Varlen() bool    { return c.varlen }
func (c *TypeCommon) setID(id TypeId) { c.id = id }
