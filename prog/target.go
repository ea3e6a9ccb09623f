// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"fmt"
	"sort"
	"sync"
)

// SyscallAttrs collects the per-syscall behavioral knobs a target
// description can set: whether the call is disabled for this kernel
// build, per-call/per-program timeout overrides, whether its return
// value should be ignored by the generator, whether it is known to break
// an in-flight program when it fails (BreaksReturn), whether the
// minimizer skips shrinking its arguments (NoMinimize; the call itself
// can still be removed), and whether the generator is permitted to pick
// it at all (NoGenerate).
type SyscallAttrs struct {
	Disabled       bool
	Timeout        uint64
	ProgTimeout    uint64
	IgnoreReturn   bool
	BreaksReturn   bool
	NoMinimize     bool
	NoGenerate     bool
}

// Syscall is one entry of a Target's syscall table: its name, numeric id
// (an index into Target.Syscalls), its parameters and return type, and
// the resources it creates/consumes (derived once at registration time).
type Syscall struct {
	ID      SyscallId
	Name    string
	CallName string
	NR      uint64
	Args    []Field
	Ret     TypeId // TypeIdNone if the call has no resource-typed return
	Attrs   SyscallAttrs

	inputResources  map[ResKind]bool
	outputResources map[ResKind]bool
}

// TypeIdNone marks the absence of a return type.
const TypeIdNone TypeId = ^TypeId(0)

// ResourceDesc is one resource kind's declaration: its own name, the
// chain of kinds it is a sub-type of (narrowest first, ending at the
// root, e.g. sock_tcp -> sock -> fd), and the special constant values a
// Null occurrence of this kind may hold (e.g. -1 for an invalid fd).
type ResourceDesc struct {
	Kind        ResKind
	Lineage     []ResKind
	SpecialVals []uint64
}

// subOf reports whether a resource of kind sub may be used wherever a
// resource of kind super is expected (sub's lineage includes super).
func subOf(sub, super ResKind, descs map[ResKind]*ResourceDesc) bool {
	if sub == super {
		return true
	}
	d := descs[sub]
	if d == nil {
		return false
	}
	for _, k := range d.Lineage {
		if k == super {
			return true
		}
	}
	return false
}

// Target describes one OS/arch pair's syscall surface: its full syscall
// table, resource lattice, and the allocator/page-size constants the
// generator/mutator need. Construction mirrors syzkaller's own
// generated-then-registered model, except here the table is built
// directly in Go (no separate code generator) since this port targets a
// single illustrative Linux/amd64 surface rather than syzkaller's full
// multi-OS corpus.
type Target struct {
	OS       string
	Arch     string
	PtrSize  uint64
	PageSize uint64
	NumPages uint64

	Syscalls  []*Syscall
	Resources []*ResourceDesc

	SpecialPointers    []uint64
	SpecialFileLengths []int

	types map[TypeId]Type

	SyscallMap   map[string]*Syscall
	resourceMap  map[ResKind]*ResourceDesc
	resourceCtors map[ResKind][]SyscallId
}

var (
	targetsMu sync.Mutex
	targets   = make(map[string]*Target)
)

// RegisterTarget records target under its OS/Arch key and performs the
// one-time linkage of syscalls to their resource descriptors. Panics on a
// duplicate OS/Arch registration, matching the teacher's own fail-fast
// posture for programmer errors at init time.
func RegisterTarget(target *Target, types []Type) {
	targetsMu.Lock()
	defer targetsMu.Unlock()
	key := target.OS + "/" + target.Arch
	if targets[key] != nil {
		panic(fmt.Sprintf("prog: duplicate target %v", key))
	}
	target.link(types)
	targets[key] = target
}

// GetTarget returns the previously registered Target for OS/Arch.
func GetTarget(os, arch string) (*Target, error) {
	targetsMu.Lock()
	defer targetsMu.Unlock()
	key := os + "/" + arch
	t := targets[key]
	if t == nil {
		var known []string
		for k := range targets {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("prog: unknown target %v (known: %v)", key, known)
	}
	return t, nil
}

func (target *Target) link(types []Type) {
	target.types = make(map[TypeId]Type, len(types))
	for _, t := range types {
		target.types[t.ID()] = t
	}

	target.resourceMap = make(map[ResKind]*ResourceDesc, len(target.Resources))
	for _, r := range target.Resources {
		target.resourceMap[r.Kind] = r
	}

	target.SyscallMap = make(map[string]*Syscall, len(target.Syscalls))
	for i, c := range target.Syscalls {
		c.ID = SyscallId(i)
		target.SyscallMap[c.Name] = c
		c.inputResources, c.outputResources = target.analyzeCallResources(c)
	}

	target.resourceCtors = make(map[ResKind][]SyscallId)
	for _, c := range target.Syscalls {
		for kind := range c.outputResources {
			target.resourceCtors[kind] = append(target.resourceCtors[kind], c.ID)
		}
	}

	if len(target.SpecialPointers) == 0 {
		target.SpecialPointers = []uint64{0, 0xffffffffffffffff, 0x9999999999999999}
	}
	if len(target.SpecialFileLengths) == 0 {
		target.SpecialFileLengths = []int{256, 512, 4096}
	}
}

// Type resolves a TypeId to its Type, panicking if the id is unknown
// (which would indicate a corrupt/foreign program, a construction bug).
func (target *Target) Type(id TypeId) Type {
	t, ok := target.types[id]
	if !ok {
		panic(fmt.Sprintf("prog: unknown type id %d", id))
	}
	return t
}

// ResourceDescOf returns the descriptor for a resource kind, or nil.
func (target *Target) ResourceDescOf(kind ResKind) *ResourceDesc {
	return target.resourceMap[kind]
}

// IsSubKind reports whether sub may substitute for super in the
// resource lattice (used by the generator/mutator to pick a compatible
// existing resource instance for a Ref argument).
func (target *Target) IsSubKind(sub, super ResKind) bool {
	return subOf(sub, super, target.resourceMap)
}

// CtorsFor returns the ids of syscalls known to produce a resource whose
// kind is sub == kind or a descendant of kind in the lattice.
func (target *Target) CtorsFor(kind ResKind) []SyscallId {
	var out []SyscallId
	for k, ids := range target.resourceCtors {
		if target.IsSubKind(k, kind) {
			out = append(out, ids...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// analyzeCallResources walks a syscall's argument types (recursing
// through struct/array/union/ptr) and records which resource kinds it
// consumes (appear with DirIn/DirInOut) and which it produces (DirOut,
// including its own Ret). This is the static half of the influence
// relation built in relation.go: a call that outputs kind K statically
// influences any call that inputs a kind compatible with K.
func (target *Target) analyzeCallResources(c *Syscall) (in, out map[ResKind]bool) {
	in = make(map[ResKind]bool)
	out = make(map[ResKind]bool)
	var walk func(id TypeId, dir Dir)
	walk = func(id TypeId, dir Dir) {
		t := target.Type(id)
		switch tt := t.(type) {
		case *ResType:
			if dir == DirOut || dir == DirInOut {
				out[tt.ResKind] = true
			}
			if dir == DirIn || dir == DirInOut {
				in[tt.ResKind] = true
			}
		case *PtrType:
			walk(tt.Elem, tt.ElemDir)
		case *ArrayType:
			walk(tt.Elem, dir)
		case *StructType:
			for _, f := range tt.Fields {
				walk(f.Type, dir)
			}
		case *UnionType:
			for _, f := range tt.Fields {
				walk(f.Type, dir)
			}
		}
	}
	for _, f := range c.Args {
		walk(f.Type, DirIn)
	}
	if c.Ret != TypeIdNone {
		walk(c.Ret, DirOut)
	}
	return in, out
}
