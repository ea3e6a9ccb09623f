// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
)

func init() {
	gob.Register(&ConstArg{})
	gob.Register(&VmaArg{})
	gob.Register(&DataArg{})
	gob.Register(&GroupArg{})
	gob.Register(&UnionArg{})
	gob.Register(&ResultArg{})
	gob.Register(&PointerArg{})
}

// gobProg is the gob-friendly shadow of Prog/Call: gob cannot encode the
// Type interface (types are shared, Target-owned values, identified by
// TypeId, never meant to be duplicated into a program's own encoding),
// so every Arg's Type is replaced by its TypeId and restored against the
// target on decode.
type gobProg struct {
	Calls []gobCall
}

type gobCall struct {
	SyscallName string
	Args        []gobArg
	HasRet      bool
	Ret         gobArg
}

// gobArg mirrors one concrete Arg variant with its Type field replaced by
// a TypeId tag resolved at decode time.
type gobArg struct {
	TypeID  TypeId
	Dir     Dir
	Kind    string // "const", "vma", "data", "group", "union", "result", "pointer"
	Val     uint64
	OutSize uint64
	Data    []byte
	Inner   []gobArg
	Index   int
	ResKind ResArgKind
	ResID   ResourceId
	RefIdx  int // index, within the flattened resource table, of the Own this Ref points to; -1 if none
	Div     uint64
	Add     uint64
	Addr    uint64
	VmaSize uint64
	Special bool
	SpecIdx int
	HasPointee bool
	Pointee *gobArg
}

// Serialize renders p as a self-contained byte blob (gob-encoded) that
// Deserialize can parse back into an equivalent program against the same
// Target. This is the format corpus snapshots are stored in; it is not
// the wire format the in-guest executor consumes
// (see SerializeForExec for that).
func Serialize(target *Target, p *Prog) []byte {
	gp := gobProg{Calls: make([]gobCall, len(p.Calls))}
	resIndex := map[*ResultArg]int{}
	nextIdx := 0
	registerOwn := func(a Arg) {
		if r, ok := a.(*ResultArg); ok && r.Kind == ResOwn {
			resIndex[r] = nextIdx
			nextIdx++
		}
	}
	for _, c := range p.Calls {
		ForeachArg(c.Args, registerOwn)
		if c.Ret != nil {
			registerOwn(c.Ret)
		}
	}
	for ci, c := range p.Calls {
		gc := gobCall{SyscallName: c.Meta.Name, Args: make([]gobArg, len(c.Args))}
		for i, a := range c.Args {
			gc.Args[i] = toGobArg(a, resIndex)
		}
		if c.Ret != nil {
			gc.HasRet = true
			gc.Ret = toGobArg(c.Ret, resIndex)
		}
		gp.Calls[ci] = gc
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gp); err != nil {
		panic(fmt.Sprintf("prog: serialize: %v", err))
	}
	return buf.Bytes()
}

func toGobArg(a Arg, resIndex map[*ResultArg]int) gobArg {
	g := gobArg{TypeID: a.Type().ID(), Dir: a.Dir()}
	switch v := a.(type) {
	case *ConstArg:
		g.Kind = "const"
		g.Val = v.Val
	case *VmaArg:
		g.Kind = "vma"
		g.Addr = v.Addr
		g.VmaSize = v.VmaSize
		g.Special = v.Special
	case *DataArg:
		g.Kind = "data"
		g.Data = v.data
		g.OutSize = v.outSize
	case *GroupArg:
		g.Kind = "group"
		g.Inner = make([]gobArg, len(v.Inner))
		for i, inner := range v.Inner {
			g.Inner[i] = toGobArg(inner, resIndex)
		}
	case *UnionArg:
		g.Kind = "union"
		g.Index = v.Index
		g.Inner = []gobArg{toGobArg(v.Opt, resIndex)}
	case *PointerArg:
		g.Kind = "pointer"
		g.Addr = v.Addr
		g.Special = v.Special
		g.SpecIdx = v.SpecialIdx
		g.VmaSize = v.VmaSize
		if v.Pointee != nil {
			g.HasPointee = true
			pg := toGobArg(v.Pointee, resIndex)
			g.Pointee = &pg
		}
	case *ResultArg:
		g.Kind = "result"
		g.ResKind = v.Kind
		g.Val = v.Val
		g.Div = v.Div
		g.Add = v.Add
		g.RefIdx = -1
		if v.Kind == ResOwn {
			g.ResID = v.Id
		} else if v.Kind == ResRef {
			g.RefIdx = resIndex[v.Res]
		}
	default:
		panic(fmt.Sprintf("prog: serialize: unknown arg %T", a))
	}
	return g
}

// Deserialize parses bytes previously produced by Serialize back into a
// Prog bound to target.
func Deserialize(target *Target, data []byte) (p *Prog, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("prog: deserialize: %v", r)
		}
	}()
	var gp gobProg
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gp); err != nil {
		return nil, fmt.Errorf("prog: deserialize: %w", err)
	}
	ownByIdx := map[int]*ResultArg{}
	idx := 0
	np := &Prog{Target: target, Calls: make([]*Call, len(gp.Calls))}
	for ci, gc := range gp.Calls {
		meta, ok := target.SyscallMap[gc.SyscallName]
		if !ok {
			return nil, fmt.Errorf("prog: deserialize: %w %q", ErrUnknownSyscall, gc.SyscallName)
		}
		c := &Call{Meta: meta, Args: make([]Arg, len(gc.Args)), GeneratedRes: map[ResKind][]*ResultArg{}, UsedRes: map[ResKind][]*ResultArg{}}
		for i, ga := range gc.Args {
			c.Args[i] = fromGobArg(target, ga, ownByIdx, &idx, c)
		}
		if gc.HasRet {
			c.Ret = fromGobArg(target, gc.Ret, ownByIdx, &idx, c).(*ResultArg)
		}
		np.Calls[ci] = c
	}
	return np, nil
}

func fromGobArg(target *Target, g gobArg, ownByIdx map[int]*ResultArg, idx *int, c *Call) Arg {
	t := target.Type(g.TypeID)
	ac := argCommon{t, g.Dir}
	switch g.Kind {
	case "const":
		return &ConstArg{argCommon: ac, Val: g.Val}
	case "vma":
		return &VmaArg{argCommon: ac, Addr: g.Addr, VmaSize: g.VmaSize, Special: g.Special}
	case "data":
		return &DataArg{argCommon: ac, data: g.Data, outSize: g.OutSize}
	case "group":
		inner := make([]Arg, len(g.Inner))
		for i, ga := range g.Inner {
			inner[i] = fromGobArg(target, ga, ownByIdx, idx, c)
		}
		return &GroupArg{argCommon: ac, Inner: inner}
	case "union":
		opt := fromGobArg(target, g.Inner[0], ownByIdx, idx, c)
		return &UnionArg{argCommon: ac, Index: g.Index, Opt: opt}
	case "pointer":
		p := &PointerArg{argCommon: ac, Addr: g.Addr, Special: g.Special, SpecialIdx: g.SpecIdx, VmaSize: g.VmaSize}
		if g.HasPointee {
			p.Pointee = fromGobArg(target, *g.Pointee, ownByIdx, idx, c)
		}
		return p
	case "result":
		r := &ResultArg{argCommon: ac, Kind: g.ResKind, Val: g.Val, Div: g.Div, Add: g.Add}
		switch g.ResKind {
		case ResOwn:
			r.Id = g.ResID
			ownByIdx[*idx] = r
			*idx++
			if rt, ok := t.(*ResType); ok {
				c.GeneratedRes[rt.ResKind] = append(c.GeneratedRes[rt.ResKind], r)
			}
		case ResRef:
			owner := ownByIdx[g.RefIdx]
			r.Res = owner
			if owner != nil {
				owner.AddUse(r)
			}
			if rt, ok := t.(*ResType); ok {
				c.UsedRes[rt.ResKind] = append(c.UsedRes[rt.ResKind], r)
			}
		}
		return r
	default:
		panic(fmt.Sprintf("prog: deserialize: unknown arg kind %q", g.Kind))
	}
}

// ExecBufferSize is the fixed size of the scratch buffer SerializeForExec
// encodes into; programs whose encoded size would exceed it are rejected
// rather than silently truncated.
const ExecBufferSize = 4 << 20

// execMagic tags the start of a serialized exec buffer so the in-guest
// executor can sanity-check it is reading a buffer produced by a
// compatible version of this serializer.
const execMagic = uint64(0xdeadbeef00ba5e1e)

// SerializeForExec encodes p into the fixed-layout binary buffer the
// Executor (see package ipc) reads. Every word is a little-endian uint64:
// a magic header (no version field), the call count, and for each call
// its syscall number, its argument count, then its arguments flattened
// depth-first. An integer is one word; a vma is its address and page
// count; a buffer is its length followed by its raw bytes; a group is its
// elements in order; a union is its option index followed by the option;
// a pointer is its address followed by its pointee, if any; a resource
// is its Val passed through Div/Add (a Ref's word carries no link to its
// Own). Returns ErrExecBufferTooSmall if the encoding does not fit in buf.
func (p *Prog) SerializeForExec(buf []byte) (int, error) {
	w := &execWriter{buf: buf}
	w.u64(execMagic)
	w.u64(uint64(len(p.Calls)))
	for _, c := range p.Calls {
		w.u64(c.Meta.NR)
		w.u64(uint64(len(c.Args)))
		for _, a := range c.Args {
			if err := writeExecArg(w, a); err != nil {
				return 0, err
			}
		}
	}
	if w.overflow {
		return 0, ErrExecBufferTooSmall
	}
	return w.off, nil
}

type execWriter struct {
	buf      []byte
	off      int
	overflow bool
}

func (w *execWriter) u64(v uint64) {
	if w.off+8 > len(w.buf) {
		w.overflow = true
		return
	}
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

func (w *execWriter) bytes(b []byte) {
	w.u64(uint64(len(b)))
	if w.off+len(b) > len(w.buf) {
		w.overflow = true
		return
	}
	copy(w.buf[w.off:], b)
	w.off += len(b)
}

func writeExecArg(w *execWriter, a Arg) error {
	switch v := a.(type) {
	case *ConstArg:
		w.u64(v.Val)
	case *VmaArg:
		w.u64(v.Addr)
		w.u64(v.VmaSize)
	case *DataArg:
		w.bytes(v.data)
	case *GroupArg:
		for _, inner := range v.Inner {
			if err := writeExecArg(w, inner); err != nil {
				return err
			}
		}
	case *UnionArg:
		w.u64(uint64(v.Index))
		return writeExecArg(w, v.Opt)
	case *PointerArg:
		w.u64(v.Addr)
		if v.Pointee != nil {
			return writeExecArg(w, v.Pointee)
		}
	case *ResultArg:
		w.u64(applyArith(v.Val, v.Div, v.Add))
	default:
		return fmt.Errorf("prog: serializeForExec: unknown arg %T", a)
	}
	if w.overflow {
		return ErrExecBufferTooSmall
	}
	return nil
}
