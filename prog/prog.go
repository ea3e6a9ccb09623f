// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"fmt"
	"strings"
)

// Call is one syscall invocation within a Prog: the syscall descriptor,
// its fully materialized argument tree, and its (possibly Own) return
// value. GeneratedRes/UsedRes index, by resource kind, which Own/Ref
// arguments this call contributes so Minimize/Mutate can answer "does
// call A's removal affect call B" without re-walking the whole arg tree.
type Call struct {
	Meta *Syscall
	Args []Arg
	Ret  *ResultArg // nil if Meta.Ret == TypeIdNone

	GeneratedRes map[ResKind][]*ResultArg // Own args this call introduces
	UsedRes      map[ResKind][]*ResultArg // Ref args this call consumes
}

// Prog is a full program: an ordered sequence of Calls that share a
// single resource/address namespace (a Ref in call N may point to an Own
// introduced by any call before N).
type Prog struct {
	Target *Target
	Calls  []*Call
}

// ForeachArg walks every top-level argument of every call, recursing
// through Group/Union/Pointer containers, invoking f on each leaf and
// container Arg (container first, then its children).
func ForeachArg(args []Arg, f func(arg Arg)) {
	for _, a := range args {
		foreachArg1(a, f)
	}
}

func foreachArg1(a Arg, f func(arg Arg)) {
	if a == nil {
		return
	}
	f(a)
	switch v := a.(type) {
	case *GroupArg:
		for _, inner := range v.Inner {
			foreachArg1(inner, f)
		}
	case *UnionArg:
		foreachArg1(v.Opt, f)
	case *PointerArg:
		if v.Pointee != nil {
			foreachArg1(v.Pointee, f)
		}
	}
}

// ForeachArg walks every argument of a single call (including its
// return value if present).
func (c *Call) ForeachArg(f func(arg Arg)) {
	ForeachArg(c.Args, f)
	if c.Ret != nil {
		f(c.Ret)
	}
}

// Clone returns a deep copy of the program: every Call, Arg and the
// resource Own/Ref graph between them. Ref/Own identity within the clone
// is preserved (a Ref in the clone points at the cloned Own, not the
// original), which is required before any mutation that might otherwise
// corrupt the original's bookkeeping (uses maps, Res back-pointers).
func (p *Prog) Clone() *Prog {
	np := &Prog{Target: p.Target, Calls: make([]*Call, len(p.Calls))}
	resMap := make(map[*ResultArg]*ResultArg)
	for i, c := range p.Calls {
		np.Calls[i] = cloneCall(c, resMap)
	}
	// second pass: rewrite Ref.Res to point at the cloned Own now that
	// every Own in the program has a clone counterpart.
	for _, c := range np.Calls {
		c.ForeachArg(func(a Arg) {
			if r, ok := a.(*ResultArg); ok && r.Kind == ResRef {
				r.Res = resMap[r.Res]
				if r.Res != nil {
					r.Res.AddUse(r)
				}
			}
		})
	}
	return np
}

func cloneCall(c *Call, resMap map[*ResultArg]*ResultArg) *Call {
	nc := &Call{
		Meta:         c.Meta,
		Args:         make([]Arg, len(c.Args)),
		GeneratedRes: make(map[ResKind][]*ResultArg),
		UsedRes:      make(map[ResKind][]*ResultArg),
	}
	for i, a := range c.Args {
		nc.Args[i] = cloneArg(a, resMap)
	}
	if c.Ret != nil {
		nc.Ret = cloneArg(c.Ret, resMap).(*ResultArg)
	}
	for kind, rs := range c.GeneratedRes {
		for _, r := range rs {
			nc.GeneratedRes[kind] = append(nc.GeneratedRes[kind], resMap[r])
		}
	}
	for kind, rs := range c.UsedRes {
		// Ref clones are looked up lazily in the second Clone pass;
		// placeholder entries are fixed up there via resMap on Res.
		_ = kind
		_ = rs
	}
	return nc
}

func cloneArg(a Arg, resMap map[*ResultArg]*ResultArg) Arg {
	switch v := a.(type) {
	case *ConstArg:
		nv := *v
		return &nv
	case *VmaArg:
		nv := *v
		return &nv
	case *DataArg:
		nv := *v
		if v.data != nil {
			nv.data = append([]byte(nil), v.data...)
		}
		return &nv
	case *GroupArg:
		nv := &GroupArg{argCommon: v.argCommon, Inner: make([]Arg, len(v.Inner))}
		for i, inner := range v.Inner {
			nv.Inner[i] = cloneArg(inner, resMap)
		}
		return nv
	case *UnionArg:
		nv := &UnionArg{argCommon: v.argCommon, Index: v.Index}
		nv.Opt = cloneArg(v.Opt, resMap)
		return nv
	case *PointerArg:
		nv := &PointerArg{argCommon: v.argCommon, Addr: v.Addr, Special: v.Special, SpecialIdx: v.SpecialIdx, VmaSize: v.VmaSize}
		if v.Pointee != nil {
			nv.Pointee = cloneArg(v.Pointee, resMap)
		}
		return nv
	case *ResultArg:
		nv := &ResultArg{argCommon: v.argCommon, Kind: v.Kind, Id: v.Id, Val: v.Val, Div: v.Div, Add: v.Add, Res: v.Res}
		if v.Kind == ResOwn {
			resMap[v] = nv
		}
		// nv.Res for ResRef is fixed up by the caller's second pass.
		return nv
	default:
		panic(fmt.Sprintf("prog: cloneArg: unknown arg type %T", a))
	}
}

// RemoveCall deletes the call at index idx, rewriting any dangling Ref
// arguments elsewhere in the program (args that used to point at a
// resource this call owned) to Null.
func (p *Prog) RemoveCall(idx int) {
	c := p.Calls[idx]
	c.ForeachArg(func(a Arg) {
		r, ok := a.(*ResultArg)
		if !ok || r.Kind != ResOwn {
			return
		}
		for _, ref := range r.Uses() {
			ref.Kind = ResNull
			ref.Val = 0
			ref.Res = nil
			r.RemoveUse(ref)
		}
	})
	p.Calls = append(p.Calls[:idx], p.Calls[idx+1:]...)
}

// Validate checks structural invariants: every Ref points at an Own that
// occurs in an earlier call and is registered in that Own's uses map, and
// argument counts match the syscall's declared parameter count. It does
// not check that a uses map holds only Refs still present in the program. It is intended for tests and for defensive
// checks after mutation/minimization, not the hot generation path.
func (p *Prog) Validate() error {
	seen := make(map[*ResultArg]bool)
	for ci, c := range p.Calls {
		if len(c.Args) != len(c.Meta.Args) {
			return fmt.Errorf("prog: call %d (%s): got %d args, want %d", ci, c.Meta.Name, len(c.Args), len(c.Meta.Args))
		}
		var err error
		c.ForeachArg(func(a Arg) {
			if err != nil {
				return
			}
			r, ok := a.(*ResultArg)
			if !ok {
				return
			}
			switch r.Kind {
			case ResOwn:
				seen[r] = true
			case ResRef:
				if r.Res == nil || !seen[r.Res] {
					err = fmt.Errorf("prog: call %d (%s): %w", ci, c.Meta.Name, ErrBadResourceRef)
					return
				}
				if !r.Res.uses[r] {
					err = fmt.Errorf("prog: call %d (%s): ref not registered in owner's uses", ci, c.Meta.Name)
				}
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// String renders a compact human-readable dump of p, one call per line,
// for crash logs and debugging; it is not a serialization format and has
// no corresponding parser (use Serialize/Deserialize for that).
func (p *Prog) String() string {
	var b strings.Builder
	for i, c := range p.Calls {
		fmt.Fprintf(&b, "%d: %s(", i, c.Meta.Name)
		for j, a := range c.Args {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprint(&b, a)
		}
		b.WriteString(")")
		if c.Ret != nil {
			fmt.Fprintf(&b, " = %s", c.Ret)
		}
		b.WriteString("\n")
	}
	return b.String()
}
