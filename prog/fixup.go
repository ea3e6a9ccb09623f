// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

// ArgSize returns the serialized size, in bytes, of a materialized
// argument. Fixed-size types report their declared TypeCommon.Size();
// variable-length types (buffers, arrays of varlen elements) are
// measured structurally since their actual size depends on the value
// generated, not just the type.
func ArgSize(a Arg) uint64 {
	switch v := a.(type) {
	case *ConstArg:
		return v.typ.Size()
	case *VmaArg:
		return v.typ.Size()
	case *DataArg:
		return v.Size()
	case *GroupArg:
		if !v.typ.Varlen() {
			return v.typ.Size()
		}
		var sum uint64
		for _, inner := range v.Inner {
			sum += ArgSize(inner)
		}
		return sum
	case *UnionArg:
		if !v.typ.Varlen() {
			return v.typ.Size()
		}
		return ArgSize(v.Opt)
	case *PointerArg:
		return v.typ.Size()
	case *ResultArg:
		return v.typ.Size()
	default:
		return 0
	}
}

// FixupCall resolves every top-level LenType argument of a freshly
// generated or mutated call to the measured size of the field(s) its Path
// names; LenType fields nested inside structs are not resolved. Must run
// after a call's Args are fully populated, since len fields read other
// fields' materialized sizes.
func FixupCall(target *Target, c *Call) {
	byName := make(map[string]Arg, len(c.Args))
	for i, f := range c.Meta.Args {
		byName[f.Name] = c.Args[i]
	}
	for i, f := range c.Meta.Args {
		lt, ok := target.Type(f.Type).(*LenType)
		if !ok {
			continue
		}
		ca, ok := c.Args[i].(*ConstArg)
		if !ok {
			continue
		}
		ca.Val = resolveLen(c.Args, byName, lt)
	}
}

// resolveLen computes the value a LenType field carries: the size of the
// field named by the last component of Path, searched first among the
// call's own arguments and, failing that, recursively through
// struct-valued arguments (so a field can measure a sibling nested two
// levels down, e.g. "payload.data"). An empty Path yields the summed size
// of all the call's arguments. Only sizes are computed; Offset is not
// read.
func resolveLen(args []Arg, byName map[string]Arg, lt *LenType) uint64 {
	if len(lt.Path) == 0 {
		var sum uint64
		for _, a := range args {
			sum += ArgSize(a)
		}
		if lt.BitSize > 0 {
			return sum * 8
		}
		return sum
	}
	target, ok := byName[lt.Path[len(lt.Path)-1]]
	if !ok {
		target = findNamed(args, lt.Path[len(lt.Path)-1])
	}
	if target == nil {
		return 0
	}
	size := ArgSize(target)
	if lt.BitSize > 0 {
		return size * 8
	}
	return size
}

func findNamed(args []Arg, name string) Arg {
	for _, a := range args {
		g, ok := a.(*GroupArg)
		if !ok {
			continue
		}
		st, ok := g.typ.(*StructType)
		if !ok {
			continue
		}
		for i, f := range st.Fields {
			if f.Name == name {
				return g.Inner[i]
			}
		}
		if found := findNamed(g.Inner, name); found != nil {
			return found
		}
	}
	return nil
}
