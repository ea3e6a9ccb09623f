// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import "fmt"

// callBuilder is the in-progress state of one Call while the generator or
// mutator is filling in its arguments. Resource ids minted while a
// callBuilder is on top of Context's stack are attributed to that call's
// GeneratedRes, which is why argument synthesis always happens between a
// push and its matching pop rather than by constructing *Call directly.
type callBuilder struct {
	meta         *Syscall
	args         []Arg
	ret          *ResultArg
	generatedRes map[ResKind][]*ResultArg
	usedRes      map[ResKind][]*ResultArg
}

func newCallBuilder(meta *Syscall) *callBuilder {
	return &callBuilder{
		meta:         meta,
		generatedRes: make(map[ResKind][]*ResultArg),
		usedRes:      make(map[ResKind][]*ResultArg),
	}
}

func (b *callBuilder) build() *Call {
	return &Call{
		Meta:         b.meta,
		Args:         b.args,
		Ret:          b.ret,
		GeneratedRes: b.generatedRes,
		UsedRes:      b.usedRes,
	}
}

// Context accumulates the scratch state needed to generate or mutate a
// single program: the two dummy allocators, the pool of resources and
// strings produced so far (so later calls can reference them), and the
// stack of calls currently under construction. Exactly one Context is
// created per generate/mutate invocation and consumed by ToProg once the
// program is complete.
type Context struct {
	target   *Target
	relation *Relation

	MemAlloc *Allocator
	VmaAlloc *VmaAllocator

	nextResID ResourceId
	resKinds  []ResKind
	resIDs    map[ResKind][]*ResultArg

	strs      [][]byte
	filenames [][]byte

	calls []*Call

	stack []*callBuilder
}

// NewContext creates an empty Context for target, consulting relation
// for influence-aware syscall/argument choices.
func NewContext(target *Target, relation *Relation) *Context {
	return &Context{
		target:   target,
		relation: relation,
		MemAlloc: NewAllocator(target.NumPages * target.PageSize),
		VmaAlloc: NewVmaAllocator(target.NumPages),
		resIDs:   make(map[ResKind][]*ResultArg),
	}
}

func (c *Context) Target() *Target     { return c.target }
func (c *Context) Relation() *Relation { return c.relation }
func (c *Context) Calls() []*Call      { return c.calls }
func (c *Context) ResKinds() []ResKind { return c.resKinds }

// ResIDs returns the Own arguments generated so far for kind (and its
// descendants in the resource lattice), used by the generator to decide
// whether to reuse an existing resource instance or mint a new one.
func (c *Context) ResIDs(kind ResKind) []*ResultArg {
	var out []*ResultArg
	for k, rs := range c.resIDs {
		if c.target.IsSubKind(k, kind) {
			out = append(out, rs...)
		}
	}
	return out
}

// NextResID mints a fresh ResourceId.
func (c *Context) NextResID() ResourceId {
	id := c.nextResID
	c.nextResID++
	return id
}

// RecordStr/RecordFilename pool previously generated buffer values so
// later calls in the same program can be biased toward reusing them
// (e.g. opening a filename a prior call already created).
func (c *Context) RecordStr(v []byte) {
	c.strs = append(c.strs, v)
}

func (c *Context) Strs() [][]byte { return c.strs }

func (c *Context) RecordFilename(v []byte) bool {
	for _, f := range c.filenames {
		if string(f) == string(v) {
			return false
		}
	}
	c.filenames = append(c.filenames, v)
	return true
}

func (c *Context) Filenames() [][]byte { return c.filenames }

// PushCall begins construction of a new call for meta, making it the
// target of subsequent resource-id attribution (see RecordRes).
func (c *Context) PushCall(meta *Syscall) {
	c.stack = append(c.stack, newCallBuilder(meta))
}

// Current returns the call builder currently on top of the stack. Panics
// if nothing has been pushed, which indicates a generator/mutator bug:
// every argument-construction helper that mints a resource must run
// between a PushCall and its matching PopCall.
func (c *Context) Current() *callBuilder {
	if len(c.stack) == 0 {
		panic("prog: context: no call under construction")
	}
	return c.stack[len(c.stack)-1]
}

// SetArgs/SetRet fill in the call currently under construction.
func (b *callBuilder) SetArgs(args []Arg) { b.args = args }
func (b *callBuilder) SetRet(r *ResultArg) { b.ret = r }

// RecordRes attributes a newly minted Own argument to the call currently
// under construction and to the Context's global resource pool, so both
// "what did this call produce" (Call.GeneratedRes) and "what resources of
// kind K exist so far" (Context.ResIDs) stay in sync.
func (c *Context) RecordRes(kind ResKind, r *ResultArg) {
	cur := c.Current()
	cur.generatedRes[kind] = append(cur.generatedRes[kind], r)
	if _, ok := c.resIDs[kind]; !ok {
		c.resKinds = append(c.resKinds, kind)
	}
	c.resIDs[kind] = append(c.resIDs[kind], r)
}

// RecordUse attributes a Ref argument consuming an existing resource to
// the call currently under construction.
func (c *Context) RecordUse(kind ResKind, r *ResultArg) {
	cur := c.Current()
	cur.usedRes[kind] = append(cur.usedRes[kind], r)
}

// PopCall finishes construction of the topmost call builder and returns
// the resulting Call. It is appended to the Context's accumulated call
// list only when the stack becomes empty (nested dependency calls are not
// appended here).
func (c *Context) PopCall() *Call {
	n := len(c.stack)
	if n == 0 {
		panic("prog: context: PopCall with empty stack")
	}
	b := c.stack[n-1]
	c.stack = c.stack[:n-1]
	call := b.build()
	if len(c.stack) == 0 {
		c.calls = append(c.calls, call)
	}
	return call
}

// ToProg consumes the Context, returning the accumulated calls as a Prog.
func (c *Context) ToProg() *Prog {
	return &Prog{Target: c.target, Calls: c.calls}
}

func (c *Context) String() string {
	return fmt.Sprintf("prog.Context{target=%s/%s calls=%d res=%d}", c.target.OS, c.target.Arch, len(c.calls), c.nextResID)
}
