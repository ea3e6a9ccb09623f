// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenProgValidates(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		p := GenProg(rng, target, rel)
		require.NoError(t, p.Validate())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)
	rng := rand.New(rand.NewSource(2))
	p := GenProg(rng, target, rel)
	require.NoError(t, p.Validate())

	clone := p.Clone()
	require.NoError(t, clone.Validate())
	require.Equal(t, len(p.Calls), len(clone.Calls))

	if len(clone.Calls) > 0 {
		clone.RemoveCall(0)
		require.NotEqual(t, len(p.Calls), len(clone.Calls), "removing from the clone must not affect the original")
	}
}

func TestRemoveCallNullsDanglingRefs(t *testing.T) {
	target := buildTestTarget()
	ctx := NewContext(target, NewRelation(target))
	rng := rand.New(rand.NewSource(3))

	open := target.SyscallMap["open"]
	write := target.SyscallMap["write"]

	GenCall(rng, ctx, open)
	GenCall(rng, ctx, write)
	p := ctx.ToProg()
	require.NoError(t, p.Validate())

	// force the write call's fd argument to reference open's result so
	// RemoveCall has something to null out.
	openRet := p.Calls[0].Ret
	if fdArg, ok := p.Calls[1].Args[0].(*ResultArg); ok && fdArg.Kind != ResRef {
		fdArg.Kind = ResRef
		fdArg.Res = openRet
		openRet.AddUse(fdArg)
	}

	p.RemoveCall(0)
	require.NoError(t, p.Validate())
	fdArg := p.Calls[0].Args[0].(*ResultArg)
	require.Equal(t, ResNull, fdArg.Kind)
}
