// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMinimizeNeverGrowsProgram(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)
	rng := rand.New(rand.NewSource(12))

	p := GenProg(rng, target, rel)
	origLen := len(p.Calls)

	// accept-everything predicate: minimization should shrink to (close
	// to) nothing since nothing is required to "reproduce".
	min, _ := Minimize(p, -1, func(candidate *Prog, callIndex int) bool { return true })
	require.NoError(t, min.Validate())
	require.LessOrEqual(t, len(min.Calls), origLen)
}

func TestMinimizePreservesRequiredCall(t *testing.T) {
	target := buildTestTarget()
	ctx := NewContext(target, NewRelation(target))
	rng := rand.New(rand.NewSource(13))

	open := target.SyscallMap["open"]
	write := target.SyscallMap["write"]
	closeC := target.SyscallMap["close"]
	GenCall(rng, ctx, open)
	GenCall(rng, ctx, write)
	GenCall(rng, ctx, closeC)
	p := ctx.ToProg()
	require.NoError(t, p.Validate())

	closeIdx := 2
	min, newIdx := Minimize(p, closeIdx, func(candidate *Prog, callIndex int) bool {
		// only accept removals that keep the close call present.
		return callIndex >= 0
	})
	require.GreaterOrEqual(t, newIdx, 0)
	require.Equal(t, "close", min.Calls[newIdx].Meta.Name)
}

func TestRemoveUnrelatedCallsKeepsDependency(t *testing.T) {
	target := buildTestTarget()
	ctx := NewContext(target, NewRelation(target))
	rng := rand.New(rand.NewSource(14))

	open := target.SyscallMap["open"]
	closeC := target.SyscallMap["close"]
	GenCall(rng, ctx, open)
	GenCall(rng, ctx, closeC)
	p := ctx.ToProg()

	openRet := p.Calls[0].Ret
	fdArg := p.Calls[1].Args[0].(*ResultArg)
	fdArg.Kind = ResRef
	fdArg.Res = openRet
	openRet.AddUse(fdArg)

	related := relatedCalls(p, 1)
	require.True(t, related[0], "open must be related to close since close consumes its fd")
	require.True(t, related[1])
}
