// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRelationFindsStaticEdge(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)

	open := target.SyscallMap["open"]
	write := target.SyscallMap["write"]
	closeC := target.SyscallMap["close"]

	require.True(t, rel.Influences(open.ID, write.ID), "open produces fd, write consumes fd")
	require.True(t, rel.Influences(open.ID, closeC.ID), "open produces fd, close consumes fd")
	require.False(t, rel.Influences(write.ID, open.ID))
	require.Contains(t, rel.InfluenceOf(open.ID), write.ID)
	require.Contains(t, rel.InfluenceByOf(write.ID), open.ID)
}

func TestTryUpdateLearnsNewEdge(t *testing.T) {
	target := buildTestTarget()
	rel := &Relation{
		influence:   map[SyscallId][]SyscallId{0: nil, 1: nil, 2: nil},
		influenceBy: map[SyscallId][]SyscallId{0: nil, 1: nil, 2: nil},
	}

	open := target.SyscallMap["open"]
	closeC := target.SyscallMap["close"]
	p := &Prog{Target: target, Calls: []*Call{
		{Meta: open, Ret: &ResultArg{Kind: ResOwn, Id: 0}},
		{Meta: closeC},
	}}

	n := rel.TryUpdate(p, func(newProg *Prog, index int) bool {
		// pretend removing `open` changed `close`'s observed behavior.
		return true
	})
	require.Equal(t, 1, n)
	require.True(t, rel.Influences(open.ID, closeC.ID))
}
