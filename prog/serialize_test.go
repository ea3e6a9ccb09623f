// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)
	rng := rand.New(rand.NewSource(6))

	for i := 0; i < 10; i++ {
		p := GenProg(rng, target, rel)
		require.NoError(t, p.Validate())

		blob := Serialize(target, p)
		got, err := Deserialize(target, blob)
		require.NoError(t, err)
		require.NoError(t, got.Validate())

		require.Equal(t, len(p.Calls), len(got.Calls))
		for ci := range p.Calls {
			require.Equal(t, p.Calls[ci].Meta.Name, got.Calls[ci].Meta.Name)
		}
	}
}

func TestSerializeForExecFitsAndRejectsTooSmall(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)
	rng := rand.New(rand.NewSource(7))
	p := GenProg(rng, target, rel)

	buf := make([]byte, ExecBufferSize)
	n, err := p.SerializeForExec(buf)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	tiny := make([]byte, 4)
	_, err = p.SerializeForExec(tiny)
	require.ErrorIs(t, err, ErrExecBufferTooSmall)
}

func TestDeserializeUnknownSyscall(t *testing.T) {
	target := buildTestTarget()
	other := buildTestTarget()
	// Rename a syscall in `other` so target can't resolve it.
	other.Syscalls[0].Name = "totally_unknown_syscall"
	other.SyscallMap = map[string]*Syscall{"totally_unknown_syscall": other.Syscalls[0]}

	p := &Prog{Target: other, Calls: []*Call{{Meta: other.Syscalls[0]}}}
	blob := Serialize(other, p)

	_, err := Deserialize(target, blob)
	require.Error(t, err)
}

func TestDeserializePreservesCallCount(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)
	rng := rand.New(rand.NewSource(8))
	p := GenProg(rng, target, rel)

	blob := Serialize(target, p)
	got, err := Deserialize(target, blob)
	require.NoError(t, err)

	diff := cmp.Diff(len(p.Calls), len(got.Calls))
	require.Empty(t, diff)
}
