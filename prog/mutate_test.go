// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMutateProducesValidProgram(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)
	rng := rand.New(rand.NewSource(9))

	p := GenProg(rng, target, rel)
	require.NoError(t, p.Validate())

	for i := 0; i < 20; i++ {
		m := Mutate(rng, target, rel, p, nil)
		require.NoError(t, m.Validate())
	}
}

func TestMutateDoesNotModifyOriginal(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)
	rng := rand.New(rand.NewSource(10))

	p := GenProg(rng, target, rel)
	before := Serialize(target, p)

	for i := 0; i < 10; i++ {
		Mutate(rng, target, rel, p, nil)
	}

	after := Serialize(target, p)
	require.Equal(t, before, after, "Mutate must not mutate its input in place")
}

func TestMutateWithSpliceDonor(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)
	rng := rand.New(rand.NewSource(11))

	p1 := GenProg(rng, target, rel)
	p2 := GenProg(rng, target, rel)

	for i := 0; i < 20; i++ {
		m := Mutate(rng, target, rel, p1, p2)
		require.NoError(t, m.Validate())
	}
}
