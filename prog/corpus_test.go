// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCorpusWeightedSelectionConverges(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)
	rng := rand.New(rand.NewSource(4))

	c := NewCorpusWrapper()
	progs := make([]*Prog, 3)
	for i := range progs {
		progs[i] = GenProg(rng, target, rel)
		c.AddProg(progs[i], uint64(1+i*10)) // 1, 11, 21: last should dominate selection
	}
	require.Equal(t, 3, c.Len())

	keys := make([][]byte, 3)
	for j, orig := range progs {
		keys[j] = Serialize(target, orig)
	}
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		p := c.SelectOne(rng)
		require.NotNil(t, p)
		for j := range progs {
			if bytes.Equal(Serialize(target, p), keys[j]) {
				counts[j]++
			}
		}
	}
	require.Greater(t, counts[2], counts[0], "higher-priority program should be selected more often")
}

func TestCorpusCullingPreservesIdsAndDropsZeroPriority(t *testing.T) {
	target := buildTestTarget()
	c := NewCorpus()
	p := &Prog{Target: target}
	id0 := c.AddProg(p, 5)
	id1 := c.AddProg(p, 5)

	n := c.Culling(func(pi *ProgInfo) {
		if pi.Id == id0 {
			pi.Prio = 0
		}
	})
	require.Equal(t, 1, n)
	require.Nil(t, c.Get(id0))
	require.NotNil(t, c.Get(id1))

	id2 := c.AddProg(p, 1)
	require.Greater(t, uint64(id2), uint64(id1), "next id must not be reused after culling")
}

func TestCorpusSnapshotRoundTrip(t *testing.T) {
	target := buildTestTarget()
	rel := NewRelation(target)
	rng := rand.New(rand.NewSource(5))

	c := NewCorpusWrapper()
	for i := 0; i < 5; i++ {
		c.AddProg(GenProg(rng, target, rel), uint64(i+1))
	}

	var buf bytes.Buffer
	require.NoError(t, c.SaveSnapshot(&buf, target))

	loaded := NewCorpusWrapper()
	require.NoError(t, loaded.LoadSnapshot(&buf, target))
	require.Equal(t, c.Len(), loaded.Len())
}
