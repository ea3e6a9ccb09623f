// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorAlloc(t *testing.T) {
	a := NewAllocator(1024)

	addr := a.Alloc(127, 1)
	require.Equal(t, uint64(0), addr)
	assert.Equal(t, []freeBlock{{128, 1024 - 128}}, a.freeBlocks)

	addr = a.Alloc(32, 128)
	require.Equal(t, uint64(128), addr)
	assert.Equal(t, []freeBlock{{256, 1024 - 256}}, a.freeBlocks)

	addr = a.Alloc(1024-256, 128)
	require.Equal(t, uint64(256), addr)
	assert.Equal(t, []freeBlock{{0, 1024}}, a.freeBlocks)
}

func TestAllocatorNoteAlloc(t *testing.T) {
	a := NewAllocator(1024)

	assert.False(t, a.NoteAlloc(1024, 128))

	assert.True(t, a.NoteAlloc(512, 128))
	assert.Equal(t, []freeBlock{{0, 512}, {640, 384}}, a.freeBlocks)

	assert.False(t, a.NoteAlloc(512, 128))
	assert.False(t, a.NoteAlloc(1024, 128))
	assert.True(t, a.NoteAlloc(0, 128))
}

func TestVmaAllocatorTracksUsedPages(t *testing.T) {
	v := NewVmaAllocator(64)
	v.NoteAlloc(4, 3)
	assert.True(t, v.usedSet[4])
	assert.True(t, v.usedSet[5])
	assert.True(t, v.usedSet[6])
	assert.Len(t, v.used, 3)

	v.NoteAlloc(5, 1)
	assert.Len(t, v.used, 3, "re-noting an already-used page must not duplicate it")
}
