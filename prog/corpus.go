// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"

	"github.com/ulikunitz/xz"
)

// CorpusId identifies one program within a Corpus, stable across culling
// passes (culling preserves surviving ids and never reuses a retired
// one, since next_id only ever advances).
type CorpusId uint64

// ProgInfo pairs a corpus program with its priority, the weight used for
// both culling decisions (a priority of 0 means "drop me") and weighted
// selection (higher priority programs are mutated more often).
type ProgInfo struct {
	Id   CorpusId
	Prog *Prog
	Prio uint64
}

// Corpus is the unsynchronized core of the corpus: an append-only list of
// ProgInfo plus a running prefix-sum of priorities supporting O(log n)
// weighted selection. Callers needing concurrent access should go through
// CorpusWrapper rather than using Corpus directly.
type Corpus struct {
	progs     []ProgInfo
	idToIndex map[CorpusId]int
	nextID    CorpusId
	prios     []uint64 // prefix sums, prios[i] = sum of progs[0..=i].Prio
	sumPrios  uint64
}

// NewCorpus creates an empty Corpus.
func NewCorpus() *Corpus {
	return &Corpus{idToIndex: make(map[CorpusId]int)}
}

func (c *Corpus) Len() int      { return len(c.progs) }
func (c *Corpus) IsEmpty() bool { return len(c.progs) == 0 }

// AddProg appends prog with the given priority (must be non-zero; a
// zero-priority program cannot ever be selected and should simply not be
// added) and returns its newly minted CorpusId.
func (c *Corpus) AddProg(p *Prog, prio uint64) CorpusId {
	if prio == 0 {
		panic("prog: corpus: AddProg called with zero priority")
	}
	id := c.nextID
	c.nextID++
	c.addProgWithID(id, p, prio)
	return id
}

func (c *Corpus) addProgWithID(id CorpusId, p *Prog, prio uint64) {
	c.sumPrios += prio
	c.prios = append(c.prios, c.sumPrios)
	idx := len(c.progs)
	c.progs = append(c.progs, ProgInfo{Id: id, Prog: p, Prio: prio})
	c.idToIndex[id] = idx
}

// Get returns the program stored under id, or nil if it was culled.
func (c *Corpus) Get(id CorpusId) *Prog {
	idx, ok := c.idToIndex[id]
	if !ok {
		return nil
	}
	return c.progs[idx].Prog
}

// SelectOne draws one program proportional to its priority. Returns nil
// if the corpus is empty.
func (c *Corpus) SelectOne(rng *rand.Rand) *Prog {
	if c.IsEmpty() {
		return nil
	}
	idx := chooseWeighted(rng, c.prios)
	return c.progs[idx].Prog
}

// chooseWeighted draws an index from a prefix-sum table, where
// prefixSums[i] is the cumulative weight of entries [0, i].
func chooseWeighted(rng *rand.Rand, prefixSums []uint64) int {
	total := prefixSums[len(prefixSums)-1]
	target := uint64(rng.Int63n(int64(total))) + 1
	return sort.Search(len(prefixSums), func(i int) bool { return prefixSums[i] >= target })
}

// Culling rebuilds the corpus by calling update on every entry (in
// original order) and keeping only those whose priority update leaves
// non-zero; update may also replace an entry's Prog (e.g. after
// minimization shrinks it). The next-id counter is preserved across the
// rebuild so ids already handed out (e.g. referenced in a saved log)
// never get reused. Returns the number of entries retained.
func (c *Corpus) Culling(update func(p *ProgInfo)) int {
	old := c.progs
	nc := &Corpus{
		idToIndex: make(map[CorpusId]int, len(old)),
		nextID:    c.nextID,
	}
	n := 0
	for _, p := range old {
		update(&p)
		if p.Prio != 0 {
			n++
			nc.addProgWithID(p.Id, p.Prog, p.Prio)
		}
	}
	*c = *nc
	return n
}

// CorpusWrapper adds RWMutex-guarded concurrent access on top of Corpus:
// readers (SelectOne, Len) take the read lock; AddProg/Culling take the
// write lock. This is the type fuzzing workers and the stats/snapshot
// machinery actually hold a reference to.
type CorpusWrapper struct {
	mu    sync.RWMutex
	inner *Corpus
}

// NewCorpusWrapper creates an empty, lock-protected Corpus.
func NewCorpusWrapper() *CorpusWrapper {
	return &CorpusWrapper{inner: NewCorpus()}
}

func (w *CorpusWrapper) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.inner.Len()
}

func (w *CorpusWrapper) IsEmpty() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.inner.IsEmpty()
}

// Get returns a clone of the program stored under id, or nil if it was
// never added or has since been culled.
func (w *CorpusWrapper) Get(id CorpusId) *Prog {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p := w.inner.Get(id)
	if p == nil {
		return nil
	}
	return p.Clone()
}

func (w *CorpusWrapper) AddProg(p *Prog, prio uint64) CorpusId {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inner.AddProg(p, prio)
}

func (w *CorpusWrapper) SelectOne(rng *rand.Rand) *Prog {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p := w.inner.SelectOne(rng)
	if p == nil {
		return nil
	}
	return p.Clone()
}

func (w *CorpusWrapper) Culling(update func(p *ProgInfo)) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inner.Culling(update)
}

// corpusSnapshot is the gob-encoded, xz-compressed shape persisted by
// SaveSnapshot/LoadSnapshot. Programs are saved as Serialize blobs (a
// gob encoding in which each Arg's Type is replaced by its TypeId) rather
// than by gob-encoding the Arg tree directly, since the Type interface
// values are Target-owned and cannot be round-tripped by gob (see
// serialize.go).
type corpusSnapshot struct {
	NextID CorpusId
	Progs  []snapshotEntry
}

type snapshotEntry struct {
	Id   CorpusId
	Prio uint64
	Text []byte
}

// SaveSnapshot writes the corpus, xz-compressed, to w. Intended for the
// periodic "persisted state" checkpoint named in the external-interfaces
// surface, so a fuzzing session can resume its corpus after a restart.
func (w *CorpusWrapper) SaveSnapshot(out io.Writer, target *Target) error {
	w.mu.RLock()
	snap := corpusSnapshot{NextID: w.inner.nextID}
	for _, p := range w.inner.progs {
		snap.Progs = append(snap.Progs, snapshotEntry{Id: p.Id, Prio: p.Prio, Text: Serialize(target, p.Prog)})
	}
	w.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("prog: corpus: encode snapshot: %w", err)
	}
	xw, err := xz.NewWriter(out)
	if err != nil {
		return fmt.Errorf("prog: corpus: create xz writer: %w", err)
	}
	if _, err := xw.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("prog: corpus: write xz stream: %w", err)
	}
	return xw.Close()
}

// LoadSnapshot replaces the corpus's contents with the snapshot read
// from r, decoding each program's Serialize blob against target.
func (w *CorpusWrapper) LoadSnapshot(r io.Reader, target *Target) error {
	xr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("prog: corpus: create xz reader: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, xr); err != nil {
		return fmt.Errorf("prog: corpus: read xz stream: %w", err)
	}
	var snap corpusSnapshot
	if err := gob.NewDecoder(&buf).Decode(&snap); err != nil {
		return fmt.Errorf("prog: corpus: decode snapshot: %w", err)
	}

	nc := &Corpus{idToIndex: make(map[CorpusId]int, len(snap.Progs)), nextID: snap.NextID}
	for _, e := range snap.Progs {
		p, err := Deserialize(target, e.Text)
		if err != nil {
			return fmt.Errorf("prog: corpus: parse snapshot entry %d: %w", e.Id, err)
		}
		nc.addProgWithID(e.Id, p, e.Prio)
	}

	w.mu.Lock()
	w.inner = nc
	w.mu.Unlock()
	return nil
}
