// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzz

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SunHao-0/healer/ipc"
	"github.com/SunHao-0/healer/pkg/hlog"
	"github.com/SunHao-0/healer/prog"
)

// Worker binds one Queue to one executor connection. A Loop runs N
// Workers concurrently, each owning its own rand source, Queue, and
// in-guest Executor so no per-iteration locking is needed beyond what
// the shared Corpus/Relation/Feedback/Stats already provide.
type Worker struct {
	Queue    *Queue
	Executor ipc.Executor
	Stats    *Stats
	Crashes  *CrashSet
}

// Loop owns the shared state for a fuzzing session and drives N workers
// until ctx is canceled or a worker hits a fatal (non-crash) error.
type Loop struct {
	Target   *prog.Target
	Relation *prog.Relation
	Corpus   *prog.CorpusWrapper
	Feedback *Feedback
	Stats    *Stats
	Crashes  *CrashSet

	ExecOpts ipc.ExecOpts

	// CullInterval governs how often each worker asks its Queue to cull
	// subsumed corpus entries; zero disables periodic culling.
	CullInterval time.Duration
}

// NewWorker builds a Worker with a fresh per-worker rand source seeded
// from seed (callers should vary seed per worker to avoid correlated
// generation across workers).
func (l *Loop) NewWorker(seed int64, exec ipc.Executor) *Worker {
	rng := rand.New(rand.NewSource(seed))
	return &Worker{
		Queue:    NewQueue(l.Target, l.Relation, l.Corpus, l.Feedback, rng),
		Executor: exec,
		Stats:    l.Stats,
		Crashes:  l.Crashes,
	}
}

// Calibrate runs p repeatedly until the same coverage is observed twice
// in a row, the acceptance criterion for trusting a program's coverage
// signal before admitting it to the corpus (a single noisy run can
// easily under- or over-report coverage due to scheduling, so one
// match isn't enough, and requiring more than two rarely changes the
// outcome while doubling the cost). It returns the stable coverage set,
// or nil if maxRuns is exhausted without two consecutive matches.
func Calibrate(ctx context.Context, exec ipc.Executor, p *prog.Prog, opts ipc.ExecOpts, maxRuns int) ([]uint32, error) {
	var prev map[uint32]bool
	for i := 0; i < maxRuns; i++ {
		info, err := exec.Exec(ctx, p, opts)
		if err != nil {
			return nil, err
		}
		cur := make(map[uint32]bool)
		for _, c := range info.Calls {
			for _, pc := range c.Cover {
				cur[pc] = true
			}
		}
		if prev != nil && sameCoverage(prev, cur) {
			out := make([]uint32, 0, len(cur))
			for pc := range cur {
				out = append(out, pc)
			}
			return out, nil
		}
		prev = cur
	}
	return nil, nil
}

func sameCoverage(a, b map[uint32]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for pc := range a {
		if !b[pc] {
			return false
		}
	}
	return true
}

// Run drives numWorkers Workers against execFor (called once per worker
// to obtain its ipc.Executor) until ctx is canceled or a worker returns
// a fatal error. Crashes are recorded into l.Crashes and never treated
// as fatal to the group.
func (l *Loop) Run(ctx context.Context, numWorkers int, execFor func(workerIdx int) (ipc.Executor, error)) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < numWorkers; i++ {
		i := i
		g.Go(func() error {
			exec, err := execFor(i)
			if err != nil {
				return err
			}
			defer exec.Close()
			if err := exec.Handshake(ctx, ipc.EnvFlagSignal); err != nil {
				return err
			}
			w := l.NewWorker(int64(i)+1, exec)
			return l.runWorker(ctx, w)
		})
	}
	return g.Wait()
}

func (l *Loop) runWorker(ctx context.Context, w *Worker) error {
	lastCull := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		p := w.Queue.Next()
		info, err := w.Executor.Exec(ctx, p, l.ExecOpts)
		if err != nil {
			hlog.Logf(1, "exec error: %v", err)
			continue
		}
		l.Stats.IncExecs()

		if info.Crashed {
			title := crashTitle(info)
			if l.Crashes.Record(Crash{Title: title, Program: []byte(p.String())}) {
				l.Stats.IncUniqueCrashes()
				hlog.Errorf("new crash: %s", title)
			}
			continue
		}

		var cov []uint32
		for _, c := range info.Calls {
			cov = append(cov, c.Cover...)
		}
		// Calibration: admit p only if a second run reports the same new coverage.
		novel := l.Feedback.NewSignal(cov)
		if len(novel) == 0 {
			continue
		}
		info2, err := w.Executor.Exec(ctx, p, l.ExecOpts)
		if err != nil || info2.Crashed {
			continue
		}
		var cov2 []uint32
		for _, c := range info2.Calls {
			cov2 = append(cov2, c.Cover...)
		}
		if !sameCoverageSlice(novel, l.Feedback.NewSignal(cov2)) {
			continue
		}
		newMax := l.Feedback.MergeMax(cov)
		if newMax == 0 {
			continue
		}
		unique := l.Feedback.MergeCorpus(cov)
		if len(unique) == 0 {
			continue
		}
		id := l.Corpus.AddProg(p, uint64(len(unique)+1))
		w.Queue.Admit(id, unique)
		l.Stats.SetCorpusSize(l.Corpus.Len())
		l.Stats.SetRelationEdges(l.Relation.Num())

		if l.CullInterval > 0 && time.Since(lastCull) >= l.CullInterval {
			lastCull = time.Now()
			w.Queue.Cull()
		}

		l.Relation.TryUpdate(p, func(candidate *prog.Prog, idx int) bool {
			info2, err := w.Executor.Exec(ctx, candidate, l.ExecOpts)
			if err != nil {
				return false
			}
			var cov2 []uint32
			for _, c := range info2.Calls {
				cov2 = append(cov2, c.Cover...)
			}
			return !sameCoverageSlice(cov, cov2)
		})
	}
}

func sameCoverageSlice(a, b []uint32) bool {
	am := make(map[uint32]bool, len(a))
	for _, pc := range a {
		am[pc] = true
	}
	bm := make(map[uint32]bool, len(b))
	for _, pc := range b {
		bm[pc] = true
	}
	return sameCoverage(am, bm)
}

func crashTitle(info *ipc.ProgInfo) string {
	if len(info.Output) > 0 {
		return string(info.Output)
	}
	return "unknown crash"
}
