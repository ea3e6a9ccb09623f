// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SunHao-0/healer/ipc"
	"github.com/SunHao-0/healer/prog"
	_ "github.com/SunHao-0/healer/targets"
)

// scriptedExecutor replays a fixed sequence of ProgInfo replies, cycling
// once exhausted, to drive Calibrate/Loop.Run deterministically.
type scriptedExecutor struct {
	mu      sync.Mutex
	replies []*ipc.ProgInfo
	i       int
}

func (e *scriptedExecutor) Handshake(ctx context.Context, flags ipc.EnvFlags) error { return nil }

func (e *scriptedExecutor) Exec(ctx context.Context, p *prog.Prog, opts ipc.ExecOpts) (*ipc.ProgInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.replies[e.i%len(e.replies)]
	e.i++
	return r, nil
}

func (e *scriptedExecutor) Close() error { return nil }

func TestCalibrateStopsAfterTwoMatchingRuns(t *testing.T) {
	exec := &scriptedExecutor{replies: []*ipc.ProgInfo{
		{Calls: []ipc.CallInfo{{Cover: []uint32{1, 2, 3}}}},
		{Calls: []ipc.CallInfo{{Cover: []uint32{1, 2}}}}, // differs, forces another run
		{Calls: []ipc.CallInfo{{Cover: []uint32{5, 6}}}},
		{Calls: []ipc.CallInfo{{Cover: []uint32{5, 6}}}}, // matches previous, stable
	}}

	cov, err := Calibrate(context.Background(), exec, &prog.Prog{}, ipc.ExecOpts{}, 10)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if len(cov) != 2 {
		t.Fatalf("stable coverage = %v, want 2 entries ({5,6})", cov)
	}
}

func TestCalibrateGivesUpAfterMaxRuns(t *testing.T) {
	exec := &scriptedExecutor{replies: []*ipc.ProgInfo{
		{Calls: []ipc.CallInfo{{Cover: []uint32{1}}}},
		{Calls: []ipc.CallInfo{{Cover: []uint32{2}}}},
	}}
	cov, err := Calibrate(context.Background(), exec, &prog.Prog{}, ipc.ExecOpts{}, 3)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if cov != nil {
		t.Fatalf("expected nil coverage when no two consecutive runs match, got %v", cov)
	}
}

func TestLoopRunStopsOnContextCancel(t *testing.T) {
	target, err := prog.GetTarget("linux", "amd64")
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	rel := prog.NewRelation(target)
	corpus := prog.NewCorpusWrapper()

	loop := &Loop{
		Target:   target,
		Relation: rel,
		Corpus:   corpus,
		Feedback: NewFeedback(),
		Stats:    NewStats(prometheus.NewRegistry()),
		Crashes:  NewCrashSet(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = loop.Run(ctx, 2, func(workerIdx int) (ipc.Executor, error) {
		return &scriptedExecutor{replies: []*ipc.ProgInfo{{Calls: []ipc.CallInfo{{Cover: []uint32{uint32(workerIdx)}}}}}}, nil
	})
	if err != nil {
		t.Fatalf("Run returned error after context timeout: %v", err)
	}
	if loop.Stats.Snapshot().Execs == 0 {
		t.Fatal("expected at least one execution before the context timed out")
	}
}
