// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package vm

import (
	"context"
	"testing"

	"github.com/SunHao-0/healer/ipc"
	"github.com/SunHao-0/healer/prog"
)

type nopExecutor struct{ closed bool }

func (e *nopExecutor) Handshake(ctx context.Context, flags ipc.EnvFlags) error { return nil }
func (e *nopExecutor) Exec(ctx context.Context, p *prog.Prog, opts ipc.ExecOpts) (*ipc.ProgInfo, error) {
	return &ipc.ProgInfo{}, nil
}
func (e *nopExecutor) Close() error { e.closed = true; return nil }

func TestDummyPoolBootReturnsDistinctInstances(t *testing.T) {
	var made []*nopExecutor
	pool := NewDummyPool(3, func() ipc.Executor {
		e := &nopExecutor{}
		made = append(made, e)
		return e
	})
	if pool.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", pool.Size())
	}

	inst1, err := pool.Boot(context.Background())
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	inst2, err := pool.Boot(context.Background())
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if inst1.Executor() == inst2.Executor() {
		t.Fatal("successive Boot calls should return distinct executors")
	}
	if len(made) != 2 {
		t.Fatalf("executor factory called %d times, want 2", len(made))
	}
}

func TestDummyPoolBootRespectsCanceledContext(t *testing.T) {
	pool := NewDummyPool(1, func() ipc.Executor { return &nopExecutor{} })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Boot(ctx); err == nil {
		t.Fatal("Boot on a canceled context should fail")
	}
}

func TestInstanceShutdownIsIdempotent(t *testing.T) {
	e := &nopExecutor{}
	pool := NewDummyPool(1, func() ipc.Executor { return e })
	inst, err := pool.Boot(context.Background())
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := inst.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := inst.Shutdown(); err != nil {
		t.Fatalf("second Shutdown should be a no-op, got: %v", err)
	}
	if !e.closed {
		t.Fatal("Shutdown should close the underlying executor")
	}
}
