// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package vm defines the collaborator interface a fuzzing loop uses to
// obtain guest instances to execute programs in, and a dummy in-memory
// implementation standing in for the real SSH/QEMU orchestration, which
// is out of scope here (see the Non-goals on VM orchestration).
package vm

import (
	"context"
	"fmt"
	"sync"

	"github.com/SunHao-0/healer/ipc"
)

// Instance is a single booted guest, reachable via its Executor.
type Instance interface {
	Executor() ipc.Executor
	// Shutdown tears down the instance. Safe to call more than once.
	Shutdown() error
}

// Pool hands out and reclaims Instances for fuzzing workers. A real
// implementation boots QEMU VMs over SSH; Pool only needs to support
// acquiring one instance per worker and returning it (or a replacement,
// after a guest crash) to the pool.
type Pool interface {
	Boot(ctx context.Context) (Instance, error)
	Size() int
}

// dummyPool is an in-memory Pool for tests and for exercising a fuzzing
// Loop without real VM infrastructure: every Boot call returns a fresh
// dummyInstance wrapping a caller-supplied ipc.Executor factory.
type dummyPool struct {
	mu      sync.Mutex
	size    int
	newExec func() ipc.Executor
}

// NewDummyPool creates a Pool of the given size backed by executors
// produced by newExec, one per booted Instance.
func NewDummyPool(size int, newExec func() ipc.Executor) Pool {
	return &dummyPool{size: size, newExec: newExec}
}

func (p *dummyPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

func (p *dummyPool) Boot(ctx context.Context) (Instance, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if p.newExec == nil {
		return nil, fmt.Errorf("vm: dummy pool has no executor factory")
	}
	return &dummyInstance{exec: p.newExec()}, nil
}

type dummyInstance struct {
	mu   sync.Mutex
	down bool
	exec ipc.Executor
}

func (i *dummyInstance) Executor() ipc.Executor { return i.exec }

func (i *dummyInstance) Shutdown() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.down {
		return nil
	}
	i.down = true
	return i.exec.Close()
}
