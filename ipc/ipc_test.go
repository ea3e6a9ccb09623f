// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ipc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SunHao-0/healer/prog"
)

// fakeExecutor is a minimal Executor used only to confirm the interface
// is implementable with the expected method set and that ExecOpts/CallInfo
// round-trip through it unmodified.
type fakeExecutor struct {
	handshakeFlags EnvFlags
	lastOpts       ExecOpts
}

func (f *fakeExecutor) Handshake(ctx context.Context, flags EnvFlags) error {
	f.handshakeFlags = flags
	return nil
}

func (f *fakeExecutor) Exec(ctx context.Context, p *prog.Prog, opts ExecOpts) (*ProgInfo, error) {
	f.lastOpts = opts
	if p == nil {
		return nil, errors.New("nil program")
	}
	return &ProgInfo{Calls: make([]CallInfo, len(p.Calls))}, nil
}

func (f *fakeExecutor) Close() error { return nil }

func TestExecutorInterfaceContract(t *testing.T) {
	var _ Executor = (*fakeExecutor)(nil)

	f := &fakeExecutor{}
	if err := f.Handshake(context.Background(), EnvFlagSignal|EnvFlagCollectComps); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if f.handshakeFlags != EnvFlagSignal|EnvFlagCollectComps {
		t.Fatalf("handshake flags = %v, want signal|comps", f.handshakeFlags)
	}

	opts := ExecOpts{Flags: ExecFlagCollectCover, NumRepeat: 2, CallTimeout: time.Second}
	info, err := f.Exec(context.Background(), &prog.Prog{}, opts)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if f.lastOpts != opts {
		t.Fatalf("opts not threaded through: got %+v, want %+v", f.lastOpts, opts)
	}
	if info.Crashed {
		t.Fatal("empty program result should not report Crashed")
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrHandshake, ErrExecTimeout) {
		t.Fatal("ErrHandshake and ErrExecTimeout must be distinct sentinels")
	}
}
