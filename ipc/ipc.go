// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package ipc defines the wire-level contract between the fuzzing
// engine and the in-guest executor: execution options/flags, the
// request (serialized program) and reply (per-call results plus
// coverage) shapes, and the Executor interface the fuzz package drives.
// No transport (process spawn, pipe framing, SSH) is implemented here,
// matching the orchestration Non-goal; Executor is a pure collaborator
// interface a real transport implementation would satisfy.
package ipc

import (
	"context"
	"errors"
	"time"

	"github.com/SunHao-0/healer/prog"
)

// EnvFlags configures the executor process for the lifetime of a batch
// of executions (set once at handshake time), mirroring syzkaller's
// ipc.EnvFlags.
type EnvFlags uint64

const (
	// EnvFlagSignal requests per-basic-block coverage signal in CallInfo.
	EnvFlagSignal EnvFlags = 1 << iota
	// EnvFlagSandboxNone runs calls unsandboxed (setuid/namespaces skipped).
	EnvFlagSandboxNone
	// EnvFlagSandboxSetuid drops privileges before executing calls.
	EnvFlagSandboxSetuid
	// EnvFlagCollectComps requests comparison-operand tracing, consumed by
	// prog.MutateWithHints.
	EnvFlagCollectComps
)

// ExecFlags configures one execution request.
type ExecFlags uint64

const (
	// ExecFlagCollectCover requests raw coverage PCs in CallInfo.Cover.
	ExecFlagCollectCover ExecFlags = 1 << iota
	// ExecFlagDedupCover deduplicates Cover entries server-side (in the
	// executor) before returning them.
	ExecFlagDedupCover
	// ExecFlagCollectSignal requests the hashed/folded signal set used for
	// corpus admission, distinct from raw Cover.
	ExecFlagCollectSignal
)

// ExecOpts bundles the per-request knobs passed to Executor.Exec.
type ExecOpts struct {
	Flags       ExecFlags
	NumRepeat   int
	CallTimeout time.Duration
}

// CallInfo is one call's result: its errno (0 = success), the raw
// coverage PCs it touched (if requested), and the folded signal set used
// for corpus/feedback admission.
type CallInfo struct {
	Errno  int32
	Cover  []uint32
	Signal []uint32
	Comps  map[uint64][]uint64 // observed comparison operands, keyed by the compared value
}

// ProgInfo is Executor.Exec's reply: one CallInfo per call in the
// request, in order, plus whether the whole batch crashed the guest.
type ProgInfo struct {
	Calls   []CallInfo
	Crashed bool
	Output  []byte
}

var (
	// ErrHandshake is returned when the executor's handshake reply does
	// not match the expected protocol version/magic.
	ErrHandshake = errors.New("ipc: executor handshake failed")
	// ErrExecTimeout is returned when an execution request exceeds its
	// deadline without the executor replying.
	ErrExecTimeout = errors.New("ipc: execution timed out")
)

// Executor is the collaborator interface the fuzzing loop drives to run
// a program in the guest and collect its coverage/result. A real
// implementation pipes prog.SerializeForExec's output to an in-guest
// companion process over some transport (SSH+pipe, vsock, ...); that
// transport is explicitly out of scope here.
type Executor interface {
	// Handshake performs the one-time environment setup for this
	// executor instance.
	Handshake(ctx context.Context, flags EnvFlags) error
	// Exec runs p and returns its per-call results.
	Exec(ctx context.Context, p *prog.Prog, opts ExecOpts) (*ProgInfo, error)
	// Close releases any resources held by the executor (the underlying
	// process/connection).
	Close() error
}
