// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import "errors"

// ErrExecBufferTooSmall is returned by Prog.SerializeForExec when the
// program's encoding does not fit in the supplied buffer.
var ErrExecBufferTooSmall = errors.New("prog: exec buffer too small")

// ErrBadResourceRef is returned when a program references a resource
// that does not exist, e.g. a Ref whose Res has already been removed
// from the program without going through RemoveCall's rewrite-to-Null
// step.
var ErrBadResourceRef = errors.New("prog: dangling resource reference")

// ErrUnknownSyscall is returned when parsing/deserializing a program
// that names a syscall absent from the target's table.
var ErrUnknownSyscall = errors.New("prog: unknown syscall")
