// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hlog

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogfRespectsVerbosity(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core).Sugar())
	defer SetLogger(zap.NewNop().Sugar())

	SetVerbosity(1)
	Logf(2, "dropped message %d", 1)
	if logs.Len() != 0 {
		t.Fatalf("Logf at level 2 with verbosity 1 should be dropped, got %d entries", logs.Len())
	}

	Logf(1, "kept message")
	if logs.Len() != 1 {
		t.Fatalf("Logf at level 1 with verbosity 1 should be logged, got %d entries", logs.Len())
	}
}

func TestErrorfAlwaysLogsRegardlessOfVerbosity(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core).Sugar())
	defer SetLogger(zap.NewNop().Sugar())

	SetVerbosity(0)
	Errorf("always logged")
	if logs.Len() != 1 {
		t.Fatalf("Errorf should log regardless of verbosity, got %d entries", logs.Len())
	}
}

func TestWriterWritesThroughToLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core).Sugar())
	defer SetLogger(zap.NewNop().Sugar())

	w := Writer()
	n, err := w.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len("hello") {
		t.Fatalf("Write returned %d, want %d", n, len("hello"))
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry from Write, got %d", logs.Len())
	}
}
