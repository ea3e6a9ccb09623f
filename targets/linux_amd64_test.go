// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package targets

import (
	"math/rand"
	"testing"

	"github.com/SunHao-0/healer/prog"
)

func TestLinuxAmd64TargetRegistersAndGenerates(t *testing.T) {
	target, err := prog.GetTarget("linux", "amd64")
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if len(target.Syscalls) == 0 {
		t.Fatal("target has no syscalls")
	}

	rel := prog.NewRelation(target)
	if rel.Num() == 0 {
		t.Fatal("expected at least one static influence edge (e.g. open -> write)")
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		p := prog.GenProg(rng, target, rel)
		if err := p.Validate(); err != nil {
			t.Fatalf("generated program %d failed validation: %v\n%s", i, err, p)
		}
	}
}

func TestLinuxAmd64SerializeForExecRoundTrip(t *testing.T) {
	target, err := prog.GetTarget("linux", "amd64")
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	rel := prog.NewRelation(target)
	rng := rand.New(rand.NewSource(2))
	p := prog.GenProg(rng, target, rel)

	buf := make([]byte, prog.ExecBufferSize)
	n, err := p.SerializeForExec(buf)
	if err != nil {
		t.Fatalf("SerializeForExec: %v", err)
	}
	if n == 0 {
		t.Fatal("SerializeForExec wrote 0 bytes")
	}
}
