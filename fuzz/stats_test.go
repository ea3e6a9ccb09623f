// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzz

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestStatsSnapshotReflectsCounters(t *testing.T) {
	s := NewStats(prometheus.NewRegistry())
	s.IncExecs()
	s.IncExecs()
	s.SetCorpusSize(5)
	s.SetRelationEdges(3)
	s.IncUniqueCrashes()

	snap := s.Snapshot()
	if snap.Execs != 2 {
		t.Errorf("Execs = %d, want 2", snap.Execs)
	}
	if snap.CorpusSize != 5 {
		t.Errorf("CorpusSize = %d, want 5", snap.CorpusSize)
	}
	if snap.RelationEdges != 3 {
		t.Errorf("RelationEdges = %d, want 3", snap.RelationEdges)
	}
	if snap.UniqueCrashes != 1 {
		t.Errorf("UniqueCrashes = %d, want 1", snap.UniqueCrashes)
	}
}

func TestServeMetricsHandlerIsNonNil(t *testing.T) {
	h := ServeMetrics(prometheus.NewRegistry())
	if h == nil {
		t.Fatal("ServeMetrics returned nil handler")
	}
}

func TestLogStatsPeriodicallyStopsOnCancel(t *testing.T) {
	s := NewStats(prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		LogStatsPeriodically(ctx, s, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LogStatsPeriodically did not return after context cancellation")
	}
}
