// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzz

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SunHao-0/healer/pkg/hlog"
)

// Stats holds the process-wide counters named in the external-interfaces
// surface: total executions, corpus size, relation edge count, and
// unique crash count. Plain counters are atomic (cheap to bump on every
// worker's hot path); the same values are mirrored into Prometheus
// gauges on each Snapshot so /metrics stays close to real-time without
// updating a gauge per execution.
type Stats struct {
	execs         atomic.Uint64
	corpusSize    atomic.Uint64
	relationEdges atomic.Uint64
	uniqueCrashes atomic.Uint64

	execsGauge    prometheus.Gauge
	corpusGauge   prometheus.Gauge
	relationGauge prometheus.Gauge
	crashesGauge  prometheus.Gauge
}

// NewStats creates a Stats and registers its gauges with reg.
func NewStats(reg *prometheus.Registry) *Stats {
	s := &Stats{
		execsGauge:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "healer_execs_total", Help: "total programs executed"}),
		corpusGauge:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "healer_corpus_size", Help: "current corpus size"}),
		relationGauge: prometheus.NewGauge(prometheus.GaugeOpts{Name: "healer_relation_edges", Help: "known influence edges"}),
		crashesGauge:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "healer_unique_crashes", Help: "unique crash titles seen"}),
	}
	reg.MustRegister(s.execsGauge, s.corpusGauge, s.relationGauge, s.crashesGauge)
	return s
}

func (s *Stats) IncExecs()                     { s.execs.Add(1) }
func (s *Stats) SetCorpusSize(n int)            { s.corpusSize.Store(uint64(n)) }
func (s *Stats) SetRelationEdges(n int)         { s.relationEdges.Store(uint64(n)) }
func (s *Stats) IncUniqueCrashes()              { s.uniqueCrashes.Add(1) }

// Snapshot is a point-in-time read of every counter, also pushed into
// the registered Prometheus gauges.
type Snapshot struct {
	Execs         uint64
	CorpusSize    uint64
	RelationEdges uint64
	UniqueCrashes uint64
}

func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Execs:         s.execs.Load(),
		CorpusSize:    s.corpusSize.Load(),
		RelationEdges: s.relationEdges.Load(),
		UniqueCrashes: s.uniqueCrashes.Load(),
	}
	s.execsGauge.Set(float64(snap.Execs))
	s.corpusGauge.Set(float64(snap.CorpusSize))
	s.relationGauge.Set(float64(snap.RelationEdges))
	s.crashesGauge.Set(float64(snap.UniqueCrashes))
	return snap
}

// ServeMetrics wraps the Prometheus HTTP handler with request logging
// and panic recovery middleware, the idiomatic gorilla/handlers
// wrapping used for any HTTP surface this process exposes.
func ServeMetrics(reg *prometheus.Registry) http.Handler {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(hlog.Writer(), h))
}

// LogStatsPeriodically logs a compact stats line through pkg/hlog every
// interval until ctx is canceled, independent of whatever scrapes
// /metrics - useful when running without a Prometheus server attached.
func LogStatsPeriodically(ctx context.Context, s *Stats, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			snap := s.Snapshot()
			hlog.Logf(1, "execs=%d corpus=%d relations=%d crashes=%d",
				snap.Execs, snap.CorpusSize, snap.RelationEdges, snap.UniqueCrashes)
		}
	}
}
