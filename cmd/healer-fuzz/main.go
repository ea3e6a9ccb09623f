// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Command healer-fuzz is the entrypoint that wires a Config, a VM pool,
// and the fuzzing Loop together. It does not implement VM orchestration
// or guest execution itself - those are pluggable collaborators
// (pkg/vm.Pool, ipc.Executor) - so running this binary against real
// hardware requires linking in a real pkg/vm.Pool; without one it falls
// back to a pool of no-op executors that report the missing wiring
// instead of silently doing nothing.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/SunHao-0/healer/fuzz"
	"github.com/SunHao-0/healer/ipc"
	"github.com/SunHao-0/healer/pkg/config"
	"github.com/SunHao-0/healer/pkg/hlog"
	"github.com/SunHao-0/healer/pkg/vm"
	"github.com/SunHao-0/healer/prog"
	_ "github.com/SunHao-0/healer/targets"
)

var flagConfig = pflag.StringP("config", "c", "", "path to a YAML config file")

func main() {
	cfg := config.Default()
	cfg.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	if *flagConfig != "" {
		loaded, err := config.Load(*flagConfig)
		if err != nil {
			hlog.Fatalf("load config: %v", err)
		}
		fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
		fs.StringP("config", "c", "", "path to a YAML config file")
		loaded.RegisterFlags(fs)
		fs.Parse(os.Args[1:]) //nolint:errcheck
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		hlog.Fatalf("invalid config: %v", err)
	}
	hlog.SetVerbosity(cfg.Verbose)
	defer hlog.Sync()

	target, err := prog.GetTarget(cfg.OS, cfg.Arch)
	if err != nil {
		hlog.Fatalf("unknown target %s/%s: %v", cfg.OS, cfg.Arch, err)
	}

	rel := prog.NewRelation(target)
	corpus := prog.NewCorpusWrapper()
	reg := prometheus.NewRegistry()

	loop := &fuzz.Loop{
		Target:   target,
		Relation: rel,
		Corpus:   corpus,
		Feedback: fuzz.NewFeedback(),
		Stats:    fuzz.NewStats(reg),
		Crashes:  fuzz.NewCrashSet(),
		ExecOpts: ipc.ExecOpts{
			Flags:       ipc.ExecFlagCollectCover | ipc.ExecFlagDedupCover,
			NumRepeat:   1,
			CallTimeout: 5 * time.Second,
		},
		CullInterval: time.Minute,
	}

	pool := vm.NewDummyPool(cfg.Jobs, func() ipc.Executor { return &unwiredExecutor{bin: cfg.ExecutorBin} })

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go http.ListenAndServe(":9100", fuzz.ServeMetrics(reg)) //nolint:errcheck
	go fuzz.LogStatsPeriodically(ctx, loop.Stats, 10*time.Second)

	err = loop.Run(ctx, cfg.Jobs, func(workerIdx int) (ipc.Executor, error) {
		inst, err := pool.Boot(ctx)
		if err != nil {
			return nil, err
		}
		return inst.Executor(), nil
	})
	if err != nil && ctx.Err() == nil {
		hlog.Errorf("fuzzing loop exited: %v", err)
	}
}

// unwiredExecutor satisfies ipc.Executor so the binary links and runs
// end to end without a real VM backend, reporting at handshake time that
// no transport to bin was ever implemented rather than failing silently
// deep inside a worker loop.
type unwiredExecutor struct {
	bin string
}

func (e *unwiredExecutor) Handshake(ctx context.Context, flags ipc.EnvFlags) error {
	return errUnwired(e.bin)
}

func (e *unwiredExecutor) Exec(ctx context.Context, p *prog.Prog, opts ipc.ExecOpts) (*ipc.ProgInfo, error) {
	return nil, errUnwired(e.bin)
}

func (e *unwiredExecutor) Close() error { return nil }

func errUnwired(bin string) error {
	return &unwiredError{bin: bin}
}

type unwiredError struct{ bin string }

func (e *unwiredError) Error() string {
	if e.bin == "" {
		return "ipc: no executor transport wired and no --executor binary configured"
	}
	return "ipc: no executor transport wired for " + e.bin + " (supply a real pkg/vm.Pool)"
}
