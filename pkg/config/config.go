// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package config models the CLI surface a fuzzing session is configured
// through: a YAML-loadable struct with flag overrides layered on top,
// the way the teacher's own tools separate a base config file from
// per-invocation flag tweaks.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the full set of knobs a fuzzing session needs. Fields map
// 1:1 onto the external-interfaces CLI surface: target OS/arch, the
// working directory state is persisted under, worker count, the VM
// disk/kernel images and SSH credentials a pkg/vm.Pool implementation
// consumes, the executor binary path, optional relation/disabled-syscall
// seed files, a crash-title whitelist, a skip-repro switch, and log
// verbosity.
type Config struct {
	OS       string `yaml:"os"`
	Arch     string `yaml:"arch"`
	WorkDir  string `yaml:"workdir"`
	Jobs     int    `yaml:"jobs"`

	Disk       string `yaml:"disk"`
	Kernel     string `yaml:"kernel"`
	SSHKey     string `yaml:"sshkey"`
	SSHUser    string `yaml:"sshuser"`
	VMSMP      int    `yaml:"vm_smp"`
	VMMemMB    int    `yaml:"vm_mem_mb"`

	ExecutorBin     string `yaml:"executor"`
	RelationsFile   string `yaml:"relations_file"`
	DisabledFile    string `yaml:"disabled_syscalls_file"`
	CrashWhitelist  string `yaml:"crash_whitelist"`
	SkipRepro       bool   `yaml:"skip_repro"`
	Verbose         int    `yaml:"verbose"`
}

// Default returns a Config with baseline values: linux/amd64, 4 workers,
// 2 vCPUs and 2048 MB per VM, verbosity 0. Config has no sandbox setting.
func Default() *Config {
	return &Config{
		OS:      "linux",
		Arch:    "amd64",
		WorkDir: "./workdir",
		Jobs:    4,
		VMSMP:   2,
		VMMemMB: 2048,
		Verbose: 0,
	}
}

// Load reads a YAML config file from path into Default()'s baseline,
// so a config file only needs to specify the fields it overrides.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// RegisterFlags binds fs's flags to c's fields, so a CLI invocation's
// flags override whatever a loaded config file (or Default) set.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.OS, "os", c.OS, "target OS")
	fs.StringVar(&c.Arch, "arch", c.Arch, "target architecture")
	fs.StringVar(&c.WorkDir, "workdir", c.WorkDir, "directory for persisted corpus/crash state")
	fs.IntVar(&c.Jobs, "jobs", c.Jobs, "number of parallel fuzzing workers")
	fs.StringVar(&c.Disk, "disk", c.Disk, "VM disk image path")
	fs.StringVar(&c.Kernel, "kernel", c.Kernel, "kernel image path")
	fs.StringVar(&c.SSHKey, "sshkey", c.SSHKey, "SSH private key for VM access")
	fs.StringVar(&c.SSHUser, "sshuser", c.SSHUser, "SSH user for VM access")
	fs.IntVar(&c.VMSMP, "vm-smp", c.VMSMP, "virtual CPUs per VM")
	fs.IntVar(&c.VMMemMB, "vm-mem-mb", c.VMMemMB, "memory per VM, in MB")
	fs.StringVar(&c.ExecutorBin, "executor", c.ExecutorBin, "path to the in-guest executor binary")
	fs.StringVar(&c.RelationsFile, "relations", c.RelationsFile, "path to a seed influence-relation file")
	fs.StringVar(&c.DisabledFile, "disabled-syscalls", c.DisabledFile, "path to a disabled-syscalls list")
	fs.StringVar(&c.CrashWhitelist, "crash-whitelist", c.CrashWhitelist, "path to a crash-title whitelist")
	fs.BoolVar(&c.SkipRepro, "skip-repro", c.SkipRepro, "don't attempt crash reproduction")
	fs.IntVarP(&c.Verbose, "verbose", "v", c.Verbose, "log verbosity")
}

// Validate checks the minimal set of fields needed to start a session.
func (c *Config) Validate() error {
	if c.Jobs <= 0 {
		return fmt.Errorf("config: jobs must be positive, got %d", c.Jobs)
	}
	if c.OS == "" || c.Arch == "" {
		return fmt.Errorf("config: os and arch must be set")
	}
	return nil
}
