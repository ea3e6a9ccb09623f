// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() should validate, got: %v", err)
	}
}

func TestValidateRejectsNonPositiveJobs(t *testing.T) {
	c := Default()
	c.Jobs = 0
	if err := c.Validate(); err == nil {
		t.Fatal("Validate() should reject Jobs <= 0")
	}
}

func TestLoadOverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "jobs: 16\nos: linux\narch: arm64\nexecutor: /bin/exec\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Jobs != 16 {
		t.Errorf("Jobs = %d, want 16", c.Jobs)
	}
	if c.Arch != "arm64" {
		t.Errorf("Arch = %q, want arm64", c.Arch)
	}
	if c.ExecutorBin != "/bin/exec" {
		t.Errorf("ExecutorBin = %q, want /bin/exec", c.ExecutorBin)
	}
	if c.WorkDir != Default().WorkDir {
		t.Errorf("WorkDir should keep its default when unset in the file, got %q", c.WorkDir)
	}
}

func TestRegisterFlagsOverridesConfig(t *testing.T) {
	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse([]string{"--jobs", "8", "--skip-repro"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Jobs != 8 {
		t.Errorf("Jobs = %d, want 8", c.Jobs)
	}
	if !c.SkipRepro {
		t.Error("SkipRepro should be true after --skip-repro")
	}
}
