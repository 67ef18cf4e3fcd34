package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default() invalid: %v", err)
	}
	if c.Process.FileMode != 0o666 {
		t.Errorf("file mode = %#o", c.Process.FileMode)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[runtime]
log-level = "annoying"

[heap]
max-bytes = 8388608
auto-collect = true

[gc]
policy = "non-moving"

[process]
intercept-signals = ["sigint", "SIGUSR1"]

[globals]
program-name = "demo"
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Heap.MaxBytes != 8<<20 || !c.Heap.AutoCollect {
		t.Errorf("heap = %+v", c.Heap)
	}
	if c.Heap.InitialBytes != 1<<20 {
		t.Errorf("unset keys should keep defaults, initial-bytes = %d", c.Heap.InitialBytes)
	}
	if c.GC.Policy != "non-moving" {
		t.Errorf("policy = %q", c.GC.Policy)
	}
	if c.Globals["program-name"] != "demo" {
		t.Errorf("globals = %v", c.Globals)
	}
	if got := c.Process.Signals(); len(got) != 2 {
		t.Errorf("signals = %v", got)
	}
	if lvl, _ := c.Level(); lvl != zap.DebugLevel {
		t.Errorf("level = %v", lvl)
	}
	if c.Path == "" || !filepath.IsAbs(c.Path) {
		t.Errorf("Path = %q", c.Path)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"max below initial", func(c *Config) { c.Heap.MaxBytes = c.Heap.InitialBytes - 1 }, "max-bytes"},
		{"odd guard", func(c *Config) { c.Heap.GuardBytes = 12 }, "guard-bytes"},
		{"policy", func(c *Config) { c.GC.Policy = "generational" }, "gc.policy"},
		{"gc percent", func(c *Config) { c.GC.HostGCPercent = -2 }, "host-gc-percent"},
		{"level", func(c *Config) { c.Runtime.LogLevel = "loud" }, "log-level"},
		{"two stats targets", func(c *Config) { c.Stats.DumpFile = "x"; c.Stats.DumpStdout = true }, "mutually exclusive"},
		{"signal", func(c *Config) { c.Process.InterceptSignals = []string{"SIGKILLME"} }, "SIGKILLME"},
		{"no shell", func(c *Config) { c.Process.Shell = "" }, "shell"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("missing file should fail")
	}

	path := writeConfig(t, dir, "[heap\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Errorf("syntax error = %v", err)
	}

	writeConfig(t, dir, "[gc]\npolicy = \"bogus\"\n")
	if _, err := Load(path); err == nil {
		t.Error("invalid settings should fail Load")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[runtime]\nlog-level = \"quiet\"\n")
	deep := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(deep)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c.Runtime.LogLevel != LevelQuiet {
		t.Errorf("log-level = %q", c.Runtime.LogLevel)
	}
}

func TestNewLogger(t *testing.T) {
	c := Default()
	c.Runtime.LogLevel = LevelQuiet
	l, err := c.NewLogger()
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("quiet should suppress info")
	}
}
