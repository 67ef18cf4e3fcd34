// Package config handles systrap.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the configuration file FindAndLoad looks for.
const FileName = "systrap.toml"

// Config is the full runtime configuration.
type Config struct {
	Runtime Runtime           `toml:"runtime"`
	Heap    Heap              `toml:"heap"`
	GC      GC                `toml:"gc"`
	Stats   Stats             `toml:"stats"`
	FFI     FFI               `toml:"ffi"`
	Process Process           `toml:"process"`
	Globals map[string]string `toml:"globals"`

	// Path is the file the configuration was loaded from (set at load time).
	Path string `toml:"-"`
}

// Runtime holds process-wide settings.
type Runtime struct {
	LogLevel string `toml:"log-level"`
	HeapFile string `toml:"heap-file"`
}

// Heap sizes the managed heap arena.
type Heap struct {
	InitialBytes int  `toml:"initial-bytes"`
	MaxBytes     int  `toml:"max-bytes"`
	GuardBytes   int  `toml:"guard-bytes"`
	AutoCollect  bool `toml:"auto-collect"`
}

// GC selects collection behavior.
type GC struct {
	Policy        string `toml:"policy"`
	HostGCPercent int    `toml:"host-gc-percent"`
}

// Stats configures collection statistics dumping at startup.
type Stats struct {
	DumpFile   string `toml:"dump-file"`
	DumpStdout bool   `toml:"dump-stdout"`
}

// FFI configures the foreign library bridge.
type FFI struct {
	Enabled          bool     `toml:"enabled"`
	WASI             bool     `toml:"wasi"`
	MemoryLimitPages uint32   `toml:"memory-limit-pages"`
	SearchPath       []string `toml:"search-path"`
}

// Process configures process-level traps.
type Process struct {
	Shell            string   `toml:"shell"`
	FileMode         uint32   `toml:"file-mode"`
	InterceptSignals []string `toml:"intercept-signals"`
}

// Log levels, from least to most verbose.
const (
	LevelQuiet             = "quiet"
	LevelInfo              = "info"
	LevelAnnoying          = "annoying"
	LevelSupremelyAnnoying = "supremely-annoying"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Runtime: Runtime{LogLevel: LevelInfo},
		Heap: Heap{
			InitialBytes: 1 << 20,
			MaxBytes:     64 << 20,
			GuardBytes:   16,
		},
		GC: GC{
			Policy:        "compacting",
			HostGCPercent: 100,
		},
		FFI: FFI{Enabled: true},
		Process: Process{
			Shell:    "/bin/sh",
			FileMode: 0o666,
		},
		Globals: map[string]string{},
	}
}

// Load parses a configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if c.Globals == nil {
		c.Globals = map[string]string{}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a systrap.toml file, then
// loads it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if _, err := c.Level(); err != nil {
		bad("%v", err)
	}
	if c.Heap.InitialBytes <= 0 {
		bad("heap.initial-bytes must be positive, got %d", c.Heap.InitialBytes)
	}
	if c.Heap.MaxBytes < c.Heap.InitialBytes {
		bad("heap.max-bytes (%d) is below heap.initial-bytes (%d)", c.Heap.MaxBytes, c.Heap.InitialBytes)
	}
	if c.Heap.GuardBytes < 8 || c.Heap.GuardBytes%8 != 0 {
		bad("heap.guard-bytes must be a positive multiple of 8, got %d", c.Heap.GuardBytes)
	}
	switch c.GC.Policy {
	case "compacting", "non-moving":
	default:
		bad("gc.policy must be compacting or non-moving, got %q", c.GC.Policy)
	}
	if c.GC.HostGCPercent < -1 {
		bad("gc.host-gc-percent must be -1 (off) or non-negative, got %d", c.GC.HostGCPercent)
	}
	if c.Stats.DumpFile != "" && c.Stats.DumpStdout {
		bad("stats.dump-file and stats.dump-stdout are mutually exclusive")
	}
	if c.Process.Shell == "" {
		bad("process.shell must be set")
	}
	if c.Process.FileMode > 0o7777 {
		bad("process.file-mode %#o has bits outside 07777", c.Process.FileMode)
	}
	for _, name := range c.Process.InterceptSignals {
		if _, ok := signalNames[strings.ToUpper(name)]; !ok {
			bad("process.intercept-signals: unknown signal %q", name)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Level maps the configured log level to a zap level.
func (c *Config) Level() (zapcore.Level, error) {
	switch c.Runtime.LogLevel {
	case LevelQuiet:
		return zap.ErrorLevel, nil
	case LevelInfo, "":
		return zap.InfoLevel, nil
	case LevelAnnoying, LevelSupremelyAnnoying:
		return zap.DebugLevel, nil
	}
	return zap.InfoLevel, fmt.Errorf("runtime.log-level %q is not one of quiet, info, annoying, supremely-annoying", c.Runtime.LogLevel)
}

// NewLogger builds the process logger for the configured level. The most
// verbose level also records callers and stacks.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableCaller = true
	zc.DisableStacktrace = true
	if c.Runtime.LogLevel == LevelSupremelyAnnoying {
		zc.DisableCaller = false
		zc.DisableStacktrace = false
	}
	return zc.Build()
}
