// Package config loads the TOML configuration file that tunes execution
// limits, memory/debugger/CLI behavior, grounded on the struct-of-structs
// shape lookbusy1344's ARM emulator config package uses: one nested struct
// per concern, each field tagged for github.com/BurntSushi/toml, with a
// DefaultConfig constructor callers can load over before applying a file.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Execution bounds the VM's resource usage (spec §6).
type Execution struct {
	MaxOperandDepth int `toml:"max_operand_depth"`
	MaxCallDepth    int `toml:"max_call_depth"`
	MaxSteps        int `toml:"max_steps"`
	MaxInstructions int `toml:"max_instructions"`
}

// Memory configures the auxiliary heap manager.
type Memory struct {
	GCThresholdAllocs int `toml:"gc_threshold_allocs"`
	InitialHeapSize   int `toml:"initial_heap_size"`
	MaxHeapBlocks     int `toml:"max_heap_blocks"`
}

// Debugger configures default Session behavior.
type Debugger struct {
	AutoBreakOnError bool `toml:"auto_break_on_error"`
	TraceEnabled     bool `toml:"trace_enabled"`
}

// CLI configures cmd/langvm's presentation.
type CLI struct {
	ColorOutput bool `toml:"color_output"`
}

// Config is the full, nested configuration tree.
type Config struct {
	Execution Execution `toml:"execution"`
	Memory    Memory    `toml:"memory"`
	Debugger  Debugger  `toml:"debugger"`
	CLI       CLI       `toml:"cli"`
}

// DefaultConfig returns the configuration used when no file is supplied,
// matching the schema documented in SPEC_FULL.md §10.4.
func DefaultConfig() *Config {
	return &Config{
		Execution: Execution{
			MaxOperandDepth: 1000,
			MaxCallDepth:    100,
			MaxSteps:        100000,
			MaxInstructions: 10000000,
		},
		Memory: Memory{
			GCThresholdAllocs: 4096,
			InitialHeapSize:   256,
			MaxHeapBlocks:     100000,
		},
		Debugger: Debugger{
			AutoBreakOnError: true,
			TraceEnabled:     false,
		},
		CLI: CLI{
			ColorOutput: true,
		},
	}
}

// Load reads path and decodes it over DefaultConfig, so a file only needs
// to specify the fields it wants to override.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}
