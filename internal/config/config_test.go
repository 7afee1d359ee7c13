package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_MatchesDocumentedValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Execution.MaxOperandDepth != 1000 {
		t.Fatalf("expected MaxOperandDepth 1000, got %d", cfg.Execution.MaxOperandDepth)
	}
	if cfg.Execution.MaxCallDepth != 100 {
		t.Fatalf("expected MaxCallDepth 100, got %d", cfg.Execution.MaxCallDepth)
	}
	if cfg.Memory.GCThresholdAllocs != 4096 {
		t.Fatalf("expected GCThresholdAllocs 4096, got %d", cfg.Memory.GCThresholdAllocs)
	}
	if !cfg.Debugger.AutoBreakOnError {
		t.Fatalf("expected AutoBreakOnError to default true")
	}
	if !cfg.CLI.ColorOutput {
		t.Fatalf("expected ColorOutput to default true")
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Fatalf("expected defaults, got %#v", cfg)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Fatalf("expected defaults for a missing file, got %#v", cfg)
	}
}

func TestLoad_FileOverridesOnlySpecifiedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[execution]
max_steps = 500

[cli]
color_output = false
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Execution.MaxSteps != 500 {
		t.Fatalf("expected MaxSteps overridden to 500, got %d", cfg.Execution.MaxSteps)
	}
	if cfg.Execution.MaxOperandDepth != 1000 {
		t.Fatalf("expected MaxOperandDepth to keep its default 1000, got %d", cfg.Execution.MaxOperandDepth)
	}
	if cfg.CLI.ColorOutput {
		t.Fatalf("expected ColorOutput overridden to false")
	}
	if cfg.Debugger.AutoBreakOnError != true {
		t.Fatalf("expected Debugger.AutoBreakOnError to keep its default true")
	}
}

func TestLoad_MalformedFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("not = [valid toml"), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error decoding a malformed config file")
	}
}
