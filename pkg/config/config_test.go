package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.Duplicates.Near.Threshold != 0.8 {
		t.Errorf("Duplicates.Near.Threshold = %v, want 0.8", cfg.Duplicates.Near.Threshold)
	}
	if cfg.Duplicates.Near.NGramSize != 5 {
		t.Errorf("Duplicates.Near.NGramSize = %d, want 5", cfg.Duplicates.Near.NGramSize)
	}
	if !cfg.Duplicates.Structural.CrossFileOnly {
		t.Error("Duplicates.Structural.CrossFileOnly should be true by default")
	}
	if !cfg.Normalize.RenameIdentifiers {
		t.Error("Normalize.RenameIdentifiers should be true by default")
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be true by default")
	}
	if cfg.Parallel.TimeoutDuration() != 5*time.Minute {
		t.Errorf("Parallel.TimeoutDuration() = %v, want 5m", cfg.Parallel.TimeoutDuration())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "augur.toml")

	content := `
[detectors]
enabled = ["exact-clones", "near-clones"]

[duplicates.near]
threshold = 0.65
ngram_size = 4

[parallel]
mode = "sequential"
timeout = "30s"

[exclude]
dirs = ["vendor", "custom_exclude"]
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Duplicates.Near.Threshold != 0.65 {
		t.Errorf("Near.Threshold = %v, want 0.65", cfg.Duplicates.Near.Threshold)
	}
	if cfg.Duplicates.Near.NGramSize != 4 {
		t.Errorf("Near.NGramSize = %d, want 4", cfg.Duplicates.Near.NGramSize)
	}
	if cfg.Duplicates.Near.WindowSize != 4 {
		t.Errorf("Near.WindowSize = %d, want default 4", cfg.Duplicates.Near.WindowSize)
	}
	if cfg.Parallel.Mode != "sequential" {
		t.Errorf("Parallel.Mode = %q, want sequential", cfg.Parallel.Mode)
	}
	if cfg.Parallel.TimeoutDuration() != 30*time.Second {
		t.Errorf("TimeoutDuration() = %v, want 30s", cfg.Parallel.TimeoutDuration())
	}
	if !cfg.DetectorEnabled("near-clones") || cfg.DetectorEnabled("dead-code") {
		t.Errorf("DetectorEnabled mismatch for %v", cfg.Detectors.Enabled)
	}
	if len(cfg.Exclude.Dirs) != 2 || cfg.Exclude.Dirs[1] != "custom_exclude" {
		t.Errorf("Exclude.Dirs = %v", cfg.Exclude.Dirs)
	}
}

func TestLoadYAMLAndJSON(t *testing.T) {
	tmpDir := t.TempDir()

	yamlPath := filepath.Join(tmpDir, "augur.yaml")
	yamlContent := "duplicates:\n  structural:\n    threshold: 0.9\ncache:\n  enabled: false\n"
	if err := os.WriteFile(yamlPath, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load(yaml) error: %v", err)
	}
	if cfg.Duplicates.Structural.Threshold != 0.9 || cfg.Cache.Enabled {
		t.Errorf("yaml values not applied: %+v %+v", cfg.Duplicates.Structural, cfg.Cache)
	}

	jsonPath := filepath.Join(tmpDir, "augur.json")
	jsonContent := `{"complexity": {"threshold": 25}}`
	if err := os.WriteFile(jsonPath, []byte(jsonContent), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(jsonPath)
	if err != nil {
		t.Fatalf("Load(json) error: %v", err)
	}
	if cfg.Complexity.Threshold != 25 {
		t.Errorf("Complexity.Threshold = %d, want 25", cfg.Complexity.Threshold)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "augur.toml")
	content := `
[duplicates.near]
threshold = 1.5

[duplicates.blocks]
min_statements = 6
max_statements = 2

[parallel]
mode = "threads"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() should fail for invalid values")
	}
	for _, want := range []string{"duplicates.near.threshold", "max_statements", "parallel.mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestLoadConfigSearch(t *testing.T) {
	tmpDir := t.TempDir()

	res, err := LoadConfig(WithSearchDirs(tmpDir))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if res.Source != "" {
		t.Errorf("Source = %q, want empty without a config file", res.Source)
	}

	path := filepath.Join(tmpDir, ".augur.toml")
	if err := os.WriteFile(path, []byte("[complexity]\nthreshold = 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	res, err = LoadConfig(WithSearchDirs(tmpDir))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if res.Source != path {
		t.Errorf("Source = %q, want %q", res.Source, path)
	}
	if res.Config.Complexity.Threshold != 7 {
		t.Errorf("Complexity.Threshold = %d, want 7", res.Config.Complexity.Threshold)
	}

	res, err = LoadConfig(WithPath(path))
	if err != nil || res.Source != path {
		t.Errorf("LoadConfig(WithPath) = %v, %v", res, err)
	}
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		path string
		want bool
	}{
		{"vendor/lib/x.go", true},
		{"src/node_modules/a.js", true},
		{"src/app.min.js", true},
		{"Cargo.lock", true},
		{"src/main.py", false},
	}
	for _, tt := range tests {
		if got := cfg.ShouldExclude(tt.path); got != tt.want {
			t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
