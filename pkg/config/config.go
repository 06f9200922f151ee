package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for augur.
type Config struct {
	// Detectors selects which registered detectors run.
	Detectors DetectorsConfig `koanf:"detectors" toml:"detectors"`

	// Duplicates configures the clone matchers.
	Duplicates DuplicatesConfig `koanf:"duplicates" toml:"duplicates"`

	// Normalize configures the strict normalization profile used for exact clones.
	Normalize NormalizeConfig `koanf:"normalize" toml:"normalize"`

	Complexity ComplexityConfig `koanf:"complexity" toml:"complexity"`
	DeadCode   DeadCodeConfig   `koanf:"deadcode" toml:"deadcode"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Parallel controls the detector coordinator.
	Parallel ParallelConfig `koanf:"parallel" toml:"parallel"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`

	// MaxFileSize skips files larger than this many bytes (0 = no limit).
	MaxFileSize int64 `koanf:"max_file_size" toml:"max_file_size"`
}

// DetectorsConfig lists enabled detector ids. An empty list enables every registered detector.
type DetectorsConfig struct {
	Enabled []string `koanf:"enabled" toml:"enabled"`
}

// DuplicatesConfig groups the per-matcher thresholds.
type DuplicatesConfig struct {
	Exact      ExactConfig      `koanf:"exact" toml:"exact"`
	Near       NearConfig       `koanf:"near" toml:"near"`
	Blocks     BlockConfig      `koanf:"blocks" toml:"blocks"`
	Structural StructuralConfig `koanf:"structural" toml:"structural"`
}

// ExactConfig configures exact clone matching.
type ExactConfig struct {
	MinLines int `koanf:"min_lines" toml:"min_lines"`
}

// NearConfig configures function-level near clone matching.
type NearConfig struct {
	Threshold  float64 `koanf:"threshold" toml:"threshold"`
	MinLines   int     `koanf:"min_lines" toml:"min_lines"`
	NGramSize  int     `koanf:"ngram_size" toml:"ngram_size"`
	WindowSize int     `koanf:"window_size" toml:"window_size"`
}

// BlockConfig configures statement-block near clone matching.
type BlockConfig struct {
	Enabled           bool    `koanf:"enabled" toml:"enabled"`
	Threshold         float64 `koanf:"threshold" toml:"threshold"`
	MinStatements     int     `koanf:"min_statements" toml:"min_statements"`
	MaxStatements     int     `koanf:"max_statements" toml:"max_statements"`
	MinLines          int     `koanf:"min_lines" toml:"min_lines"`
	NGramSize         int     `koanf:"ngram_size" toml:"ngram_size"`
	WindowSize        int     `koanf:"window_size" toml:"window_size"`
	CrossFunctionOnly bool    `koanf:"cross_function_only" toml:"cross_function_only"`
}

// StructuralConfig configures the cross-file structural matcher.
type StructuralConfig struct {
	Threshold     float64 `koanf:"threshold" toml:"threshold"`
	MinLines      int     `koanf:"min_lines" toml:"min_lines"`
	CrossFileOnly bool    `koanf:"cross_file_only" toml:"cross_file_only"`
}

// NormalizeConfig toggles each normalization rule.
type NormalizeConfig struct {
	StripDocs         bool   `koanf:"strip_docs" toml:"strip_docs"`
	RenameIdentifiers bool   `koanf:"rename_identifiers" toml:"rename_identifiers"`
	ReplaceLiterals   bool   `koanf:"replace_literals" toml:"replace_literals"`
	StripComments     bool   `koanf:"strip_comments" toml:"strip_comments"`
	Whitespace        string `koanf:"whitespace" toml:"whitespace"` // keep, collapse, remove
}

// ComplexityConfig configures the cyclomatic complexity detector.
type ComplexityConfig struct {
	Threshold int `koanf:"threshold" toml:"threshold"`
}

// DeadCodeConfig configures the unreferenced symbol detector.
type DeadCodeConfig struct {
	EntryPoints    []string `koanf:"entry_points" toml:"entry_points"`
	IgnoreExported bool     `koanf:"ignore_exported" toml:"ignore_exported"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled        bool   `koanf:"enabled" toml:"enabled"`
	Path           string `koanf:"path" toml:"path"`
	ParseCacheSize int    `koanf:"parse_cache_size" toml:"parse_cache_size"`
}

// ParallelConfig controls detector execution.
type ParallelConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Mode    string `koanf:"mode" toml:"mode"` // auto, goroutine, process, sequential
	Workers int    `koanf:"workers" toml:"workers"`
	Timeout string `koanf:"timeout" toml:"timeout"`
}

// TimeoutDuration parses Timeout; an empty or invalid value means no timeout.
func (p ParallelConfig) TimeoutDuration() time.Duration {
	if p.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns" toml:"patterns"`
	Extensions []string `koanf:"extensions" toml:"extensions"`
	Dirs       []string `koanf:"dirs" toml:"dirs"`
	Gitignore  bool     `koanf:"gitignore" toml:"gitignore"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, yaml
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Duplicates: DuplicatesConfig{
			Exact: ExactConfig{MinLines: 5},
			Near: NearConfig{
				Threshold:  0.8,
				MinLines:   5,
				NGramSize:  5,
				WindowSize: 4,
			},
			Blocks: BlockConfig{
				Enabled:           true,
				Threshold:         0.9,
				MinStatements:     3,
				MaxStatements:     8,
				MinLines:          4,
				NGramSize:         5,
				WindowSize:        4,
				CrossFunctionOnly: false,
			},
			Structural: StructuralConfig{
				Threshold:     0.75,
				MinLines:      5,
				CrossFileOnly: true,
			},
		},
		Normalize: NormalizeConfig{
			StripDocs:         true,
			RenameIdentifiers: true,
			ReplaceLiterals:   true,
			StripComments:     true,
			Whitespace:        "collapse",
		},
		Complexity: ComplexityConfig{Threshold: 10},
		DeadCode: DeadCodeConfig{
			EntryPoints: []string{"main", "__init__", "__main__", "init", "setup", "teardown"},
		},
		Cache: CacheConfig{
			Enabled:        true,
			Path:           ".augur/cache.db",
			ParseCacheSize: 512,
		},
		Parallel: ParallelConfig{
			Enabled: true,
			Mode:    "auto",
			Workers: 4,
			Timeout: "5m",
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.min.js",
				"*.min.css",
			},
			Extensions: []string{
				".lock",
				".sum",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				".git",
				".augur",
				"dist",
				"build",
				"__pycache__",
			},
			Gitignore: true,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
		MaxFileSize: 1 << 20,
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	checkThreshold := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", name, v))
		}
	}
	checkPositive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}

	d := c.Duplicates
	checkThreshold("duplicates.near.threshold", d.Near.Threshold)
	checkThreshold("duplicates.blocks.threshold", d.Blocks.Threshold)
	checkThreshold("duplicates.structural.threshold", d.Structural.Threshold)
	checkPositive("duplicates.near.ngram_size", d.Near.NGramSize)
	checkPositive("duplicates.near.window_size", d.Near.WindowSize)
	checkPositive("duplicates.blocks.ngram_size", d.Blocks.NGramSize)
	checkPositive("duplicates.blocks.window_size", d.Blocks.WindowSize)
	checkPositive("duplicates.blocks.min_statements", d.Blocks.MinStatements)
	if d.Blocks.MaxStatements < d.Blocks.MinStatements {
		errs = append(errs, fmt.Errorf("duplicates.blocks.max_statements (%d) must be >= min_statements (%d)",
			d.Blocks.MaxStatements, d.Blocks.MinStatements))
	}

	switch strings.ToLower(c.Parallel.Mode) {
	case "", "auto", "goroutine", "process", "sequential":
	default:
		errs = append(errs, fmt.Errorf("parallel.mode %q is not one of auto, goroutine, process, sequential", c.Parallel.Mode))
	}
	if c.Parallel.Timeout != "" {
		if _, err := time.ParseDuration(c.Parallel.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("parallel.timeout: %w", err))
		}
	}
	switch strings.ToLower(c.Normalize.Whitespace) {
	case "", "keep", "collapse", "remove":
	default:
		errs = append(errs, fmt.Errorf("normalize.whitespace %q is not one of keep, collapse, remove", c.Normalize.Whitespace))
	}

	return errors.Join(errs...)
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// configNames are the file names searched for, in order.
var configNames = []string{
	"augur.toml",
	"augur.yaml",
	"augur.yml",
	"augur.json",
	".augur.toml",
	".augur.yaml",
	".augur.yml",
	".augur.json",
}

// LoadResult carries the loaded config and the file it came from.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
	dirs []string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads a specific file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// WithSearchDirs overrides the directories searched for a config file.
func WithSearchDirs(dirs ...string) LoadOption {
	return func(o *loadOptions) { o.dirs = dirs }
}

// LoadConfig loads an explicit config file or the first one found in the
// search directories. Without any file it returns the defaults and an empty Source.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{dirs: []string{".", ".augur"}}
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	for _, dir := range o.dirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				return nil, err
			}
			return &LoadResult{Config: cfg, Source: path}, nil
		}
	}

	return &LoadResult{Config: DefaultConfig()}, nil
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	ext := filepath.Ext(path)
	for _, excludeExt := range c.Exclude.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}

// DetectorEnabled reports whether id should run.
func (c *Config) DetectorEnabled(id string) bool {
	if len(c.Detectors.Enabled) == 0 {
		return true
	}
	for _, e := range c.Detectors.Enabled {
		if e == id {
			return true
		}
	}
	return false
}
