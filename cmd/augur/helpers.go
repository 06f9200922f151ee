package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/panbanda/augur/pkg/config"
	"github.com/urfave/cli/v2"
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// loadConfig loads the config named by --config or found in the working
// directory, then applies command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var opts []config.LoadOption
	if path := lineageString(c, "config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	cfg := result.Config

	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if mode := c.String("mode"); mode != "" {
		cfg.Parallel.Mode = mode
	}
	if c.Bool("sequential") {
		cfg.Parallel.Mode = "sequential"
	}
	if c.IsSet("workers") {
		cfg.Parallel.Workers = c.Int("workers")
	}
	if c.IsSet("timeout") {
		cfg.Parallel.Timeout = c.Duration("timeout").String()
	}
	if f := c.String("format"); f != "" {
		cfg.Output.Format = f
	}
	if lineageBool(c, "verbose") {
		cfg.Output.Verbose = true
	}
	if cfg.Parallel.Workers <= 0 {
		return nil, fmt.Errorf("--workers must be a positive integer (got %d)", cfg.Parallel.Workers)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// lineageBool reports whether name is set on the command or any parent.
// Flags defined at both levels shadow each other in cli.Context lookups.
func lineageBool(c *cli.Context, name string) bool {
	for _, ctx := range c.Lineage() {
		if ctx.Bool(name) {
			return true
		}
	}
	return false
}

func lineageString(c *cli.Context, name string) string {
	for _, ctx := range c.Lineage() {
		if v := ctx.String(name); v != "" {
			return v
		}
	}
	return ""
}

// newLogger writes text logs to stderr: warnings by default, everything
// with --verbose.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// warnf prints a yellow notice on stderr, keeping stdout clean for reports.
func warnf(format string, args ...any) {
	fmt.Fprintln(stderr(), color.YellowString(format, args...))
}

func successf(format string, args ...any) {
	fmt.Fprintln(stderr(), color.GreenString(format, args...))
}

var errWriter io.Writer

func stderr() io.Writer {
	if errWriter != nil {
		return errWriter
	}
	return os.Stderr
}
