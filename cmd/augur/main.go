package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "augur",
		Usage:   "Code health analysis: clones, dead code, cycles and complexity",
		Version: version,
		Description: `Augur finds exact, near and structural code clones and reports dead code,
module cycles and complex functions. Expensive results are cached in a
SQLite database under .augur/ and reused until the files they read change.

Supports: Go, Rust, Python, TypeScript, JavaScript, Java, C, C++, C#, Ruby, PHP`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"AUGUR_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug details to stderr",
			},
		},
		Commands: []*cli.Command{
			analyzeCmd(),
			duplicatesCmd(),
			cacheCmd(),
			configCmd(),
			watchCmd(),
			detectorsCmd(),
			workerCmd(),
		},
	}
}
