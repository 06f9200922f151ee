package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/panbanda/augur/pkg/config"
	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a configuration file",
				Description: `Validates an augur configuration file for syntax errors and invalid values.

Examples:
  augur config validate                  # Validates default config locations
  augur -c augur.toml config validate    # Validates specific file`,
				Action: runConfigValidate,
			},
			{
				Name:  "show",
				Usage: "Show the effective configuration",
				Description: `Shows the merged configuration from defaults and config file.

Examples:
  augur config show               # Show effective config
  augur -c augur.toml config show # Show config from specific file`,
				Action: runConfigShow,
			},
		},
	}
}

func loadConfigResult(c *cli.Context) (*config.LoadResult, error) {
	var opts []config.LoadOption
	if path := lineageString(c, "config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	return config.LoadConfig(opts...)
}

func runConfigValidate(c *cli.Context) error {
	result, err := loadConfigResult(c)
	if err != nil {
		color.Red("Configuration validation failed:")
		fmt.Fprintf(stderr(), "  - %s\n", err)
		return err
	}

	if result.Source != "" {
		successf("Configuration valid: %s", result.Source)
	} else {
		warnf("No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShow(c *cli.Context) error {
	result, err := loadConfigResult(c)
	if err != nil {
		return err
	}
	return writeConfig(c.App.Writer, result)
}

func writeConfig(w io.Writer, result *config.LoadResult) error {
	if result.Source != "" {
		fmt.Fprintf(w, "# Configuration from: %s\n\n", result.Source)
	} else {
		fmt.Fprintln(w, "# Default configuration (no config file found)")
	}

	content, err := toml.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = w.Write(content)
	return err
}
