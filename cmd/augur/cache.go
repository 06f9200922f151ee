package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/panbanda/augur/internal/cache"
	"github.com/panbanda/augur/internal/output"
	"github.com/panbanda/augur/pkg/config"
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	rootFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:  "root",
			Value: ".",
			Usage: "Project root the cache belongs to",
		}
	}
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the result cache",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show cache size and entries per detector",
				Flags: []cli.Flag{
					rootFlag(),
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: text, json, markdown, yaml"},
				},
				Action: runCacheStats,
			},
			{
				Name:  "purge",
				Usage: "Drop cached state for deleted files, or for every file under a prefix",
				Flags: []cli.Flag{
					rootFlag(),
					&cli.StringFlag{Name: "prefix", Usage: "Purge every file whose path starts with this prefix"},
				},
				Action: runCachePurge,
			},
			{
				Name:      "invalidate",
				Usage:     "Invalidate a file and everything that depends on it",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{rootFlag()},
				Action:    runCacheInvalidate,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached result and ledger entry",
				Flags:  []cli.Flag{rootFlag()},
				Action: runCacheClear,
			},
		},
	}
}

// openCache opens the result cache of the project at --root.
func openCache(c *cli.Context) (*cache.Store, string, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, "", err
	}
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, "", err
	}
	path := cfg.Cache.Path
	if path == "" {
		path = config.DefaultConfig().Cache.Path
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("no cache at %s", path)
	}
	store, err := cache.Open(path, cache.WithLogger(newLogger(cfg.Output.Verbose)))
	if err != nil {
		return nil, "", err
	}
	return store, root, nil
}

func runCacheStats(c *cli.Context) error {
	store, _, err := openCache(c)
	if err != nil {
		return err
	}
	defer store.Close()

	format, err := output.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	formatter := output.NewWriterFormatter(format, c.App.Writer, isTerminal(os.Stdout))
	return formatter.Output(output.CacheStatsTable(store.Stats(c.Context)))
}

func runCachePurge(c *cli.Context) error {
	store, root, err := openCache(c)
	if err != nil {
		return err
	}
	defer store.Close()

	gone := func(p string) bool {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(p)))
		return errors.Is(err, os.ErrNotExist)
	}
	if prefix := c.String("prefix"); prefix != "" {
		prefix = filepath.ToSlash(strings.TrimPrefix(prefix, "./"))
		gone = func(p string) bool { return strings.HasPrefix(p, prefix) }
	}
	n := store.Purge(c.Context, gone)
	successf("Purged %d files", n)
	return nil
}

func runCacheInvalidate(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("usage: augur cache invalidate <file>")
	}
	store, root, err := openCache(c)
	if err != nil {
		return err
	}
	defer store.Close()

	file, err := ledgerPath(root, c.Args().First())
	if err != nil {
		return err
	}
	invalidated := store.InvalidateDependents(c.Context, file)
	successf("Invalidated %d files", len(invalidated))
	for _, f := range invalidated {
		fmt.Fprintf(stderr(), "  %s\n", f)
	}
	return nil
}

func runCacheClear(c *cli.Context) error {
	store, _, err := openCache(c)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Clear(c.Context); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	successf("Cache cleared")
	return nil
}

// ledgerPath converts a command-line path into the root-relative slash
// path the cache ledger uses.
func ledgerPath(root, arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(abs), nil
	}
	return filepath.ToSlash(rel), nil
}
