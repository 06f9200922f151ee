package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/panbanda/augur/internal/analysis"
	"github.com/panbanda/augur/internal/output"
	"github.com/panbanda/augur/internal/progress"
	"github.com/panbanda/augur/pkg/analyzer"
	"github.com/urfave/cli/v2"
)

func analysisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file (TOML, YAML, or JSON)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, markdown, yaml",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to file",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Do not read or write the result cache",
		},
		&cli.BoolFlag{
			Name:  "sequential",
			Usage: "Run detectors one at a time",
		},
		&cli.StringFlag{
			Name:  "mode",
			Usage: "Detector execution: auto, goroutine, process, sequential",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"j"},
			Usage:   "Maximum detectors running at once",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-detector timeout (0 disables)",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log debug details to stderr",
		},
	}
}

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Run every enabled detector",
		ArgsUsage: "[path...]",
		Flags: append(analysisFlags(), &cli.StringSliceFlag{
			Name:    "detector",
			Aliases: []string{"d"},
			Usage:   "Run only this detector (repeatable)",
		}),
		Action: func(c *cli.Context) error {
			return runAnalysis(c, "Analysis", analysis.Request{Detectors: c.StringSlice("detector")})
		},
	}
}

func duplicatesCmd() *cli.Command {
	return &cli.Command{
		Name:      "duplicates",
		Aliases:   []string{"dup", "clones"},
		Usage:     "Detect exact, near and structural clones",
		ArgsUsage: "[path...]",
		Flags:     analysisFlags(),
		Action: func(c *cli.Context) error {
			return runAnalysis(c, "Duplicates", analysis.Request{DuplicatesOnly: true})
		},
	}
}

func runAnalysis(c *cli.Context, title string, req analysis.Request) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	paths := getPaths(c)
	req.Paths = paths
	log := newLogger(cfg.Output.Verbose)

	opts := []analysis.Option{analysis.WithLogger(log)}
	interactive := isTerminal(os.Stderr)
	if interactive {
		opts = append(opts, analysis.WithProgress(progress.New(os.Stderr)))
	}
	svc, err := analysis.New(paths[0], cfg, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	var detectBar *progress.Bar
	if interactive {
		detectBar = progress.New(os.Stderr).Label("Detecting")
		ctx = analyzer.WithTracker(ctx, analyzer.NewTracker(detectBar.Track))
	}

	res, err := svc.Run(ctx, req)
	if detectBar != nil {
		detectBar.Finish()
	}
	if errors.Is(err, analysis.ErrNoFiles) {
		warnf("No source files found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if res.FileErrors.HasErrors() {
		warnf("%d files could not be loaded (use --verbose for details)", res.FileErrors.Len())
	}
	if res.Report.FellBack {
		warnf("parallel execution unavailable, detectors ran sequentially")
	}
	for _, r := range res.Report.Failed() {
		warnf("detector %s failed: %v", r.Detector, r.Err)
	}

	formatter, err := output.NewFormatter(format, c.String("output"), cfg.Output.Color && isTerminal(os.Stdout))
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(output.NewIssueReport(title, res))
}
