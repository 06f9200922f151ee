package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/panbanda/augur/internal/analysis"
	"github.com/panbanda/augur/internal/output"
	"github.com/panbanda/augur/pkg/watch"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Re-run detectors whenever source files change",
		ArgsUsage: "[path]",
		Flags: append(analysisFlags(),
			&cli.StringSliceFlag{
				Name:    "detector",
				Aliases: []string{"d"},
				Usage:   "Run only this detector (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before a change triggers a run",
			},
		),
		Action: runWatch,
	}
}

func runWatch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	root := getPaths(c)[0]
	log := newLogger(cfg.Output.Verbose)

	svc, err := analysis.New(root, cfg, analysis.WithLogger(log))
	if err != nil {
		return err
	}
	defer svc.Close()

	req := analysis.Request{Paths: []string{svc.Root()}, Detectors: c.StringSlice("detector")}
	formatter := output.NewWriterFormatter(format, c.App.Writer, cfg.Output.Color && isTerminal(os.Stdout))
	analyze := func(ctx context.Context, title string) {
		res, err := svc.Run(ctx, req)
		switch {
		case errors.Is(err, analysis.ErrNoFiles):
			warnf("No source files found")
		case err != nil:
			if ctx.Err() == nil {
				fmt.Fprintln(stderr(), color.RedString("analysis failed: %v", err))
			}
		default:
			if err := formatter.Output(output.NewIssueReport(title, res)); err != nil {
				fmt.Fprintln(stderr(), color.RedString("output failed: %v", err))
			}
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyze(ctx, "Analysis")

	w, err := watch.NewWatcher(svc.Root(), cfg, func(ctx context.Context, changed []string) {
		fmt.Fprintln(stderr(), color.YellowString("Changed: %s", strings.Join(changed, ", ")))
		analyze(ctx, "Analysis")
	}, watch.WithDebounce(c.Duration("debounce")), watch.WithLogger(log))
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()

	fmt.Fprintln(stderr(), color.CyanString("Watching for changes in %s (Ctrl+C to stop)", svc.Root()))
	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
