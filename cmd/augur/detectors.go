package main

import (
	"os"

	"github.com/panbanda/augur/internal/coordinator"
	"github.com/panbanda/augur/internal/output"
	"github.com/panbanda/augur/pkg/analyzer"
	"github.com/urfave/cli/v2"
)

func detectorsCmd() *cli.Command {
	return &cli.Command{
		Name:  "detectors",
		Usage: "List the available detectors",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: text, json, markdown, yaml"},
		},
		Action: func(c *cli.Context) error {
			format, err := output.ParseFormat(c.String("format"))
			if err != nil {
				return err
			}
			f := output.NewWriterFormatter(format, c.App.Writer, isTerminal(os.Stdout))
			return f.Output(output.DetectorTable(analyzer.DefaultRegistry().Describe()))
		},
	}
}

// workerCmd serves one process-mode detector request on stdin/stdout.
func workerCmd() *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Hidden: true,
		Action: func(c *cli.Context) error {
			return coordinator.ServeWorker(os.Stdin, os.Stdout, analyzer.DefaultRegistry())
		},
	}
}
