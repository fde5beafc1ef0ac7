package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
	"github.com/MrShadowKiller/c-slang/pkg/ir"
	"github.com/MrShadowKiller/c-slang/pkg/processor"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := &cli.Command{
		Name:  "cslang",
		Usage: "The c-slang semantic processor",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Process a parsed translation unit and report diagnostics",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					root, warnings, err := process(c)
					if err != nil {
						return err
					}

					printWarnings(warnings)

					fmt.Printf("ok: %d functions, %d bytes of data, %d table entries\n",
						len(root.Functions), root.DataSegmentSizeInBytes, len(root.FunctionTable))

					return nil
				},
			},
			{
				Name:  "build",
				Usage: "Process a parsed translation unit and dump the produced IR",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					root, warnings, err := process(c)
					if err != nil {
						return err
					}

					printWarnings(warnings)

					out := os.Stdout
					if path := c.String("output"); path != "" {
						f, err := os.Create(path)
						if err != nil {
							return err
						}
						defer f.Close()

						out = f
					}

					root.Dump(out)

					return nil
				},
			},
		},
	}

	err := cmd.Run(ctx, os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", colorRed(), colorReset(), err)
		os.Exit(1)
	}
}

func process(c *cli.Command) (*ir.Root, []processor.Warning, error) {
	if c.Args().Len() != 1 {
		return nil, nil, fmt.Errorf("must provide exactly one parsed AST file as argument")
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	root, err := ast.DecodeJSON(f)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.Default()
	if c.Bool("verbose") {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	proc, err := processor.New(logger, processor.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize processor: %w", err)
	}

	return proc.Process(root)
}

func printWarnings(warnings []processor.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "%swarning:%s %s: %s\n", colorYellow(), colorReset(), w.Position, w.Message)
	}
}

func stderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func colorRed() string {
	if stderrIsTerminal() {
		return "\x1b[31m"
	}

	return ""
}

func colorYellow() string {
	if stderrIsTerminal() {
		return "\x1b[33m"
	}

	return ""
}

func colorReset() string {
	if stderrIsTerminal() {
		return "\x1b[0m"
	}

	return ""
}
