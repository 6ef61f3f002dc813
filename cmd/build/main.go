// build runs an instruction file against a headless browser and writes the
// transcript of every instruction that executed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"browser-pilot/internal/application"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		filePath   string
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "🛠️ Turn an instruction file into a replayable browser script",
		Long: `Reads an instruction file (first line: base URL, then one instruction per line),
generates code for each instruction, runs it against a live browser and writes
<file>_<config>.js. Stops at the first instruction whose code fails.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := application.Init(configPath, debug)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.RunBuild(ctx, filePath)
			if err != nil {
				return err
			}
			if res.Failed != nil {
				color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(),
					"⚠️ stopped at instruction %d, partial transcript in %s\n", res.Failed.Index+1, res.OutputPath)
				return fmt.Errorf("instruction %q failed: %w", res.Failed.Instruction, res.Failed.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file_path", "", "instruction file")
	cmd.Flags().StringVar(&configPath, "config_path", "", "engine configuration file (yaml, json or toml)")
	cmd.Flags().BoolVar(&debug, "debug", false, "verbose development logging")
	_ = cmd.MarkFlagRequired("file_path")
	_ = cmd.MarkFlagRequired("config_path")
	return cmd
}
