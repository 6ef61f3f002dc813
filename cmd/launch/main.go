// launch serves the interactive display surface for an instruction file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"browser-pilot/internal/application"
)

const (
	defaultHost = "localhost"
	defaultPort = 7860
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
		host       string
		port       int
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "🌊 Drive a browser interactively from a web page",
		Long: `Starts a browser and a local web page where instructions are typed one at a
time. Generated code streams in as it is produced, can be edited and re-run,
and the screenshot refreshes after every execution.`,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := application.Init(configPath, debug)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.RunLaunch(ctx, filePath, host, port)
		},
	}

	cmd.Flags().StringVar(&filePath, "file_path", "", "instruction file")
	cmd.Flags().StringVar(&configPath, "config_path", "", "engine configuration file (yaml, json or toml)")
	cmd.Flags().StringVar(&host, "server_host", defaultHost, "interface the web page listens on")
	cmd.Flags().IntVar(&port, "server_port", defaultPort, "port of the web page")
	cmd.Flags().BoolVar(&debug, "debug", false, "verbose development logging")
	_ = cmd.MarkFlagRequired("file_path")
	_ = cmd.MarkFlagRequired("config_path")
	return cmd
}
