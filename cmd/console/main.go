// console is a manual REPL: page.* code typed on stdin runs in the sandbox
// against a visible browser.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

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
		configPath string
		startURL   string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:          "console",
		Short:        "🎮 Type page.* code and watch the browser run it",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := application.Init(configPath, debug)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.RunConsole(ctx, startURL)
		},
	}

	cmd.Flags().StringVar(&configPath, "config_path", "", "engine configuration file (yaml, json or toml)")
	cmd.Flags().StringVar(&startURL, "url", "", "page to open first")
	cmd.Flags().BoolVar(&debug, "debug", false, "verbose development logging")
	_ = cmd.MarkFlagRequired("config_path")
	return cmd
}
