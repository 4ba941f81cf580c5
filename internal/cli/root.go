package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valentindosimont/keyquery/internal/app"
)

var Version = "dev"

func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "keyquery",
		Short: "Look up an API token's balance and usage records",
		Long: "keyquery checks an API access token against a usage-metering gateway and shows its\n" +
			"spending limit, remaining balance, expiry and per-call usage records.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/keyquery/config.yaml)")

	root.AddCommand(
		newQueryCmd(&configPath),
		newHistoryCmd(&configPath),
	)

	root.Version = Version
	root.SetVersionTemplate(fmt.Sprintf("keyquery %s\n", Version))

	return root
}

func openApp(configPath string) (*app.App, error) {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
