package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "rotinas",
		Short:         "Reminders and routines with alarms, pending checks and cloud sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to CONFIG_PATH)")

	root.AddCommand(
		newServeCmd(&configPath),
		newSignInCmd(&configPath),
		newSignOutCmd(&configPath),
		newSyncCmd(&configPath),
		newAddCmd(&configPath),
		newListCmd(&configPath),
		newPendingCmd(&configPath),
	)
	return root
}
