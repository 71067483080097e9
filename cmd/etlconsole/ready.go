package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/etlconsole/pkg/chat"
	"github.com/spf13/cobra"
)

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Wait until the query engine is ready",
	Long: `Poll the backend until the query engine is ready to answer questions.

Exits with an error when the backend reports that no data has been loaded
yet. Run "etlconsole etl run" first in that case.`,
	Args: cobra.NoArgs,
	RunE: runReady,
}

func runReady(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	return chat.NewController(a.client, a.console, a.poller, a.broker).WarmUp(ctx)
}

// warmUp gates a chat controller on readiness
func warmUp(ctx context.Context, a *app) (*chat.Controller, error) {
	ctl := chat.NewController(a.client, a.console, a.poller, a.broker)
	if err := ctl.WarmUp(ctx); err != nil {
		return nil, err
	}
	return ctl, nil
}
