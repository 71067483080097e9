package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cuemby/etlconsole/pkg/channel"
	"github.com/cuemby/etlconsole/pkg/job"
	"github.com/cuemby/etlconsole/pkg/types"
	"github.com/spf13/cobra"
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Run and inspect ETL jobs",
}

var etlRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch an ETL job and follow its progress",
	Long: `Launch an ETL job on the backend and follow its progress live.

The job keeps the console busy until it finishes: a first Ctrl+C only
prints a warning, a second one leaves (the job keeps running on the
backend).

Examples:
  # Use the backend's default window
  etlconsole etl run

  # Only process the last 7 days, without the confirmation prompt
  etlconsole etl run --window-days 7 --yes`,
	Args: cobra.NoArgs,
	RunE: runETL,
}

var etlHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List ETL jobs launched from this console",
	Args:  cobra.NoArgs,
	RunE:  runJobHistory,
}

func init() {
	etlCmd.AddCommand(etlRunCmd)
	etlCmd.AddCommand(etlHistoryCmd)

	etlRunCmd.Flags().Int("window-days", 0, "Days of data to process (default: backend decides)")
	etlRunCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}

// errJobFailed is returned when the backend aborts the job
var errJobFailed = errors.New("ETL job failed")

func runETL(cmd *cobra.Command, args []string) error {
	windowDays, err := windowFlag(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !confirm(cmd.InOrStdin(), out, job.ConfirmPrompt) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(out)
	if err != nil {
		return err
	}
	defer a.Close()

	conn, err := channel.Dial(ctx, a.client.BaseURL())
	if err != nil {
		return err
	}
	defer conn.Close()

	ctl := job.NewController(a.client, conn, a.console, a.broker, job.Config{
		JoinDelay:   cfg.JoinDelay,
		SettleDelay: cfg.SettleDelay,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go guardInterrupts(ctx, cancel, ctl.Guard(), a.console.Alert, sigCh)

	runErr := make(chan error, 1)
	go func() { runErr <- ctl.Run(ctx) }()

	started, err := ctl.Start(ctx, windowDays)
	if err != nil {
		return err
	}

	waitCtx, stopWait := context.WithCancel(ctx)
	defer stopWait()
	go func() {
		// A dropped channel leaves the job unobservable
		if err := <-runErr; errors.Is(err, job.ErrChannelClosed) && ctl.State().Active() {
			reason := "closed by the server"
			if cerr := conn.Err(); cerr != nil {
				reason = cerr.Error()
			}
			a.console.Alert("Lost the progress channel: " + reason)
			stopWait()
		}
	}()

	state, err := ctl.Wait(waitCtx)
	if err != nil {
		return fmt.Errorf("stopped following job %s (it keeps running on the backend): %w", started.ID, err)
	}
	if state == types.JobStateFailed {
		return errJobFailed
	}
	return nil
}

func windowFlag(cmd *cobra.Command) (*int, error) {
	if !cmd.Flags().Changed("window-days") {
		return nil, nil
	}
	days, _ := cmd.Flags().GetInt("window-days")
	if days <= 0 {
		return nil, fmt.Errorf("--window-days must be positive")
	}
	return &days, nil
}

// confirm asks a yes/no question, defaulting to no
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// guardInterrupts cancels on interrupt unless a job is in flight. While
// blocked the first interrupt only warns and the next one forces the exit.
// SIGTERM leaves at once. Leaving with a job in flight is announced
// through alert.
func guardInterrupts(ctx context.Context, cancel context.CancelFunc, guard *job.Guard, alert func(string), sigCh <-chan os.Signal) {
	warned := false
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if sig != syscall.SIGTERM && !warned && !guard.Intercept("exit") {
				warned = true
				continue
			}
			if guard.ConfirmLeave() && alert != nil {
				alert(job.LeaveWarning)
			}
			cancel()
			return
		}
	}
}
