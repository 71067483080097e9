package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// REPL commands
const (
	cmdNewReport = "/new"
	cmdQuit      = "/quit"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question session",
	Long: `Start an interactive session with the query engine.

Type a question and press Enter. "/new" starts a new report and "/quit"
(or Ctrl+D) leaves the session.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	ctl, err := warmUp(ctx, a)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(out, "? ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok = <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
		}

		switch strings.TrimSpace(line) {
		case cmdQuit:
			return nil
		case cmdNewReport:
			ctl.Reset()
			continue
		}

		// Errors are already rendered in the transcript
		_, _ = ctl.Ask(ctx, line)
	}
}
