package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION...",
	Short: "Ask one question in natural language",
	Long: `Ask the query engine one question and print the generated SQL, the
summary and the result table.

Examples:
  # Ask a question
  etlconsole ask "total sales by region last month"

  # Save the Excel export as well
  etlconsole ask --download sales.xlsx "total sales by region"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringP("download", "d", "", "Save the Excel export to this file")
}

func runAsk(cmd *cobra.Command, args []string) error {
	download, _ := cmd.Flags().GetString("download")

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

	question := strings.Join(args, " ")
	result, err := ctl.Ask(ctx, question)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("question is empty")
	}

	if download == "" {
		return nil
	}
	if result.ExcelURL == "" {
		return fmt.Errorf("the answer has no Excel export")
	}

	n, err := saveDownload(ctx, a.client, result.ExcelURL, download)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s (%d bytes)\n", download, n)
	return nil
}

type downloader interface {
	Download(ctx context.Context, path string, w io.Writer) (int64, error)
}

// saveDownload writes the resource at link to dest. The data goes to a
// temporary file next to dest that is renamed only once the download is
// complete, so a failure never leaves a truncated export behind.
func saveDownload(ctx context.Context, d downloader, link, dest string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer os.Remove(tmp.Name())

	n, err := d.Download(ctx, link, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write %s: %w", dest, cerr)
	}
	if err != nil {
		return 0, err
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("failed to save %s: %w", dest, err)
	}
	return n, nil
}
