package main

import (
	"fmt"
	"os"

	"github.com/cuemby/etlconsole/pkg/config"
	"github.com/cuemby/etlconsole/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded before any subcommand runs
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "etlconsole",
	Short: "etlconsole - terminal console for the NL2SQL/ETL backend",
	Long: `etlconsole drives an NL2SQL/ETL backend from the terminal.

It waits for the query engine to be ready, asks questions in natural
language and shows the generated SQL, summary and result table, and
launches ETL jobs while following their progress live.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"etlconsole version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("env-file", "", "Env file with ETLCONSOLE_* overrides (default ./.env)")
	flags.String("server", "", "Backend base URL (default "+config.DefaultServerURL+")")
	flags.String("data-dir", "", "Directory for the local history database")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Log as JSON")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")

	// Add subcommands
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(etlCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig layers flags over the config file and environment
func loadConfig(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	loaded, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		loaded.ServerURL, _ = flags.GetString("server")
	}
	if flags.Changed("data-dir") {
		loaded.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("log-level") {
		loaded.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		loaded.LogJSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("metrics-addr") {
		loaded.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(loaded.LogLevel),
		JSONOutput: loaded.LogJSON,
	})
	cfg = loaded
	return nil
}
