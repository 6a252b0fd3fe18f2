// Command skitter is the cluster CLI: master|worker|deploy|local, matching
// SPEC_FULL.md §6's surface. It follows cmd/warren's cobra structure —
// a root command with persistent logging flags and one subcommand tree per
// concern — retargeted from Warren's cluster/service/secret/volume/ingress
// commands onto skitter's master/worker/deploy/local ones.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/skitter-project/skitter/pkg/log"
	"github.com/skitter-project/skitter/pkg/metrics"
)

// Version information, set via ldflags during build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	metrics.SetVersion(Version)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "skitter",
	Short: "skitter - a distributed reactive dataflow runtime",
	Long: `skitter deploys reactive dataflow workflows across a cluster of
masters and workers, connected by typed ports and governed by composable
strategies.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"skitter version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().Bool("no-log", false, "Discard all log output")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(masterCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(localCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	noLog, _ := rootCmd.PersistentFlags().GetBool("no-log")

	cfg := log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	}
	if noLog {
		cfg.Output = io.Discard
	}
	log.Init(cfg)
}
