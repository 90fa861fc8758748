// Command nodeflow drives the dependency-graph pipeline scheduler: it
// builds a NodeGraph from a declarative task file, runs it to completion
// against a pool of local and remote workers, and exposes the
// introspection and audit tooling built up around that core.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/nodeflow/pkg/discovery"
	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build).
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nodeflow",
	Short: "nodeflow runs dependency-graph pipelines across local and remote workers",
	Long: `nodeflow is a dependency-graph execution engine: it turns a set of
tasks and their dependencies into a NodeGraph, classifies every node as
done, outdated, or runnable against the filesystem, and dispatches
runnable work to local subprocess workers or authenticated remote
worker daemons until the graph is fully done or a node fails.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"nodeflow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("temp-root", defaultTempRoot(), "Scratch directory for dispatched nodes")
	rootCmd.PersistentFlags().String("discovery-dir", "", "Auto-discovery directory scanned for worker advertisements")
	rootCmd.PersistentFlags().String("workers-file", "", "YAML file of statically configured remote workers")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(janitorCmd)
}

func defaultTempRoot() string {
	return filepath.Join(os.TempDir(), "nodeflow")
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadStaticWorkers reads --workers-file if set, returning an empty slice
// otherwise.
func loadStaticWorkers(cmd *cobra.Command) ([]discovery.StaticWorker, error) {
	path, _ := cmd.Flags().GetString("workers-file")
	if path == "" {
		return nil, nil
	}
	return discovery.LoadWorkersFile(path)
}
