package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cuemby/nodeflow/pkg/history"
	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/cuemby/nodeflow/pkg/manager"
	"github.com/cuemby/nodeflow/pkg/metrics"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline to completion",
	Long: `Run builds a NodeGraph from a declarative task file and drives it to
completion, dispatching runnable work to a local worker and to any
discovered or statically configured remote workers.

A first Ctrl-C stops new dispatch and waits for tasks already running to
finish; a second Ctrl-C kills the process immediately.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "pipeline task file (required)")
	runCmd.Flags().Int("threads", runtime.NumCPU(), "local worker thread budget")
	runCmd.Flags().String("history-dir", "", "directory for the run-history audit store (disabled if unset)")
	runCmd.Flags().String("metrics-addr", "", "address to serve /metrics and /health on (disabled if unset)")
	_ = runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := log.WithComponent("cli")

	file, _ := cmd.Flags().GetString("file")
	threads, _ := cmd.Flags().GetInt("threads")
	tempRoot, _ := cmd.Flags().GetString("temp-root")
	discoveryDir, _ := cmd.Flags().GetString("discovery-dir")
	historyDir, _ := cmd.Flags().GetString("history-dir")

	g, err := loadPipeline(file)
	if err != nil {
		return err
	}

	staticWorkers, err := loadStaticWorkers(cmd)
	if err != nil {
		return err
	}

	var store *history.Store
	if historyDir != "" {
		store, err = history.Open(historyDir)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
	}

	mgr, err := manager.New(manager.Config{
		Threads:       threads,
		TempRoot:      tempRoot,
		DiscoveryDir:  discoveryDir,
		StaticWorkers: staticWorkers,
		History:       store,
	})
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}
	if err := mgr.Start(); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}
	defer mgr.Shutdown()

	if runID := mgr.RunID(); runID != "" {
		logger = log.WithRunID(runID)
	}

	if metricsAddr, _ := cmd.Flags().GetString("metrics-addr"); metricsAddr != "" {
		collector := metrics.NewCollector(g, mgr)
		collector.Start()
		defer collector.Stop()

		metrics.RegisterComponent("manager", true, "running")
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", metrics.HealthHandler())
		mux.HandleFunc("/ready", metrics.ReadyHandler())
		mux.HandleFunc("/live", metrics.LivenessHandler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server stopped unexpectedly")
			}
		}()
		defer srv.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Error().Msg("keyboard interrupt detected, waiting for current tasks to complete... press Ctrl-C again to force termination")
		cancel()
		signal.Stop(sigCh)
		signal.Reset(os.Interrupt, syscall.SIGTERM)
	}()

	if err := mgr.RunUntilDone(ctx, g); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Println("pipeline complete")
	return nil
}
