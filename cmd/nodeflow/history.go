package main

import (
	"fmt"
	"time"

	"github.com/cuemby/nodeflow/pkg/graph"
	"github.com/cuemby/nodeflow/pkg/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the run-history audit store",
	Long: `History reads the append-only record of past pipeline invocations
written by "nodeflow run --history-dir". It is diagnostic only: nothing
here ever feeds back into NodeGraph construction.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every recorded run, oldest first",
	RunE:  runHistoryList,
}

func init() {
	historyCmd.PersistentFlags().String("history-dir", "", "directory holding the history store (required)")
	_ = historyCmd.MarkPersistentFlagRequired("history-dir")

	historyCmd.AddCommand(historyListCmd)
}

func openHistoryStore(cmd *cobra.Command) (*history.Store, error) {
	dir, _ := cmd.Flags().GetString("history-dir")
	return history.Open(dir)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, run := range runs {
		errored := 0
		for _, n := range run.Nodes {
			if n.Error != "" || n.State == graph.StateError.String() {
				errored++
			}
		}
		fmt.Printf("%s  duration=%s  nodes=%d  errors=%d\n",
			run.StartedAt.Format(time.RFC3339),
			run.EndedAt.Sub(run.StartedAt),
			len(run.Nodes),
			errored,
		)
	}
	return nil
}
