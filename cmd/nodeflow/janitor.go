package main

import (
	"fmt"
	"time"

	"github.com/cuemby/nodeflow/pkg/janitor"
	"github.com/spf13/cobra"
)

var janitorCmd = &cobra.Command{
	Use:   "janitor",
	Short: "Sweep orphaned per-node temp directories",
}

var janitorSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove temp directories older than --min-age left by a crashed run",
	RunE:  runJanitorSweep,
}

func init() {
	janitorSweepCmd.Flags().Duration("min-age", 24*time.Hour, "minimum age before an orphaned directory is removed")
	janitorCmd.AddCommand(janitorSweepCmd)
}

func runJanitorSweep(cmd *cobra.Command, args []string) error {
	tempRoot, _ := cmd.Flags().GetString("temp-root")
	minAge, _ := cmd.Flags().GetDuration("min-age")

	j := janitor.New(tempRoot)
	result, err := j.Sweep(minAge)
	if err != nil {
		return err
	}

	for _, path := range result.Removed {
		fmt.Printf("removed %s\n", path)
	}
	fmt.Printf("%d removed, %d kept\n", len(result.Removed), len(result.Kept))
	return nil
}
