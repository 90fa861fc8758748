package main

import (
	"fmt"
	"os"

	"github.com/cuemby/nodeflow/pkg/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect a pipeline's NodeGraph without running it",
}

var graphDotCmd = &cobra.Command{
	Use:   "dot",
	Short: "Write a Graphviz dot rendering of the NodeGraph",
	RunE:  runGraphDot,
}

var graphListOutputsCmd = &cobra.Command{
	Use:   "list-outputs",
	Short: "Print every declared output file path, one per line",
	RunE:  runGraphListOutputs,
}

var graphListExecutablesCmd = &cobra.Command{
	Use:   "list-executables",
	Short: "Print every required executable and its version predicates",
	RunE:  runGraphListExecutables,
}

func init() {
	for _, c := range []*cobra.Command{graphDotCmd, graphListOutputsCmd, graphListExecutablesCmd} {
		c.Flags().StringP("file", "f", "", "pipeline task file (required)")
		_ = c.MarkFlagRequired("file")
	}
	graphDotCmd.Flags().StringP("output", "o", "", "write to this path instead of stdout")

	graphCmd.AddCommand(graphDotCmd)
	graphCmd.AddCommand(graphListOutputsCmd)
	graphCmd.AddCommand(graphListExecutablesCmd)
}

func loadGraphForInspection(cmd *cobra.Command) (*graph.NodeGraph, error) {
	file, _ := cmd.Flags().GetString("file")
	return loadPipeline(file)
}

func runGraphDot(cmd *cobra.Command, args []string) error {
	g, err := loadGraphForInspection(cmd)
	if err != nil {
		return err
	}

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		return g.WriteDot(f)
	}
	return g.WriteDot(out)
}

func runGraphListOutputs(cmd *cobra.Command, args []string) error {
	g, err := loadGraphForInspection(cmd)
	if err != nil {
		return err
	}
	for _, path := range g.ListOutputs() {
		fmt.Println(path)
	}
	return nil
}

func runGraphListExecutables(cmd *cobra.Command, args []string) error {
	g, err := loadGraphForInspection(cmd)
	if err != nil {
		return err
	}
	fmt.Printf("%-40s %s\n", "Executable", "Required version")
	for _, req := range g.ListExecutables() {
		if len(req.Predicates) == 0 {
			fmt.Println(req.Name)
			continue
		}
		for _, p := range req.Predicates {
			fmt.Printf("%-40s %s\n", req.Name, p)
		}
	}
	return nil
}
