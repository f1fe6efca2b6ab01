package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qasimio/Operon/internal/graph"
)

var incremental bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or refresh the symbol graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := graph.Load(repoRoot)
		if err != nil {
			return err
		}
		if err := g.Build(context.Background(), incremental); err != nil {
			return err
		}
		fmt.Printf("indexed %d files\n", len(g.TrackedPaths()))
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&incremental, "incremental", true, "skip re-extraction for unchanged files")
	rootCmd.AddCommand(buildCmd)
}

// loadGraph returns the persisted graph for repoRoot, building it only when
// no graph has been persisted yet; an existing graph is returned as stored,
// without checking it against the working tree.
func loadGraph() (*graph.Graph, error) {
	g, err := graph.Load(repoRoot)
	if err != nil {
		return nil, err
	}
	if len(g.TrackedPaths()) == 0 {
		if err := g.Build(context.Background(), true); err != nil {
			return nil, err
		}
	}
	return g, nil
}
