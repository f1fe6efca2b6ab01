package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/qasimio/Operon/internal/graph"
	"github.com/qasimio/Operon/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the repository and keep the symbol graph incrementally up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := graph.Load(repoRoot)
		if err != nil {
			return err
		}
		if err := g.Build(context.Background(), true); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		w := watch.New(g, repoRoot)
		fmt.Printf("watching %s (ctrl-c to stop)\n", repoRoot)
		return w.Run(ctx, func(err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
				return
			}
			fmt.Printf("rebuilt: %d files tracked\n", len(g.TrackedPaths()))
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
