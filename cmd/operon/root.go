package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "operon",
	Short: "A local code-intelligence agent for guarded, reviewable edits",
	Long: `operon builds a persistent symbol graph of a repository and drives a
phased (planner / coder / reviewer) state machine that proposes, verifies,
and applies surgical code edits under mandatory human approval.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoRoot, "repo", "", "repository root (default: current directory)")
}
