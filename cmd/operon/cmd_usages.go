package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var usagesCmd = &cobra.Command{
	Use:   "usages <symbol>",
	Short: "Print all usage sites for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph()
		if err != nil {
			return err
		}
		sites := g.Query(args[0])
		if len(sites) == 0 {
			fmt.Fprintf(os.Stderr, "no usages found for %q\n", args[0])
			os.Exit(2)
		}
		for _, u := range sites {
			fmt.Printf("%s:%d (%s)\n", u.File, u.Line, u.Kind)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usagesCmd)
}
