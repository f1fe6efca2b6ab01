package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Emit per-symbol summaries for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph()
		if err != nil {
			return err
		}

		symbols := g.SymbolsInFile(args[0])
		if len(symbols) == 0 {
			fmt.Fprintf(os.Stderr, "no symbols found in %s\n", args[0])
			return nil
		}

		for _, s := range symbols {
			fmt.Printf("%s %s (%d-%d)\n", s.Kind, s.Name, s.StartLine, s.EndLine)
			if s.Docstring != "" {
				fmt.Printf("  %s\n", s.Docstring)
			}
			if len(s.Signature) > 0 {
				fmt.Printf("  params: %v\n", s.Signature)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}
