package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/qasimio/Operon/internal/oracle"
)

var docsNoLLM bool

// docsRenderer renders oracle-authored Markdown summaries for terminal
// display; falls back to the raw string on any rendering error.
var docsRenderer, _ = glamour.NewTermRenderer(glamour.WithAutoStyle())

func render(markdown string) string {
	if docsRenderer == nil {
		return markdown
	}
	out, err := docsRenderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Emit a documentation tree, with oracle summaries when available",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph()
		if err != nil {
			return err
		}

		var o oracle.Oracle
		if !docsNoLLM {
			o = oracle.NewCoreOracle(repoRoot, noopTransport{})
		}

		paths := g.TrackedPaths()
		sort.Strings(paths)
		for _, p := range paths {
			symbols := g.SymbolsInFile(p)
			if len(symbols) == 0 {
				continue
			}
			fmt.Printf("%s\n", p)
			for _, s := range symbols {
				fmt.Printf("  %s %s  (%d-%d)\n", s.Kind, s.Name, s.StartLine, s.EndLine)
				if o != nil {
					summary, err := summarizeSymbol(o, p, s.Name, s.Docstring)
					if err == nil && summary != "" {
						fmt.Print(render("> " + summary + "\n"))
						continue
					}
				}
				if s.Docstring != "" {
					fmt.Print(render(s.Docstring + "\n"))
				}
			}
		}
		return nil
	},
}

func init() {
	docsCmd.Flags().BoolVar(&docsNoLLM, "no-llm", false, "skip oracle summaries, print docstrings only")
	rootCmd.AddCommand(docsCmd)
}

func summarizeSymbol(o oracle.Oracle, file, name, docstring string) (string, error) {
	prompt := fmt.Sprintf("summarize the purpose of %s in %s in one sentence. docstring: %s", name, file, docstring)
	return o.Call(context.Background(), prompt, false)
}

// noopTransport is the default oracle transport wired when no provider is
// configured: docs generation degrades gracefully to docstring-only output
// rather than failing the command.
type noopTransport struct{}

func (noopTransport) Send(ctx context.Context, cfg oracle.Config, prompt string) (string, error) {
	return "", fmt.Errorf("no oracle transport configured")
}
