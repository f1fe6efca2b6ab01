package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qasimio/Operon/internal/graph"
	"github.com/qasimio/Operon/internal/world"
)

var explainCmd = &cobra.Command{
	Use:   "explain <symbol>|<file>:<line>|flow <func>",
	Short: "Print a symbol's definition, signature, docstring, and callers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	g, err := loadGraph()
	if err != nil {
		return err
	}

	if args[0] == "flow" && len(args) == 2 {
		return explainFlow(g, args[1])
	}

	if file, line, ok := splitFileLine(args[0]); ok {
		return explainLocation(g, file, line)
	}

	return explainSymbol(g, args[0])
}

func splitFileLine(s string) (string, int, bool) {
	idx := strings.LastIndex(s, ":")
	if idx == -1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return s[:idx], n, true
}

func explainSymbol(g *graph.Graph, name string) error {
	defs := g.FindDefinitions(name)
	if len(defs) == 0 {
		fmt.Fprintf(os.Stderr, "no definition found for %q\n", name)
		os.Exit(2)
	}

	def := defs[0]
	symbols := g.SymbolsInFile(def.File)
	var sym *world.Symbol
	for i := range symbols {
		if symbols[i].Name == name {
			sym = &symbols[i]
			break
		}
	}
	if sym == nil {
		fmt.Fprintf(os.Stderr, "no definition found for %q\n", name)
		os.Exit(2)
	}

	fmt.Printf("%s  (%s)\n", sym.Name, sym.Kind)
	fmt.Printf("  %s:%d-%d\n", def.File, sym.StartLine, sym.EndLine)
	if len(sym.Signature) > 0 {
		fmt.Printf("  signature: (%s)\n", strings.Join(sym.Signature, ", "))
	}
	if sym.Docstring != "" {
		fmt.Printf("  docstring: %s\n", sym.Docstring)
	}

	callers := g.FindUsages(name)
	fmt.Printf("  callers: %d\n", len(callers))
	for _, u := range callers {
		fmt.Printf("    %s:%d (%s)\n", u.File, u.Line, u.Kind)
	}
	return nil
}

func explainLocation(g *graph.Graph, file string, line int) error {
	symbols := g.SymbolsInFile(file)
	var best *world.Symbol
	for i := range symbols {
		s := &symbols[i]
		if line >= s.StartLine && line <= s.EndLine {
			if best == nil || (s.EndLine-s.StartLine) < (best.EndLine-best.StartLine) {
				best = s
			}
		}
	}
	if best == nil {
		fmt.Fprintf(os.Stderr, "no enclosing symbol at %s:%d\n", file, line)
		os.Exit(2)
	}
	fmt.Printf("%s  (%s)  %s:%d-%d\n", best.Name, best.Kind, file, best.StartLine, best.EndLine)
	return nil
}

func explainFlow(g *graph.Graph, fn string) error {
	defs := g.FindDefinitions(fn)
	if len(defs) == 0 {
		fmt.Fprintf(os.Stderr, "no definition found for %q\n", fn)
		os.Exit(2)
	}
	def := defs[0]
	symbols := g.SymbolsInFile(def.File)
	var target *world.Symbol
	for i := range symbols {
		if symbols[i].Name == fn {
			target = &symbols[i]
			break
		}
	}
	if target == nil {
		fmt.Fprintf(os.Stderr, "no definition found for %q\n", fn)
		os.Exit(2)
	}

	fmt.Printf("callees reachable from %s (%s:%d-%d):\n", fn, def.File, target.StartLine, target.EndLine)
	seen := map[string]bool{}
	var callees []string
	for _, u := range g.UsagesInFile(def.File) {
		if u.Kind != world.UsageCall {
			continue
		}
		if u.Line < target.StartLine || u.Line > target.EndLine {
			continue
		}
		if u.Symbol == fn || seen[u.Symbol] {
			continue
		}
		seen[u.Symbol] = true
		callees = append(callees, u.Symbol)
	}
	sort.Strings(callees)
	for _, name := range callees {
		fmt.Printf("  %s\n", name)
	}
	return nil
}
