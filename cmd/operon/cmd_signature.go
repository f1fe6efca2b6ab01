package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qasimio/Operon/internal/diff"
	"github.com/qasimio/Operon/internal/safety"
	"github.com/qasimio/Operon/internal/world"
)

var signatureApply bool

var signatureCmd = &cobra.Command{
	Use:   "signature <func> <params>",
	Short: "Change a function's parameter list and update its call sites",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fn, newParams := args[0], args[1]
		g, err := loadGraph()
		if err != nil {
			return err
		}

		defs := g.FindDefinitions(fn)
		if len(defs) == 0 {
			fmt.Fprintf(os.Stderr, "no definition found for %q\n", fn)
			os.Exit(3)
		}
		def := defs[0]
		abs := filepath.Join(repoRoot, def.File)

		data, err := os.ReadFile(abs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", def.File, err)
			os.Exit(3)
		}
		content := string(data)

		patched, ok := rewriteParamList(content, fn, newParams)
		if !ok {
			fmt.Fprintf(os.Stderr, "could not locate parameter list for %q in %s\n", fn, def.File)
			os.Exit(3)
		}
		patches := map[string]string{def.File: patched}

		wantArgs := paramCount(newParams)
		callSites := map[string][]world.Usage{}
		for _, u := range g.FindUsages(fn) {
			if u.Kind != world.UsageCall {
				continue
			}
			callSites[u.File] = append(callSites[u.File], u)
		}
		var callFiles []string
		for f := range callSites {
			callFiles = append(callFiles, f)
		}
		sort.Strings(callFiles)

		touched, touchedFiles := 0, 0
		for _, f := range callFiles {
			touchedBefore := touched
			fileContent := patched
			if f != def.File {
				raw, err := os.ReadFile(filepath.Join(repoRoot, f))
				if err != nil {
					fmt.Fprintf(os.Stderr, "read %s: %v\n", f, err)
					os.Exit(3)
				}
				fileContent = string(raw)
			}
			lines := strings.Split(fileContent, "\n")
			for _, u := range callSites[f] {
				if u.Line < 1 || u.Line > len(lines) {
					fmt.Fprintf(os.Stderr, "%s:%d: recorded call site is past the end of the file\n", f, u.Line)
					continue
				}
				oldLine := lines[u.Line-1]
				newLine, ok := rewriteCallArgs(oldLine, fn, wantArgs)
				if !ok {
					fmt.Fprintf(os.Stderr, "%s:%d: recorded call site no longer matches a call to %s\n", f, u.Line, fn)
					continue
				}
				if newLine == oldLine {
					continue
				}
				result := diff.Apply(fileContent, diff.Block{Search: oldLine, Replace: newLine})
				if result.Reason != diff.ReasonOK {
					fmt.Fprintf(os.Stderr, "%s:%d: could not update call site (%s)\n", f, u.Line, result.Reason)
					continue
				}
				fileContent = result.Patched
				lines = strings.Split(fileContent, "\n")
				touched++
			}
			if touched > touchedBefore {
				touchedFiles++
			}
			patches[f] = fileContent
		}

		fmt.Printf("%s: new signature (%s)\n", def.File, newParams)
		if touched > 0 {
			fmt.Printf("%d call site(s) updated across %d file(s)\n", touched, touchedFiles)
		}
		if !signatureApply {
			fmt.Println("(dry run) re-run with --apply to write")
			return nil
		}

		var files []string
		for f := range patches {
			files = append(files, f)
		}
		sort.Strings(files)

		tx := safety.NewFileTransaction()
		for _, f := range files {
			target := filepath.Join(repoRoot, f)
			if err := tx.Stage(target); err != nil {
				tx.Rollback()
				fmt.Fprintf(os.Stderr, "stage %s: %v\n", f, err)
				os.Exit(3)
			}
			if err := os.WriteFile(target+".tmp", []byte(patches[f]), 0644); err != nil {
				tx.Rollback()
				fmt.Fprintf(os.Stderr, "write %s: %v\n", f, err)
				os.Exit(3)
			}
			if err := os.Rename(target+".tmp", target); err != nil {
				tx.Rollback()
				fmt.Fprintf(os.Stderr, "rename %s: %v\n", f, err)
				os.Exit(3)
			}
		}
		tx.Commit()
		fmt.Println("signature updated")
		return nil
	},
}

func init() {
	signatureCmd.Flags().BoolVar(&signatureApply, "apply", false, "write the new signature instead of a dry run")
	rootCmd.AddCommand(signatureCmd)
}

// rewriteParamList finds "func <fn>(<old params>)" and replaces the
// parenthesized parameter list with newParams, leaving everything else
// (receiver, return types, body) untouched.
func rewriteParamList(content, fn, newParams string) (string, bool) {
	marker := "func " + fn + "("
	idx := strings.Index(content, marker)
	if idx == -1 {
		// Method with a receiver: "func (r T) fn(".
		marker = ") " + fn + "("
		idx = strings.Index(content, marker)
		if idx == -1 {
			return "", false
		}
	}

	openParen := idx + len(marker) - 1
	depth := 0
	closeParen := -1
	for i := openParen; i < len(content); i++ {
		switch content[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closeParen = i
			}
		}
		if closeParen != -1 {
			break
		}
	}
	if closeParen == -1 {
		return "", false
	}

	return content[:openParen+1] + newParams + content[closeParen:], true
}

// splitArgs splits a parameter or argument list on top-level commas, treating
// nested parens/brackets/braces as opaque. An empty (all-whitespace) list
// yields nil.
func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	depth := 0
	start := 0
	var out []string
	for i, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func paramCount(params string) int {
	return len(splitArgs(params))
}

// rewriteCallArgs finds the first "fn(" call expression on line and adjusts
// its argument count to wantArgs: extra trailing arguments are dropped,
// missing ones are filled with a nil placeholder that compiles but must be
// reviewed by hand.
func rewriteCallArgs(line, fn string, wantArgs int) (string, bool) {
	idx := strings.Index(line, fn+"(")
	if idx == -1 {
		return line, false
	}
	open := idx + len(fn)
	depth := 0
	closeParen := -1
	for i := open; i < len(line); i++ {
		switch line[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closeParen = i
			}
		}
		if closeParen != -1 {
			break
		}
	}
	if closeParen == -1 {
		return line, false
	}

	args := splitArgs(line[open+1 : closeParen])
	if len(args) > wantArgs {
		args = args[:wantArgs]
	}
	for len(args) < wantArgs {
		args = append(args, "nil")
	}

	return line[:open+1] + strings.Join(args, ", ") + line[closeParen:], true
}
