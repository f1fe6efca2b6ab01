package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/qasimio/Operon/internal/safety"
)

var renameApply bool

var renameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Dry-run rename of a symbol across the repository; --apply writes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		old, new := args[0], args[1]
		g, err := loadGraph()
		if err != nil {
			return err
		}

		sites := g.Query(old)
		if len(sites) == 0 {
			fmt.Fprintf(os.Stderr, "no occurrences of %q found\n", old)
			os.Exit(3)
		}

		byFile := make(map[string][]int)
		for _, u := range sites {
			byFile[u.File] = append(byFile[u.File], u.Line)
		}

		tx := safety.NewFileTransaction()
		var changed int
		for file, lines := range byFile {
			abs := filepath.Join(repoRoot, file)
			data, err := os.ReadFile(abs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "read %s: %v\n", file, err)
				os.Exit(3)
			}
			content := string(data)
			patched := replaceIdentEverywhere(content, old, new)
			if patched == content {
				continue
			}
			changed++
			fmt.Printf("%s: %d occurrence(s)\n", file, len(lines))

			if renameApply {
				if err := tx.Stage(abs); err != nil {
					fmt.Fprintf(os.Stderr, "stage %s: %v\n", file, err)
					os.Exit(3)
				}
				if err := os.WriteFile(abs+".tmp", []byte(patched), 0644); err != nil {
					tx.Rollback()
					fmt.Fprintf(os.Stderr, "write %s: %v\n", file, err)
					os.Exit(3)
				}
				if err := os.Rename(abs+".tmp", abs); err != nil {
					tx.Rollback()
					fmt.Fprintf(os.Stderr, "rename %s: %v\n", file, err)
					os.Exit(3)
				}
			}
		}

		if renameApply {
			tx.Commit()
			fmt.Printf("renamed %q to %q across %d file(s)\n", old, new, changed)
		} else {
			fmt.Printf("(dry run) would rename %q to %q across %d file(s); re-run with --apply\n", old, new, changed)
		}
		return nil
	},
}

func init() {
	renameCmd.Flags().BoolVar(&renameApply, "apply", false, "write the rename instead of a dry run")
	rootCmd.AddCommand(renameCmd)
}

// replaceIdentEverywhere replaces whole-identifier occurrences of old with
// new, leaving substring matches inside longer identifiers untouched.
func replaceIdentEverywhere(content, old, new string) string {
	isIdentRune := func(r rune) bool {
		return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
	}

	var out []byte
	runes := []rune(content)
	i := 0
	for i < len(runes) {
		matched := false
		if i+len(old) <= len(runes) && string(runes[i:i+len(old)]) == old {
			before := i == 0 || !isIdentRune(runes[i-1])
			afterIdx := i + len(old)
			after := afterIdx == len(runes) || !isIdentRune(runes[afterIdx])
			if before && after {
				out = append(out, []byte(new)...)
				i += len(old)
				matched = true
			}
		}
		if !matched {
			out = append(out, []byte(string(runes[i]))...)
			i++
		}
	}
	return string(out)
}
