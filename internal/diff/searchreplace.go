package diff

import (
	"fmt"
	"regexp"
	"strings"
)

// Reason classifies the outcome of applying a single SEARCH/REPLACE block.
type Reason string

const (
	ReasonOK        Reason = "ok"
	ReasonNoop      Reason = "noop"
	ReasonAppended  Reason = "appended"
	ReasonNoMatch   Reason = "no_match"
	ReasonAmbiguous Reason = "ambiguous"
)

// Block is a single parsed SEARCH/REPLACE pair.
type Block struct {
	Search  string
	Replace string
}

var blockRe = regexp.MustCompile(`(?s)<<<<<<< SEARCH\r?\n(.*?)=======\r?\n(.*?)>>>>>>> REPLACE`)

// ParsePayload recognizes one or more fenced SEARCH/REPLACE triplets in an
// oracle response, in the order they appear.
func ParsePayload(payload string) []Block {
	matches := blockRe.FindAllStringSubmatch(payload, -1)
	blocks := make([]Block, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, Block{Search: trimTrailingNewline(m[1]), Replace: trimTrailingNewline(m[2])})
	}
	return blocks
}

func trimTrailingNewline(s string) string {
	return strings.TrimSuffix(s, "\n")
}

// Result is the outcome of applying one Block to original text.
type Result struct {
	Patched string
	Reason  Reason
}

// Apply splices Block.Replace in place of Block.Search within original,
// using the algorithm from the spec: an empty SEARCH inserts REPLACE at the
// top of the file (reported as ReasonAppended); otherwise a
// whitespace-tolerant contiguous-line-range match is located, REPLACE is
// re-indented to match, and the result is classified ok/noop/no_match/
// ambiguous.
func Apply(original string, b Block) Result {
	if strings.TrimSpace(b.Search) == "" {
		patched := b.Replace
		if patched != "" && !strings.HasSuffix(patched, "\n") {
			patched += "\n"
		}
		patched += original
		return Result{Patched: patched, Reason: ReasonAppended}
	}

	origLines := splitLines(original)
	searchLines := splitLines(b.Search)

	matches := findMatches(origLines, searchLines, false)
	if len(matches) == 0 {
		matches = findMatches(origLines, searchLines, true)
	}

	switch len(matches) {
	case 0:
		return Result{Reason: ReasonNoMatch}
	case 1:
		start := matches[0]
		end := start + len(searchLines)
		indent := leadingWhitespace(origLines[start])
		replaceLines := reindent(splitLines(b.Replace), indent)

		newLines := make([]string, 0, len(origLines)-len(searchLines)+len(replaceLines))
		newLines = append(newLines, origLines[:start]...)
		newLines = append(newLines, replaceLines...)
		newLines = append(newLines, origLines[end:]...)

		patched := strings.Join(newLines, "\n")
		if patched == original {
			return Result{Patched: patched, Reason: ReasonNoop}
		}
		return Result{Patched: patched, Reason: ReasonOK}
	default:
		return Result{Reason: ReasonAmbiguous}
	}
}

func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

// findMatches finds every start index in origLines at which searchLines
// occurs contiguously. Trailing whitespace is always stripped from both sides
// before comparing; when tolerant is true, leading whitespace is stripped as
// well, so lines that differ only in indentation match.
func findMatches(origLines, searchLines []string, tolerant bool) []int {
	if len(searchLines) == 0 || len(searchLines) > len(origLines) {
		return nil
	}
	var matches []int
	for i := 0; i+len(searchLines) <= len(origLines); i++ {
		if rangeMatches(origLines[i:i+len(searchLines)], searchLines, tolerant) {
			matches = append(matches, i)
		}
	}
	return matches
}

func rangeMatches(window, search []string, tolerant bool) bool {
	for i := range search {
		a := strings.TrimRight(window[i], " \t\r")
		b := strings.TrimRight(search[i], " \t\r")
		if tolerant {
			a = strings.TrimSpace(a)
			b = strings.TrimSpace(b)
		}
		if a != b {
			return false
		}
	}
	return true
}

func leadingWhitespace(line string) string {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[:i]
}

// reindent re-indents replaceLines by prefixing indent to each non-empty
// line, additively: the replacement's own minimum leading whitespace is
// measured and subtracted first so its relative (internal) indentation is
// preserved.
func reindent(replaceLines []string, indent string) []string {
	if len(replaceLines) == 0 {
		return replaceLines
	}
	min := -1
	for _, l := range replaceLines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		w := len(leadingWhitespace(l))
		if min == -1 || w < min {
			min = w
		}
	}
	if min == -1 {
		min = 0
	}

	out := make([]string, len(replaceLines))
	for i, l := range replaceLines {
		if strings.TrimSpace(l) == "" {
			out[i] = l
			continue
		}
		stripped := l
		if len(l) >= min {
			stripped = l[min:]
		}
		out[i] = indent + stripped
	}
	return out
}

// ApplyPayload applies every block in a multi-block payload left to right
// against successive intermediate results, stopping at the first block that
// fails to apply cleanly (no_match/ambiguous).
func ApplyPayload(original string, blocks []Block) (string, Reason, int) {
	current := original
	lastReason := ReasonNoop
	for i, b := range blocks {
		res := Apply(current, b)
		if res.Reason == ReasonNoMatch || res.Reason == ReasonAmbiguous {
			return current, res.Reason, i
		}
		current = res.Patched
		lastReason = res.Reason
	}
	return current, lastReason, len(blocks)
}

// InsertImport is a thin specialization of Apply: if the import line is
// absent it is inserted at the top of the file, expressed as a blank-SEARCH
// block.
func InsertImport(original, importLine string) Result {
	if strings.Contains(original, importLine) {
		return Result{Patched: original, Reason: ReasonNoop}
	}
	return Apply(original, Block{Search: "", Replace: importLine})
}

// InsertAbove splices newText immediately above the line at 1-based lineNum.
func InsertAbove(original string, lineNum int, newText string) Result {
	lines := splitLines(original)
	if lineNum < 1 || lineNum > len(lines)+1 {
		return Result{Reason: ReasonNoMatch}
	}
	target := ""
	if lineNum <= len(lines) {
		target = lines[lineNum-1]
	}
	return Apply(original, Block{Search: target, Replace: newText + "\n" + target})
}

// AppendToFile appends text to the end of original.
func AppendToFile(original, text string) Result {
	patched := original
	if patched != "" && !strings.HasSuffix(patched, "\n") {
		patched += "\n"
	}
	patched += text
	reason := ReasonOK
	if patched == original {
		reason = ReasonNoop
	}
	return Result{Patched: patched, Reason: reason}
}

// FormatBlock renders a Block back into the fenced payload form, used when
// re-prompting the oracle with a failed match for diagnostic display.
func FormatBlock(b Block) string {
	return fmt.Sprintf("<<<<<<< SEARCH\n%s\n=======\n%s\n>>>>>>> REPLACE", b.Search, b.Replace)
}
