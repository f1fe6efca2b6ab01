package world

import (
	"regexp"
	"strings"
)

// RegexExtractor is the best-effort extractor used for every language other
// than the primary one. It recognizes function/class/import-like shapes via
// a small per-pattern table and never reports a syntax error: "looks ok" is
// the only contract a regex scanner can honestly make.
type RegexExtractor struct {
	language string
}

// NewRegexExtractor returns a regex extractor tagged with language. The tag
// is only reported by Language: every pattern in the table below is tried
// whatever the tag.
func NewRegexExtractor(language string) *RegexExtractor {
	return &RegexExtractor{language: language}
}

func (r *RegexExtractor) Language() string { return r.language }

func (r *RegexExtractor) CheckSyntax(content []byte) SyntaxResult {
	return SyntaxResult{OK: true}
}

var (
	pyFuncRe    = regexp.MustCompile(`^(\s*)def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	pyClassRe   = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_][A-Za-z0-9_]*)`)
	pyImportRe  = regexp.MustCompile(`^\s*(?:import|from)\s+([A-Za-z0-9_.]+)`)
	pyDecoRe    = regexp.MustCompile(`^(\s*)@([A-Za-z_][A-Za-z0-9_.]*)`)
	jsFuncRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)
	jsClassRe   = regexp.MustCompile(`^\s*(?:export\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	jsImportRe  = regexp.MustCompile(`^\s*import\s+.*from\s+['"]([^'"]+)['"]`)
	rsFuncRe    = regexp.MustCompile(`^\s*(?:pub\s+)?(?:async\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	rsStructRe  = regexp.MustCompile(`^\s*(?:pub\s+)?struct\s+([A-Za-z_][A-Za-z0-9_]*)`)
	rsUseRe     = regexp.MustCompile(`^\s*use\s+([A-Za-z0-9_:]+)`)
)

// Parse scans content line by line for recognizable function/class/import
// shapes. An indentation-delimited block ends before the next non-blank line
// at the same or shallower indent; a brace-delimited block ends on the line
// where its braces balance; a block left open runs to end of file (a
// best-effort span, not an authoritative one).
func (r *RegexExtractor) Parse(path string, content []byte) ([]Symbol, *ParseError) {
	lines := strings.Split(string(content), "\n")
	var symbols []Symbol

	for i, line := range lines {
		lineNo := i + 1

		if m := pyImportRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{Kind: KindImport, Name: m[1], File: path, StartLine: lineNo, EndLine: lineNo})
			continue
		}
		if m := jsImportRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{Kind: KindImport, Name: m[1], File: path, StartLine: lineNo, EndLine: lineNo})
			continue
		}
		if m := rsUseRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{Kind: KindImport, Name: m[1], File: path, StartLine: lineNo, EndLine: lineNo})
			continue
		}
		if m := pyDecoRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{Kind: KindDecorator, Name: m[2], File: path, StartLine: lineNo, EndLine: lineNo})
			continue
		}

		if m := pyFuncRe.FindStringSubmatch(line); m != nil {
			end := closingLineByIndent(lines, i, len(m[1]))
			symbols = append(symbols, Symbol{Kind: KindFunction, Name: m[2], File: path, StartLine: lineNo, EndLine: end})
			continue
		}
		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			end := closingLineByIndent(lines, i, len(m[1]))
			symbols = append(symbols, Symbol{Kind: KindClass, Name: m[2], File: path, StartLine: lineNo, EndLine: end})
			continue
		}
		if m := jsFuncRe.FindStringSubmatch(line); m != nil {
			end := closingLineByBrace(lines, i)
			symbols = append(symbols, Symbol{
				Kind: KindFunction, Name: m[1], File: path, StartLine: lineNo, EndLine: end,
				IsAsync: strings.Contains(line, "async"),
			})
			continue
		}
		if m := jsClassRe.FindStringSubmatch(line); m != nil {
			end := closingLineByBrace(lines, i)
			symbols = append(symbols, Symbol{Kind: KindClass, Name: m[1], File: path, StartLine: lineNo, EndLine: end})
			continue
		}
		if m := rsFuncRe.FindStringSubmatch(line); m != nil {
			end := closingLineByBrace(lines, i)
			symbols = append(symbols, Symbol{
				Kind: KindFunction, Name: m[1], File: path, StartLine: lineNo, EndLine: end,
				IsAsync: strings.Contains(line, "async"),
			})
			continue
		}
		if m := rsStructRe.FindStringSubmatch(line); m != nil {
			end := closingLineByBrace(lines, i)
			symbols = append(symbols, Symbol{Kind: KindClass, Name: m[1], File: path, StartLine: lineNo, EndLine: end})
			continue
		}
	}
	return symbols, nil
}

// closingLineByIndent walks forward from an indentation-delimited block
// opener (Python-style) until a non-blank line at the same or shallower
// indent is found.
func closingLineByIndent(lines []string, openIdx, indent int) int {
	end := openIdx + 1
	for j := openIdx + 1; j < len(lines); j++ {
		trimmed := strings.TrimRight(lines[j], " \t\r")
		if trimmed == "" {
			end = j + 1
			continue
		}
		lineIndent := len(lines[j]) - len(strings.TrimLeft(lines[j], " \t"))
		if lineIndent <= indent {
			return j
		}
		end = j + 1
	}
	return end
}

// closingLineByBrace walks forward from a brace-delimited block opener
// counting braces to find the matching close.
func closingLineByBrace(lines []string, openIdx int) int {
	depth := 0
	seenOpen := false
	for j := openIdx; j < len(lines); j++ {
		for _, r := range lines[j] {
			switch r {
			case '{':
				depth++
				seenOpen = true
			case '}':
				depth--
			}
		}
		if seenOpen && depth <= 0 {
			return j + 1
		}
	}
	return len(lines)
}
