package world

import (
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"
)

// GoExtractor is the primary-language extractor: it uses the standard
// go/ast package for an authoritative syntax tree instead of a best-effort
// tokenizer.
type GoExtractor struct{}

// NewGoExtractor constructs the Go extractor.
func NewGoExtractor() *GoExtractor {
	return &GoExtractor{}
}

// Language returns "go".
func (g *GoExtractor) Language() string { return "go" }

// CheckSyntax parses content and reports the first syntax error, if any.
func (g *GoExtractor) CheckSyntax(content []byte) SyntaxResult {
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, "", content, parser.AllErrors)
	if err == nil {
		return SyntaxResult{OK: true}
	}
	if errList, ok := err.(scanner.ErrorList); ok && len(errList) > 0 {
		first := errList[0]
		return SyntaxResult{OK: false, Line: first.Pos.Line, Column: first.Pos.Column, Message: first.Msg}
	}
	return SyntaxResult{OK: false, Message: err.Error()}
}

// Parse extracts Symbol records from Go source using go/ast.
func (g *GoExtractor) Parse(path string, content []byte) ([]Symbol, *ParseError) {
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, &ParseError{Message: err.Error()}
	}

	lines := strings.Split(string(content), "\n")
	var symbols []Symbol

	// First pass: record the file's declared type names. Methods take their
	// Parent from the receiver expression alone; this set is not consulted.
	typeNames := map[string]bool{}
	for _, decl := range node.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.TYPE {
			for _, spec := range gd.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					typeNames[ts.Name.Name] = true
				}
			}
		}
	}

	for _, decl := range node.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			symbols = append(symbols, g.parseFunc(fset, d, path, lines))
		case *ast.GenDecl:
			symbols = append(symbols, g.parseGenDecl(fset, d, path, lines)...)
		}
	}
	return symbols, nil
}

func (g *GoExtractor) parseFunc(fset *token.FileSet, d *ast.FuncDecl, path string, lines []string) Symbol {
	name := d.Name.Name
	start := fset.Position(d.Pos()).Line
	end := fset.Position(d.End()).Line

	sym := Symbol{
		Kind:       KindFunction,
		Name:       name,
		File:       path,
		StartLine:  start,
		EndLine:    end,
		IsExported: ast.IsExported(name),
		Docstring:  docstringAbove(lines, start),
	}

	if d.Recv != nil && len(d.Recv.List) > 0 {
		recvType, _ := receiverTypeName(d.Recv.List[0].Type)
		sym.Parent = recvType
	}
	if d.Type.Params != nil {
		for _, field := range d.Type.Params.List {
			if len(field.Names) == 0 {
				sym.Signature = append(sym.Signature, "_")
				continue
			}
			for _, n := range field.Names {
				sym.Signature = append(sym.Signature, n.Name)
			}
		}
	}
	return sym
}

func (g *GoExtractor) parseGenDecl(fset *token.FileSet, d *ast.GenDecl, path string, lines []string) []Symbol {
	var out []Symbol
	switch d.Tok {
	case token.IMPORT:
		for _, spec := range d.Specs {
			is, ok := spec.(*ast.ImportSpec)
			if !ok {
				continue
			}
			name := strings.Trim(is.Path.Value, `"`)
			line := fset.Position(is.Pos()).Line
			out = append(out, Symbol{
				Kind:      KindImport,
				Name:      name,
				File:      path,
				StartLine: line,
				EndLine:   line,
			})
		}
	case token.TYPE:
		for _, spec := range d.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			start := fset.Position(ts.Pos()).Line
			end := fset.Position(ts.End()).Line
			out = append(out, Symbol{
				Kind:       KindClass,
				Name:       ts.Name.Name,
				File:       path,
				StartLine:  start,
				EndLine:    end,
				IsExported: ast.IsExported(ts.Name.Name),
				Docstring:  docstringAbove(lines, start),
			})
		}
	case token.CONST, token.VAR:
		kind := KindVariable
		if d.Tok == token.CONST {
			kind = KindAssignment
		}
		for _, spec := range d.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			line := fset.Position(vs.Pos()).Line
			for _, n := range vs.Names {
				out = append(out, Symbol{
					Kind:       kind,
					Name:       n.Name,
					File:       path,
					StartLine:  line,
					EndLine:    line,
					IsExported: ast.IsExported(n.Name),
				})
			}
		}
	}
	return out
}

func receiverTypeName(expr ast.Expr) (string, bool) {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name, false
	case *ast.StarExpr:
		name, _ := receiverTypeName(t.X)
		return name, true
	}
	return "", false
}

// docstringAbove collects a contiguous run of "//" comment lines
// immediately preceding startLine, teacher-style (the signature line itself
// is excluded).
func docstringAbove(lines []string, startLine int) string {
	if startLine < 2 || startLine > len(lines)+1 {
		return ""
	}
	var collected []string
	for i := startLine - 2; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "//") {
			break
		}
		collected = append([]string{strings.TrimSpace(strings.TrimPrefix(trimmed, "//"))}, collected...)
	}
	return strings.Join(collected, "\n")
}
