package parser

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strings"

	"aether/internal/symbol"
)

// GoParser extracts symbols from Go source using the standard library's
// go/ast, the correct tool for this one language in the registry — every
// other language lacks an in-tree AST and falls back to tree-sitter.
type GoParser struct{}

// NewGoParser returns a GoParser.
func NewGoParser() *GoParser { return &GoParser{} }

func (p *GoParser) Language() string { return "go" }

func (p *GoParser) SupportedExtensions() []string { return []string{".go"} }

func (p *GoParser) ModuleMarkers() []string { return []string{"go.mod"} }

// Parse extracts function, method, struct, and interface symbols plus call
// edges from one Go source file.
func (p *GoParser) Parse(path string, content []byte) (*ParseResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return &ParseResult{
			Errors: []ParseError{{Message: err.Error()}},
		}, nil
	}

	result := &ParseResult{}
	pkgName := file.Name.Name

	// typeDecls maps a bare type name to its SymbolID, so methods can link
	// to the struct/interface they're declared on.
	typeDecls := make(map[string]symbol.SymbolID)
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}
		for _, spec := range genDecl.Specs {
			typeSpec, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			kind := symbol.KindType
			if _, isIface := typeSpec.Type.(*ast.InterfaceType); isIface {
				kind = symbol.KindInterface
			}
			qname := pkgName + "." + typeSpec.Name.Name
			sig := renderNode(fset, typeSpec.Type)
			sym := symbol.Symbol{
				Language:             p.Language(),
				FilePath:             path,
				QualifiedName:        qname,
				Kind:                 kind,
				SignatureFingerprint: sig,
				StartByte:            int(fset.Position(decl.Pos()).Offset),
				EndByte:              int(fset.Position(decl.End()).Offset),
			}.WithID()
			typeDecls[typeSpec.Name.Name] = sym.ID
			result.Symbols = append(result.Symbols, sym)
		}
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			sym, edges := p.extractFunc(fset, d, pkgName, path, typeDecls)
			result.Symbols = append(result.Symbols, sym)
			result.Edges = append(result.Edges, edges...)
			if strings.HasPrefix(d.Name.Name, "Test") && d.Recv == nil {
				result.TestIntents = append(result.TestIntents, p.extractTestIntent(d, path, sym.ID))
			}
		case *ast.GenDecl:
			if d.Tok != token.CONST && d.Tok != token.VAR {
				continue
			}
			for _, spec := range d.Specs {
				valueSpec, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				kind := symbol.KindModuleVar
				for _, name := range valueSpec.Names {
					if name.Name == "_" {
						continue
					}
					qname := pkgName + "." + name.Name
					sig := renderNode(fset, valueSpec.Type)
					sym := symbol.Symbol{
						Language:             p.Language(),
						FilePath:             path,
						QualifiedName:        qname,
						Kind:                 kind,
						SignatureFingerprint: sig,
						StartByte:            int(fset.Position(spec.Pos()).Offset),
						EndByte:              int(fset.Position(spec.End()).Offset),
					}.WithID()
					result.Symbols = append(result.Symbols, sym)
				}
			}
		}
	}

	return result, nil
}

func (p *GoParser) extractFunc(fset *token.FileSet, d *ast.FuncDecl, pkgName, path string, typeDecls map[string]symbol.SymbolID) (symbol.Symbol, []UnresolvedEdge) {
	kind := symbol.KindFunction
	qname := pkgName + "." + d.Name.Name
	var parentID *symbol.SymbolID

	if d.Recv != nil && len(d.Recv.List) > 0 {
		kind = symbol.KindMethod
		recvType := receiverTypeName(d.Recv.List[0].Type)
		qname = pkgName + "." + recvType + "." + d.Name.Name
		if id, ok := typeDecls[recvType]; ok {
			parentID = &id
		}
	}

	sig := fmt.Sprintf("func %s%s", receiverFragment(d.Recv), renderNode(fset, d.Type))
	sym := symbol.Symbol{
		Language:             p.Language(),
		FilePath:             path,
		QualifiedName:        qname,
		Kind:                 kind,
		SignatureFingerprint: sig,
		ParentID:             parentID,
		StartByte:            int(fset.Position(d.Pos()).Offset),
		EndByte:              int(fset.Position(d.End()).Offset),
	}.WithID()

	var edges []UnresolvedEdge
	if d.Body != nil {
		ast.Inspect(d.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			if name := callTargetName(call.Fun); name != "" {
				edges = append(edges, UnresolvedEdge{
					SourceID:            sym.ID,
					TargetQualifiedName: name,
					EdgeKind:            EdgeCalls,
					FilePath:            path,
				})
			}
			return true
		})
	}
	return sym, edges
}

func (p *GoParser) extractTestIntent(d *ast.FuncDecl, path string, symID symbol.SymbolID) TestIntent {
	intent := d.Name.Name
	if d.Doc != nil {
		intent = strings.TrimSpace(d.Doc.Text())
	}
	return TestIntent{
		FilePath:   path,
		TestName:   d.Name.Name,
		IntentText: intent,
		Language:   p.Language(),
		SymbolID:   &symID,
	}
}

func callTargetName(fun ast.Expr) string {
	switch f := fun.(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		if ident, ok := f.X.(*ast.Ident); ok {
			return ident.Name + "." + f.Sel.Name
		}
		return f.Sel.Name
	}
	return ""
}

func receiverTypeName(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

func receiverFragment(recv *ast.FieldList) string {
	if recv == nil || len(recv.List) == 0 {
		return ""
	}
	return "(recv) "
}

func renderNode(fset *token.FileSet, n ast.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, n); err != nil {
		return ""
	}
	return buf.String()
}
