package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"aether/internal/symbol"
)

var pythonCallNodes = map[string]bool{"call": true}

// PythonParser extracts symbols from Python source via tree-sitter, the
// tool the teacher itself reaches for once go/ast's single-language reach
// runs out.
type PythonParser struct {
	grammar *sitter.Parser
}

// NewPythonParser returns a PythonParser.
func NewPythonParser() *PythonParser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonParser{grammar: p}
}

func (p *PythonParser) Language() string { return "python" }

func (p *PythonParser) SupportedExtensions() []string { return []string{".py", ".pyw"} }

func (p *PythonParser) ModuleMarkers() []string { return []string{"__init__.py"} }

func (p *PythonParser) Parse(path string, content []byte) (*ParseResult, error) {
	tree, err := parseWithGrammar(p.grammar, content)
	if err != nil {
		return &ParseResult{Errors: []ParseError{{Message: err.Error()}}}, nil
	}
	defer tree.Close()

	result := &ParseResult{}
	classRefs := make(map[string]symbol.SymbolID)
	p.walk(tree.RootNode(), content, path, "", classRefs, result)
	return result, nil
}

func (p *PythonParser) walk(node *sitter.Node, content []byte, path, parentClass string, classRefs map[string]symbol.SymbolID, result *ParseResult) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_definition":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := string(content[nameNode.StartByte():nameNode.EndByte()])
			qname := name
			if parentClass != "" {
				qname = parentClass + "." + name
			}
			sym := symbolFromNode(child, content, p.Language(), path, qname, symbol.KindType, nil)
			result.Symbols = append(result.Symbols, sym)
			classRefs[qname] = sym.ID
			if body := child.ChildByFieldName("body"); body != nil {
				p.walk(body, content, path, qname, classRefs, result)
			}
		case "function_definition":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := string(content[nameNode.StartByte():nameNode.EndByte()])
			kind := symbol.KindFunction
			var parentID *symbol.SymbolID
			qname := name
			if parentClass != "" {
				kind = symbol.KindMethod
				qname = parentClass + "." + name
				if id, ok := classRefs[parentClass]; ok {
					parentID = &id
				}
			}
			sym := symbolFromNode(child, content, p.Language(), path, qname, kind, parentID)
			result.Symbols = append(result.Symbols, sym)
			if body := child.ChildByFieldName("body"); body != nil {
				result.Edges = append(result.Edges, collectCallEdges(body, content, sym.ID, path, pythonCallNodes)...)
			}
			if strings.HasPrefix(name, "test_") && parentClass == "" {
				result.TestIntents = append(result.TestIntents, p.extractTestIntent(child, content, path, name, sym.ID))
			}
		default:
			p.walk(child, content, path, parentClass, classRefs, result)
		}
	}
}

func (p *PythonParser) extractTestIntent(node *sitter.Node, content []byte, path, name string, symID symbol.SymbolID) TestIntent {
	intent := name
	if body := node.ChildByFieldName("body"); body != nil && body.NamedChildCount() > 0 {
		first := body.NamedChild(0)
		if first.Type() == "expression_statement" && first.NamedChildCount() > 0 && first.NamedChild(0).Type() == "string" {
			intent = strings.Trim(string(content[first.NamedChild(0).StartByte():first.NamedChild(0).EndByte()]), "\"'")
		}
	}
	return TestIntent{
		FilePath:   path,
		TestName:   name,
		IntentText: strings.TrimSpace(intent),
		Language:   p.Language(),
		SymbolID:   &symID,
	}
}
