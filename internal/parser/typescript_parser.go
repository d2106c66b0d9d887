package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"aether/internal/symbol"
)

var tsCallNodes = map[string]bool{"call_expression": true}

// TypeScriptParser extracts symbols from TypeScript source via tree-sitter.
type TypeScriptParser struct {
	grammar *sitter.Parser
}

// NewTypeScriptParser returns a TypeScriptParser.
func NewTypeScriptParser() *TypeScriptParser {
	p := sitter.NewParser()
	p.SetLanguage(typescript.GetLanguage())
	return &TypeScriptParser{grammar: p}
}

func (p *TypeScriptParser) Language() string { return "typescript" }

func (p *TypeScriptParser) SupportedExtensions() []string { return []string{".ts", ".tsx"} }

func (p *TypeScriptParser) ModuleMarkers() []string { return []string{"index.ts", "index.tsx"} }

func (p *TypeScriptParser) Parse(path string, content []byte) (*ParseResult, error) {
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

func (p *TypeScriptParser) walk(node *sitter.Node, content []byte, path, parentClass string, classRefs map[string]symbol.SymbolID, result *ParseResult) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_declaration":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := string(content[nameNode.StartByte():nameNode.EndByte()])
			sym := symbolFromNode(child, content, p.Language(), path, name, symbol.KindType, nil)
			result.Symbols = append(result.Symbols, sym)
			classRefs[name] = sym.ID
			if body := child.ChildByFieldName("body"); body != nil {
				p.walk(body, content, path, name, classRefs, result)
			}
		case "interface_declaration":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := string(content[nameNode.StartByte():nameNode.EndByte()])
			sym := symbolFromNode(child, content, p.Language(), path, name, symbol.KindInterface, nil)
			result.Symbols = append(result.Symbols, sym)
		case "function_declaration":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := string(content[nameNode.StartByte():nameNode.EndByte()])
			sym := symbolFromNode(child, content, p.Language(), path, name, symbol.KindFunction, nil)
			result.Symbols = append(result.Symbols, sym)
			if body := child.ChildByFieldName("body"); body != nil {
				result.Edges = append(result.Edges, collectCallEdges(body, content, sym.ID, path, tsCallNodes)...)
			}
			if strings.HasPrefix(name, "test") || strings.HasSuffix(name, "Test") {
				result.TestIntents = append(result.TestIntents, TestIntent{
					FilePath: path, TestName: name, IntentText: name, Language: p.Language(), SymbolID: &sym.ID,
				})
			}
		case "method_definition":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := string(content[nameNode.StartByte():nameNode.EndByte()])
			qname := name
			var parentID *symbol.SymbolID
			if parentClass != "" {
				qname = parentClass + "." + name
				if id, ok := classRefs[parentClass]; ok {
					parentID = &id
				}
			}
			sym := symbolFromNode(child, content, p.Language(), path, qname, symbol.KindMethod, parentID)
			result.Symbols = append(result.Symbols, sym)
			if body := child.ChildByFieldName("body"); body != nil {
				result.Edges = append(result.Edges, collectCallEdges(body, content, sym.ID, path, tsCallNodes)...)
			}
		default:
			p.walk(child, content, path, parentClass, classRefs, result)
		}
	}
}
