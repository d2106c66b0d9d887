package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"aether/internal/symbol"
)

var rustCallNodes = map[string]bool{"call_expression": true}

// RustParser extracts symbols from Rust source via tree-sitter.
type RustParser struct {
	grammar *sitter.Parser
}

// NewRustParser returns a RustParser.
func NewRustParser() *RustParser {
	p := sitter.NewParser()
	p.SetLanguage(rust.GetLanguage())
	return &RustParser{grammar: p}
}

func (p *RustParser) Language() string { return "rust" }

func (p *RustParser) SupportedExtensions() []string { return []string{".rs"} }

func (p *RustParser) ModuleMarkers() []string { return []string{"mod.rs", "lib.rs"} }

func (p *RustParser) Parse(path string, content []byte) (*ParseResult, error) {
	tree, err := parseWithGrammar(p.grammar, content)
	if err != nil {
		return &ParseResult{Errors: []ParseError{{Message: err.Error()}}}, nil
	}
	defer tree.Close()

	result := &ParseResult{}
	typeRefs := make(map[string]symbol.SymbolID)
	p.walk(tree.RootNode(), content, path, "", typeRefs, result)
	return result, nil
}

func (p *RustParser) walk(node *sitter.Node, content []byte, path, modPrefix string, typeRefs map[string]symbol.SymbolID, result *ParseResult) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "struct_item", "enum_item", "trait_item":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := string(content[nameNode.StartByte():nameNode.EndByte()])
			kind := symbol.KindType
			if child.Type() == "trait_item" {
				kind = symbol.KindTrait
			}
			qname := qualify(modPrefix, name)
			sym := symbolFromNode(child, content, p.Language(), path, qname, kind, nil)
			result.Symbols = append(result.Symbols, sym)
			typeRefs[name] = sym.ID

		case "impl_item":
			typeNode := child.ChildByFieldName("type")
			if typeNode == nil {
				continue
			}
			typeName := string(content[typeNode.StartByte():typeNode.EndByte()])
			if idx := strings.Index(typeName, "<"); idx > 0 {
				typeName = typeName[:idx]
			}
			parentID, hasParent := typeRefs[typeName]
			var parentIDPtr *symbol.SymbolID
			if hasParent {
				parentIDPtr = &parentID
			}
			body := child.ChildByFieldName("body")
			if body == nil {
				continue
			}
			for j := 0; j < int(body.NamedChildCount()); j++ {
				item := body.NamedChild(j)
				if item.Type() != "function_item" {
					continue
				}
				nameNode := item.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				name := string(content[nameNode.StartByte():nameNode.EndByte()])
				qname := qualify(modPrefix, typeName) + "." + name
				sym := symbolFromNode(item, content, p.Language(), path, qname, symbol.KindMethod, parentIDPtr)
				result.Symbols = append(result.Symbols, sym)
				if fnBody := item.ChildByFieldName("body"); fnBody != nil {
					result.Edges = append(result.Edges, collectCallEdges(fnBody, content, sym.ID, path, rustCallNodes)...)
				}
			}

		case "function_item":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := string(content[nameNode.StartByte():nameNode.EndByte()])
			qname := qualify(modPrefix, name)
			sym := symbolFromNode(child, content, p.Language(), path, qname, symbol.KindFunction, nil)
			result.Symbols = append(result.Symbols, sym)
			if body := child.ChildByFieldName("body"); body != nil {
				result.Edges = append(result.Edges, collectCallEdges(body, content, sym.ID, path, rustCallNodes)...)
			}
			if strings.HasPrefix(name, "test_") {
				result.TestIntents = append(result.TestIntents, TestIntent{
					FilePath: path, TestName: name, IntentText: name, Language: p.Language(), SymbolID: &sym.ID,
				})
			}

		case "mod_item":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := string(content[nameNode.StartByte():nameNode.EndByte()])
			if body := child.ChildByFieldName("body"); body != nil {
				p.walk(body, content, path, qualify(modPrefix, name), typeRefs, result)
			}

		default:
			p.walk(child, content, path, modPrefix, typeRefs, result)
		}
	}
}

// qualify joins a Rust module path prefix (crate::/self::/super:: handling
// lives in the orchestrator's `use`-path hover resolution, not here) with a
// name.
func qualify(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "::" + name
}
