package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"aether/internal/symbol"
)

// symbolFromNode builds the symbol for one named node (function, method,
// class, type), shared across the tree-sitter-backed parsers. The
// signature fingerprint is the qualified name plus the node's "parameters"
// field text when present. Call edges are collected separately by
// collectCallEdges.
func symbolFromNode(node *sitter.Node, content []byte, language, path, qualifiedName string, kind symbol.Kind, parentID *symbol.SymbolID) symbol.Symbol {
	sigNode := node.ChildByFieldName("parameters")
	sig := qualifiedName
	if sigNode != nil {
		sig = qualifiedName + string(content[sigNode.StartByte():sigNode.EndByte()])
	}
	return symbol.Symbol{
		Language:             language,
		FilePath:             path,
		QualifiedName:        qualifiedName,
		Kind:                 kind,
		SignatureFingerprint: sig,
		ParentID:             parentID,
		StartByte:            int(node.StartByte()),
		EndByte:              int(node.EndByte()),
	}.WithID()
}

// collectCallEdges walks node's subtree for call-expression-shaped nodes
// and emits an UnresolvedEdge per call, naming the callee by its textual
// target. callNodeTypes lists the grammar's call-expression node type
// names (these vary per language).
func collectCallEdges(node *sitter.Node, content []byte, sourceID symbol.SymbolID, path string, callNodeTypes map[string]bool) []UnresolvedEdge {
	var edges []UnresolvedEdge
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if callNodeTypes[n.Type()] {
			if fn := n.ChildByFieldName("function"); fn != nil {
				target := string(content[fn.StartByte():fn.EndByte()])
				edges = append(edges, UnresolvedEdge{
					SourceID:            sourceID,
					TargetQualifiedName: lastSegment(target),
					EdgeKind:            EdgeCalls,
					FilePath:            path,
				})
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		walk(node.NamedChild(i))
	}
	return edges
}

func lastSegment(dotted string) string {
	if idx := strings.LastIndex(dotted, "."); idx >= 0 {
		return dotted[idx+1:]
	}
	return dotted
}

func parseWithGrammar(p *sitter.Parser, content []byte) (*sitter.Tree, error) {
	return p.ParseCtx(context.Background(), nil, content)
}
