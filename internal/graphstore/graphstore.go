// Package graphstore holds resolved symbol/edge relations and serves the
// traversal and graph-analytic queries the relational store cannot (call
// chains, PageRank, community detection, centrality, component analysis).
// Two polymorphic variants implement Store: a gonum-backed in-process
// fallback, and a Neo4j-backed full variant for workspaces large enough to
// warrant an external graph database.
package graphstore

import "aether/internal/symbol"

// NodeInfo is a graph node's denormalized symbol metadata, enough to
// render a result without a round trip to the relational store.
type NodeInfo struct {
	SymbolID      symbol.SymbolID
	QualifiedName string
	Kind          symbol.Kind
	FilePath      string
	Language      string
}

// maxCallChainDepth is the clamp ceiling for CallChain's max_depth
// parameter (depth 0 is clamped up to 1).
const maxCallChainDepth = 10

// Store is the polymorphic graph-store contract both variants implement.
type Store interface {
	// UpsertSymbolNode adds or refreshes a node.
	UpsertSymbolNode(node NodeInfo) error

	// UpsertEdge records a resolved edge between two known symbols.
	UpsertEdge(sourceID, targetID symbol.SymbolID, edgeKind, filePath string) error

	// DeleteEdgesForFile removes every edge previously recorded as
	// originating in filePath, ahead of a fresh edge-resolution pass.
	DeleteEdgesForFile(filePath string) error

	// Callers returns every node with an outgoing edge whose target is
	// qualifiedName.
	Callers(qualifiedName string) ([]NodeInfo, error)

	// Dependencies returns every node symbolID has an outgoing edge to.
	Dependencies(symbolID symbol.SymbolID) ([]NodeInfo, error)

	// CallChain performs depth-layered traversal from start, deduplicated
	// on visit: a node already visited at a shallower depth is never
	// re-added at a deeper one. maxDepth is clamped to [1, 10].
	CallChain(start symbol.SymbolID, maxDepth int) ([][]NodeInfo, error)

	// PageRank returns a per-symbol PageRank score over the full graph.
	PageRank() (map[symbol.SymbolID]float64, error)

	// Louvain returns symbol partitions produced by community detection.
	Louvain() ([][]symbol.SymbolID, error)

	// Betweenness returns a per-symbol betweenness centrality score.
	Betweenness() (map[symbol.SymbolID]float64, error)

	// SCC returns the graph's strongly connected components.
	SCC() ([][]symbol.SymbolID, error)

	// ConnectedComponents returns the graph's (weakly) connected
	// components, treating edges as undirected.
	ConnectedComponents() ([][]symbol.SymbolID, error)

	Close() error
}

func clampDepth(maxDepth int) int {
	if maxDepth < 1 {
		return 1
	}
	if maxDepth > maxCallChainDepth {
		return maxCallChainDepth
	}
	return maxDepth
}

// layeredBFS implements the call_chain traversal contract against any
// backend's single-hop Dependencies lookup: depth-layered, deduplicated on
// visit (a node already seen at a shallower depth never reappears deeper),
// terminating at depth or when a layer yields no unvisited nodes.
func layeredBFS(start symbol.SymbolID, maxDepth int, neighbors func(symbol.SymbolID) ([]NodeInfo, error)) ([][]NodeInfo, error) {
	depth := clampDepth(maxDepth)
	visited := map[symbol.SymbolID]struct{}{start: {}}
	layers := make([][]NodeInfo, 0, depth)
	frontier := []symbol.SymbolID{start}

	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []symbol.SymbolID
		var layer []NodeInfo
		for _, id := range frontier {
			children, err := neighbors(id)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				if _, seen := visited[child.SymbolID]; seen {
					continue
				}
				visited[child.SymbolID] = struct{}{}
				next = append(next, child.SymbolID)
				layer = append(layer, child)
			}
		}
		if len(layer) == 0 {
			break
		}
		layers = append(layers, layer)
		frontier = next
	}
	return layers, nil
}
