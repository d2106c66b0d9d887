package graphstore

import (
	"fmt"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"aether/internal/logging"
	"aether/internal/symbol"
)

type edgeKey struct {
	source, target int64
}

type edgeRecord struct {
	kind     string
	filePath string
}

// GonumStore is the in-process fallback graph store: an adjacency structure
// held entirely in memory. It starts empty on every open and holds only the
// nodes and edges pushed into it during the process's lifetime; nothing
// reloads it from the relational store. It generalizes the teacher's BFS TraversePath to full call-chain traversal
// plus genuine graph analytics (gonum has no built-in persistence of its
// own, so durability is the relational store's edge rows, not this index).
type GonumStore struct {
	mu sync.RWMutex

	g *simple.DirectedGraph

	nextID     int64
	idBySymbol map[symbol.SymbolID]int64
	symbolByID map[int64]symbol.SymbolID
	nodeInfo   map[symbol.SymbolID]NodeInfo
	qnameIndex map[string][]symbol.SymbolID

	edgeMeta    map[edgeKey]edgeRecord
	fileToEdges map[string]map[edgeKey]struct{}
}

// NewGonumStore builds an empty in-process graph store.
func NewGonumStore() *GonumStore {
	return &GonumStore{
		g:           simple.NewDirectedGraph(),
		idBySymbol:  make(map[symbol.SymbolID]int64),
		symbolByID:  make(map[int64]symbol.SymbolID),
		nodeInfo:    make(map[symbol.SymbolID]NodeInfo),
		qnameIndex:  make(map[string][]symbol.SymbolID),
		edgeMeta:    make(map[edgeKey]edgeRecord),
		fileToEdges: make(map[string]map[edgeKey]struct{}),
	}
}

func (s *GonumStore) ensureNode(id symbol.SymbolID) int64 {
	if gid, ok := s.idBySymbol[id]; ok {
		return gid
	}
	gid := s.nextID
	s.nextID++
	s.idBySymbol[id] = gid
	s.symbolByID[gid] = id
	s.g.AddNode(simple.Node(gid))
	return gid
}

// UpsertSymbolNode implements Store.
func (s *GonumStore) UpsertSymbolNode(node NodeInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureNode(node.SymbolID)
	if prior, ok := s.nodeInfo[node.SymbolID]; ok && prior.QualifiedName != node.QualifiedName {
		s.removeFromQnameIndex(prior.QualifiedName, node.SymbolID)
	}
	s.nodeInfo[node.SymbolID] = node
	s.qnameIndex[node.QualifiedName] = appendUnique(s.qnameIndex[node.QualifiedName], node.SymbolID)
	return nil
}

func (s *GonumStore) removeFromQnameIndex(qname string, id symbol.SymbolID) {
	ids := s.qnameIndex[qname]
	for i, existing := range ids {
		if existing == id {
			s.qnameIndex[qname] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func appendUnique(ids []symbol.SymbolID, id symbol.SymbolID) []symbol.SymbolID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// UpsertEdge implements Store.
func (s *GonumStore) UpsertEdge(sourceID, targetID symbol.SymbolID, edgeKind, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	srcGID := s.ensureNode(sourceID)
	tgtGID := s.ensureNode(targetID)
	s.g.SetEdge(simple.Edge{F: simple.Node(srcGID), T: simple.Node(tgtGID)})

	key := edgeKey{source: srcGID, target: tgtGID}
	s.edgeMeta[key] = edgeRecord{kind: edgeKind, filePath: filePath}
	if s.fileToEdges[filePath] == nil {
		s.fileToEdges[filePath] = make(map[edgeKey]struct{})
	}
	s.fileToEdges[filePath][key] = struct{}{}
	return nil
}

// DeleteEdgesForFile implements Store.
func (s *GonumStore) DeleteEdgesForFile(filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.fileToEdges[filePath]
	for key := range keys {
		s.g.RemoveEdge(key.source, key.target)
		delete(s.edgeMeta, key)
	}
	delete(s.fileToEdges, filePath)
	logging.GraphStoreDebug("removed %d edges for file %s", len(keys), filePath)
	return nil
}

// Callers implements Store.
func (s *GonumStore) Callers(qualifiedName string) ([]NodeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []NodeInfo
	for _, targetID := range s.qnameIndex[qualifiedName] {
		targetGID, ok := s.idBySymbol[targetID]
		if !ok {
			continue
		}
		preds := s.g.To(targetGID)
		for preds.Next() {
			predID := s.symbolByID[preds.Node().ID()]
			if info, ok := s.nodeInfo[predID]; ok {
				out = append(out, info)
			}
		}
	}
	return out, nil
}

// Dependencies implements Store.
func (s *GonumStore) Dependencies(symbolID symbol.SymbolID) ([]NodeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gid, ok := s.idBySymbol[symbolID]
	if !ok {
		return nil, nil
	}
	var out []NodeInfo
	succ := s.g.From(gid)
	for succ.Next() {
		targetID := s.symbolByID[succ.Node().ID()]
		if info, ok := s.nodeInfo[targetID]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

// CallChain implements Store.
func (s *GonumStore) CallChain(start symbol.SymbolID, maxDepth int) ([][]NodeInfo, error) {
	s.mu.RLock()
	if _, ok := s.idBySymbol[start]; !ok {
		s.mu.RUnlock()
		return nil, fmt.Errorf("graphstore: unknown start symbol %s", start)
	}
	s.mu.RUnlock()

	return layeredBFS(start, maxDepth, s.Dependencies)
}

// PageRank implements Store.
func (s *GonumStore) PageRank() (map[symbol.SymbolID]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranks := network.PageRank(s.g, 0.85, 1e-8)
	out := make(map[symbol.SymbolID]float64, len(ranks))
	for gid, score := range ranks {
		out[s.symbolByID[gid]] = score
	}
	return out, nil
}

// Betweenness implements Store.
func (s *GonumStore) Betweenness() (map[symbol.SymbolID]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := network.Betweenness(s.g)
	out := make(map[symbol.SymbolID]float64, len(scores))
	for gid, score := range scores {
		out[s.symbolByID[gid]] = score
	}
	return out, nil
}

// Louvain implements Store, via gonum's modularity-optimizing community
// detection over an undirected mirror of the call graph.
func (s *GonumStore) Louvain() ([][]symbol.SymbolID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	undirected := s.undirectedMirror()
	reduced := community.Modularize(undirected, 1, rand.New(rand.NewSource(1)))

	var out [][]symbol.SymbolID
	for _, members := range reduced.Structure() {
		group := make([]symbol.SymbolID, 0, len(members))
		for _, n := range members {
			group = append(group, s.symbolByID[n.ID()])
		}
		out = append(out, group)
	}
	return out, nil
}

// SCC implements Store via Tarjan's algorithm over the directed call graph.
func (s *GonumStore) SCC() ([][]symbol.SymbolID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	components := topo.TarjanSCC(s.g)
	var out [][]symbol.SymbolID
	for _, comp := range components {
		group := make([]symbol.SymbolID, 0, len(comp))
		for _, n := range comp {
			group = append(group, s.symbolByID[n.ID()])
		}
		out = append(out, group)
	}
	return out, nil
}

// ConnectedComponents implements Store, treating edges as undirected.
func (s *GonumStore) ConnectedComponents() ([][]symbol.SymbolID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	undirected := s.undirectedMirror()
	components := topo.ConnectedComponents(undirected)
	var out [][]symbol.SymbolID
	for _, comp := range components {
		group := make([]symbol.SymbolID, 0, len(comp))
		for _, n := range comp {
			group = append(group, s.symbolByID[n.ID()])
		}
		out = append(out, group)
	}
	return out, nil
}

// undirectedMirror builds a throwaway undirected copy of the current graph,
// for the algorithms (Louvain, connected components) that require one.
// Caller must hold s.mu.
func (s *GonumStore) undirectedMirror() *simple.UndirectedGraph {
	u := simple.NewUndirectedGraph()
	nodes := s.g.Nodes()
	for nodes.Next() {
		u.AddNode(simple.Node(nodes.Node().ID()))
	}
	edges := s.g.Edges()
	for edges.Next() {
		e := edges.Edge()
		u.SetEdge(simple.Edge{F: e.From(), T: e.To()})
	}
	return u
}

// Close implements Store; the in-process store holds no external resource.
func (s *GonumStore) Close() error { return nil }

var _ Store = (*GonumStore)(nil)
var _ graph.Directed = (*simple.DirectedGraph)(nil)
