package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"aether/internal/logging"
	"aether/internal/symbol"
)

// Neo4jStore is the full graph-database variant: a Neo4j instance holding
// one Symbol node per symbol and one EDGE relationship per resolved edge,
// with call-chain traversal and analytics delegated to the Graph Data
// Science plugin's streaming procedures.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore opens a driver against uri and verifies connectivity.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphstore: open neo4j driver: %w", err)
	}
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("graphstore: verify neo4j connectivity: %w", err)
	}
	logging.GraphStore("connected to neo4j at %s", uri)
	return &Neo4jStore{driver: driver, database: database}, nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// UpsertSymbolNode implements Store.
func (s *Neo4jStore) UpsertSymbolNode(node NodeInfo) error {
	ctx := context.Background()
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MERGE (sym:Symbol {symbol_id: $id})
			SET sym.qualified_name = $qname, sym.kind = $kind, sym.file_path = $file, sym.language = $lang`,
			map[string]any{
				"id": node.SymbolID.String(), "qname": node.QualifiedName,
				"kind": string(node.Kind), "file": node.FilePath, "lang": node.Language,
			})
	})
	if err != nil {
		return fmt.Errorf("graphstore: upsert symbol node: %w", err)
	}
	return nil
}

// UpsertEdge implements Store.
func (s *Neo4jStore) UpsertEdge(sourceID, targetID symbol.SymbolID, edgeKind, filePath string) error {
	ctx := context.Background()
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH (a:Symbol {symbol_id: $src}), (b:Symbol {symbol_id: $tgt})
			MERGE (a)-[e:EDGE {kind: $kind, file_path: $file}]->(b)`,
			map[string]any{"src": sourceID.String(), "tgt": targetID.String(), "kind": edgeKind, "file": filePath})
	})
	if err != nil {
		return fmt.Errorf("graphstore: upsert edge: %w", err)
	}
	return nil
}

// DeleteEdgesForFile implements Store.
func (s *Neo4jStore) DeleteEdgesForFile(filePath string) error {
	ctx := context.Background()
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `MATCH (:Symbol)-[e:EDGE {file_path: $file}]->(:Symbol) DELETE e`,
			map[string]any{"file": filePath})
	})
	if err != nil {
		return fmt.Errorf("graphstore: delete edges for file: %w", err)
	}
	return nil
}

// Callers implements Store.
func (s *Neo4jStore) Callers(qualifiedName string) ([]NodeInfo, error) {
	ctx := context.Background()
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (caller:Symbol)-[:EDGE]->(callee:Symbol {qualified_name: $qname})
			RETURN caller.symbol_id, caller.qualified_name, caller.kind, caller.file_path, caller.language`,
			map[string]any{"qname": qualifiedName})
		if err != nil {
			return nil, err
		}
		return collectNodeInfos(ctx, res)
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: callers: %w", err)
	}
	return result.([]NodeInfo), nil
}

// Dependencies implements Store.
func (s *Neo4jStore) Dependencies(symbolID symbol.SymbolID) ([]NodeInfo, error) {
	ctx := context.Background()
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (:Symbol {symbol_id: $id})-[:EDGE]->(dep:Symbol)
			RETURN dep.symbol_id, dep.qualified_name, dep.kind, dep.file_path, dep.language`,
			map[string]any{"id": symbolID.String()})
		if err != nil {
			return nil, err
		}
		return collectNodeInfos(ctx, res)
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: dependencies: %w", err)
	}
	return result.([]NodeInfo), nil
}

// CallChain implements Store, reusing the shared layered-BFS walk over
// Dependencies so both backends give identical depth/dedup semantics.
func (s *Neo4jStore) CallChain(start symbol.SymbolID, maxDepth int) ([][]NodeInfo, error) {
	return layeredBFS(start, maxDepth, s.Dependencies)
}

// PageRank implements Store via a throwaway GDS graph projection.
func (s *Neo4jStore) PageRank() (map[symbol.SymbolID]float64, error) {
	out := make(map[symbol.SymbolID]float64)
	err := s.withProjectedGraph(func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		res, err := tx.Run(ctx, `
			CALL gds.pageRank.stream($graph) YIELD nodeId, score
			RETURN gds.util.asNode(nodeId).symbol_id AS symbol_id, score`, map[string]any{"graph": gdsProjectionName})
		if err != nil {
			return err
		}
		for res.Next(ctx) {
			rec := res.Record()
			id, err := symbol.ParseSymbolID(rec.Values[0].(string))
			if err != nil {
				continue
			}
			out[id] = rec.Values[1].(float64)
		}
		return res.Err()
	})
	return out, err
}

// Betweenness implements Store via a throwaway GDS graph projection.
func (s *Neo4jStore) Betweenness() (map[symbol.SymbolID]float64, error) {
	out := make(map[symbol.SymbolID]float64)
	err := s.withProjectedGraph(func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		res, err := tx.Run(ctx, `
			CALL gds.betweenness.stream($graph) YIELD nodeId, score
			RETURN gds.util.asNode(nodeId).symbol_id AS symbol_id, score`, map[string]any{"graph": gdsProjectionName})
		if err != nil {
			return err
		}
		for res.Next(ctx) {
			rec := res.Record()
			id, err := symbol.ParseSymbolID(rec.Values[0].(string))
			if err != nil {
				continue
			}
			out[id] = rec.Values[1].(float64)
		}
		return res.Err()
	})
	return out, err
}

// Louvain implements Store via a throwaway GDS graph projection.
func (s *Neo4jStore) Louvain() ([][]symbol.SymbolID, error) {
	groups := make(map[int64][]symbol.SymbolID)
	err := s.withProjectedGraph(func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		res, err := tx.Run(ctx, `
			CALL gds.louvain.stream($graph) YIELD nodeId, communityId
			RETURN gds.util.asNode(nodeId).symbol_id AS symbol_id, communityId`, map[string]any{"graph": gdsProjectionName})
		if err != nil {
			return err
		}
		for res.Next(ctx) {
			rec := res.Record()
			id, err := symbol.ParseSymbolID(rec.Values[0].(string))
			if err != nil {
				continue
			}
			communityID := rec.Values[1].(int64)
			groups[communityID] = append(groups[communityID], id)
		}
		return res.Err()
	})
	if err != nil {
		return nil, err
	}
	out := make([][]symbol.SymbolID, 0, len(groups))
	for _, members := range groups {
		out = append(out, members)
	}
	return out, nil
}

// SCC implements Store via GDS's strongly-connected-components procedure.
func (s *Neo4jStore) SCC() ([][]symbol.SymbolID, error) {
	return s.groupedComponentQuery(`
		CALL gds.scc.stream($graph) YIELD nodeId, componentId
		RETURN gds.util.asNode(nodeId).symbol_id AS symbol_id, componentId`)
}

// ConnectedComponents implements Store via GDS's weakly-connected-components
// procedure (WCC treats directed edges as undirected).
func (s *Neo4jStore) ConnectedComponents() ([][]symbol.SymbolID, error) {
	return s.groupedComponentQuery(`
		CALL gds.wcc.stream($graph) YIELD nodeId, componentId
		RETURN gds.util.asNode(nodeId).symbol_id AS symbol_id, componentId`)
}

func (s *Neo4jStore) groupedComponentQuery(cypher string) ([][]symbol.SymbolID, error) {
	groups := make(map[int64][]symbol.SymbolID)
	err := s.withProjectedGraph(func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		res, err := tx.Run(ctx, cypher, map[string]any{"graph": gdsProjectionName})
		if err != nil {
			return err
		}
		for res.Next(ctx) {
			rec := res.Record()
			id, err := symbol.ParseSymbolID(rec.Values[0].(string))
			if err != nil {
				continue
			}
			componentID := rec.Values[1].(int64)
			groups[componentID] = append(groups[componentID], id)
		}
		return res.Err()
	})
	if err != nil {
		return nil, err
	}
	out := make([][]symbol.SymbolID, 0, len(groups))
	for _, members := range groups {
		out = append(out, members)
	}
	return out, nil
}

const gdsProjectionName = "aether_tmp_graph"

// withProjectedGraph projects the current Symbol/EDGE graph into a named
// GDS in-memory graph, runs fn against it, and drops the projection
// afterward regardless of fn's outcome.
func (s *Neo4jStore) withProjectedGraph(fn func(ctx context.Context, tx neo4j.ManagedTransaction) error) error {
	ctx := context.Background()
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			CALL gds.graph.project.cypher($graph,
				'MATCH (n:Symbol) RETURN id(n) AS id',
				'MATCH (a:Symbol)-[:EDGE]->(b:Symbol) RETURN id(a) AS source, id(b) AS target')
			YIELD graphName`, map[string]any{"graph": gdsProjectionName})
	})
	if err != nil {
		return fmt.Errorf("graphstore: project gds graph: %w", err)
	}

	_, fnErr := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(ctx, tx)
	})

	_, dropErr := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `CALL gds.graph.drop($graph, false)`, map[string]any{"graph": gdsProjectionName})
	})
	if dropErr != nil {
		logging.GraphStore("failed to drop gds projection %s: %v", gdsProjectionName, dropErr)
	}

	if fnErr != nil {
		return fmt.Errorf("graphstore: gds query: %w", fnErr)
	}
	return nil
}

func collectNodeInfos(ctx context.Context, res neo4j.ResultWithContext) ([]NodeInfo, error) {
	var out []NodeInfo
	for res.Next(ctx) {
		rec := res.Record()
		idHex, _ := rec.Values[0].(string)
		id, err := symbol.ParseSymbolID(idHex)
		if err != nil {
			continue
		}
		out = append(out, NodeInfo{
			SymbolID:      id,
			QualifiedName: asString(rec.Values[1]),
			Kind:          symbol.Kind(asString(rec.Values[2])),
			FilePath:      asString(rec.Values[3]),
			Language:      asString(rec.Values[4]),
		})
	}
	return out, res.Err()
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// Close implements Store.
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

var _ Store = (*Neo4jStore)(nil)
