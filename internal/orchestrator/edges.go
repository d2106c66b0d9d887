package orchestrator

import (
	"strings"

	"aether/internal/graphstore"
	"aether/internal/logging"
	"aether/internal/parser"
	"aether/internal/symbol"
)

// resolveEdgesForFile pushes path's resolved call/dependency edges into the
// graph store, and opportunistically resolves any other file's edges whose
// target qualified name newly matches a symbol this file just defined —
// covering both directions of spec step 7 ("resolve edges and push
// resolved edges to the graph store") without a second full-repo sweep.
func (o *Orchestrator) resolveEdgesForFile(path string, symbols []symbol.Symbol, edges []parser.UnresolvedEdge) {
	if o.graphStore == nil {
		return
	}

	for _, sym := range symbols {
		if err := o.graphStore.UpsertSymbolNode(graphstore.NodeInfo{
			SymbolID: sym.ID, QualifiedName: sym.QualifiedName, Kind: sym.Kind, FilePath: sym.FilePath, Language: sym.Language,
		}); err != nil {
			logging.Orchestrator("upsert graph node failed for %s: %v", sym.ID, err)
		}
	}

	if err := o.graphStore.DeleteEdgesForFile(path); err != nil {
		logging.Orchestrator("delete graph edges for %s failed: %v", path, err)
		return
	}

	localPrefix := localPackagePrefix(symbols)
	for _, e := range edges {
		targets, err := o.resolveTargetIDs(e.TargetQualifiedName, localPrefix)
		if err != nil {
			logging.Orchestrator("resolve edge target %s failed: %v", e.TargetQualifiedName, err)
			continue
		}
		if len(targets) == 0 {
			logging.OrchestratorDebug("edge target %s unresolved (no matching symbol yet)", e.TargetQualifiedName)
			continue
		}
		for _, targetID := range targets {
			if err := o.graphStore.UpsertEdge(e.SourceID, targetID, string(e.EdgeKind), e.FilePath); err != nil {
				logging.Orchestrator("upsert graph edge %s->%s failed: %v", e.SourceID, targetID, err)
			}
		}
	}

	for _, sym := range symbols {
		inbound, err := o.relStore.UnresolvedEdgesByTarget(sym.QualifiedName)
		if err != nil {
			logging.Orchestrator("lookup inbound edges for %s failed: %v", sym.QualifiedName, err)
			continue
		}
		for _, e := range inbound {
			if e.FilePath == path {
				continue // already pushed above
			}
			if err := o.graphStore.UpsertEdge(e.SourceID, sym.ID, string(e.EdgeKind), e.FilePath); err != nil {
				logging.Orchestrator("upsert inbound graph edge %s->%s failed: %v", e.SourceID, sym.ID, err)
			}
		}
	}
}

// resolveTargetIDs matches an unresolved edge's target name against known
// symbols. Extraction emits a bare call target (e.g. "format") for a
// same-package reference rather than its full qualified name, so an exact
// match is tried first (Go cross-package selector targets, or bare names
// that are themselves qualified names) and a local-prefix-qualified match
// second.
func (o *Orchestrator) resolveTargetIDs(target, localPrefix string) ([]symbol.SymbolID, error) {
	exact, err := o.relStore.SymbolIDsForQualifiedName(target)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 || localPrefix == "" || strings.Contains(target, ".") {
		return exact, nil
	}
	return o.relStore.SymbolIDsForQualifiedName(localPrefix + "." + target)
}

// localPackagePrefix returns the part before the first "." of the first
// symbol whose qualified name contains one, or "" if there is none. For Go
// (qualified names "pkgName.Symbol") this is the package name. It is
// computed for every language; the tree-sitter-backed parsers emit only
// the last segment of a call target, and for them the prefix found here is
// a class or type name (e.g. "Cls" from "Cls.method").
func localPackagePrefix(symbols []symbol.Symbol) string {
	for _, sym := range symbols {
		if i := strings.Index(sym.QualifiedName, "."); i > 0 {
			return sym.QualifiedName[:i]
		}
	}
	return ""
}
