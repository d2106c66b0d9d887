package orchestrator

import (
	"os"
	"path/filepath"
	"strings"

	"aether/internal/sir"
)

// ResolveImportHover resolves a TS/JS relative import or a Rust `use` path
// hovered from currentFile into the file-level SIR of the file it points
// to. On any resolution failure (path doesn't exist, no SIR yet, language
// not import-hover-eligible) it returns (nil, nil): the caller falls
// through to ordinary leaf hover without surfacing an error, per the
// failure mode this is specified to have.
func (o *Orchestrator) ResolveImportHover(currentFile, importPath, language string) (*sir.FileRollup, error) {
	var resolved string
	switch language {
	case "typescript", "javascript":
		resolved = o.resolveRelativeJSImport(currentFile, importPath)
	case "rust":
		resolved = o.resolveRustUsePath(currentFile, importPath)
	default:
		return nil, nil
	}
	if resolved == "" {
		return nil, nil
	}

	rollup, err := o.relStore.GetFileSIR(resolved, o.summarizer())
	if err != nil {
		return nil, err
	}
	if rollup.LeafCount == 0 {
		return nil, nil
	}
	return &rollup, nil
}

// resolveRelativeJSImport resolves a relative TS/JS import path against
// currentFile's directory. Directory-style modules (index.ts) are checked
// ahead of the flat segment file (segment.ts).
func (o *Orchestrator) resolveRelativeJSImport(currentFile, importPath string) string {
	if !strings.HasPrefix(importPath, ".") {
		return "" // bare package import, not a workspace file
	}
	base := filepath.ToSlash(filepath.Clean(filepath.Join(filepath.Dir(currentFile), importPath)))

	candidates := []string{
		base + "/index.ts", base + "/index.tsx",
		base + ".ts", base + ".tsx",
		base + "/index.js", base + "/index.jsx",
		base + ".js", base + ".jsx",
	}
	for _, c := range candidates {
		if o.workspaceFileExists(c) {
			return c
		}
	}
	return ""
}

// resolveRustUsePath resolves a `use` path's module prefix (crate::,
// self::, super::) to a file, walking remaining segments and preferring
// mod.rs over segment.rs at each level, matching the directory-module
// convention described for TS/JS above.
func (o *Orchestrator) resolveRustUsePath(currentFile, usePath string) string {
	segments := strings.Split(usePath, "::")
	if len(segments) == 0 {
		return ""
	}

	var dir string
	switch segments[0] {
	case "crate":
		root := o.findCrateRoot(currentFile)
		if root == "" {
			return ""
		}
		dir = root
		segments = segments[1:]
	case "self":
		dir = filepath.ToSlash(filepath.Dir(currentFile))
		segments = segments[1:]
	case "super":
		dir = filepath.ToSlash(filepath.Dir(currentFile))
		for len(segments) > 0 && segments[0] == "super" {
			dir = filepath.ToSlash(filepath.Dir(dir))
			segments = segments[1:]
		}
	default:
		return "" // extern-crate import, not resolvable within this workspace
	}

	if len(segments) == 0 {
		return ""
	}

	target := ""
	for i, seg := range segments {
		modPath := dir + "/" + seg + "/mod.rs"
		segPath := dir + "/" + seg + ".rs"
		switch {
		case o.workspaceFileExists(modPath):
			dir = dir + "/" + seg
			target = modPath
		case o.workspaceFileExists(segPath):
			target = segPath
			dir = "" // a flat segment file has no descendants
		default:
			return ""
		}
		if i < len(segments)-1 && dir == "" {
			return "" // remaining segments can't resolve beneath a leaf file
		}
	}
	return target
}

// findCrateRoot walks upward from currentFile looking for the directory
// containing Cargo.toml.
func (o *Orchestrator) findCrateRoot(currentFile string) string {
	dir := filepath.ToSlash(filepath.Dir(currentFile))
	for {
		if o.workspaceFileExists(dir + "/Cargo.toml") {
			return dir
		}
		if dir == "" || dir == "." {
			return ""
		}
		parent := filepath.ToSlash(filepath.Dir(dir))
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (o *Orchestrator) workspaceFileExists(relPath string) bool {
	_, err := os.Stat(filepath.Join(o.workspaceDir, filepath.FromSlash(relPath)))
	return err == nil
}
