package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"aether/internal/logging"
)

// Registry routes a file path to the LanguageParser registered for its
// extension, mirroring the teacher's ParserFactory.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]LanguageParser // extension -> parser
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]LanguageParser)}
}

// Register adds p under every extension it supports. A later call for the
// same extension replaces the prior registration.
func (r *Registry) Register(p LanguageParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.SupportedExtensions() {
		ext = normalizeExtension(ext)
		logging.ParserDebug("registry: registering %s parser for extension %s", p.Language(), ext)
		r.parsers[ext] = p
	}
}

// ParserFor returns the parser registered for path's extension, if any.
func (r *Registry) ParserFor(path string) (LanguageParser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[normalizeExtension(filepath.Ext(path))]
	return p, ok
}

// Parse dispatches to the registered parser for path's extension.
func (r *Registry) Parse(path string, content []byte) (*ParseResult, error) {
	p, ok := r.ParserFor(path)
	if !ok {
		return nil, fmt.Errorf("parser: no parser registered for extension %q", filepath.Ext(path))
	}
	return p.Parse(path, content)
}

func normalizeExtension(ext string) string {
	return strings.ToLower(ext)
}

// DefaultRegistry returns a Registry with Go, Python, TypeScript, and Rust
// parsers registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewGoParser())
	r.Register(NewPythonParser())
	r.Register(NewTypeScriptParser())
	r.Register(NewRustParser())
	return r
}
