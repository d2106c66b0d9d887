package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aether/internal/symbol"
)

const sampleGoSource = `package sample

type Greeter struct {
	Name string
}

func (g *Greeter) Greet() string {
	return formatGreeting(g.Name)
}

func formatGreeting(name string) string {
	return "hello " + name
}

func TestGreet(t *testing.T) {
	g := &Greeter{Name: "world"}
	_ = g.Greet()
}
`

func TestGoParser_ExtractsSymbols(t *testing.T) {
	p := NewGoParser()
	result, err := p.Parse("sample.go", []byte(sampleGoSource))
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	var kinds []symbol.Kind
	var names []string
	for _, s := range result.Symbols {
		kinds = append(kinds, s.Kind)
		names = append(names, s.QualifiedName)
	}
	assert.Contains(t, names, "sample.Greeter")
	assert.Contains(t, names, "sample.Greeter.Greet")
	assert.Contains(t, names, "sample.formatGreeting")
	assert.Contains(t, names, "sample.TestGreet")
}

func TestGoParser_MethodParentLinksToStruct(t *testing.T) {
	p := NewGoParser()
	result, err := p.Parse("sample.go", []byte(sampleGoSource))
	require.NoError(t, err)

	var structID symbol.SymbolID
	var methodParent *symbol.SymbolID
	for _, s := range result.Symbols {
		if s.QualifiedName == "sample.Greeter" {
			structID = s.ID
		}
		if s.QualifiedName == "sample.Greeter.Greet" {
			methodParent = s.ParentID
		}
	}
	require.NotNil(t, methodParent)
	assert.Equal(t, structID, *methodParent)
}

func TestGoParser_EmitsCallEdges(t *testing.T) {
	p := NewGoParser()
	result, err := p.Parse("sample.go", []byte(sampleGoSource))
	require.NoError(t, err)

	var targets []string
	for _, e := range result.Edges {
		targets = append(targets, e.TargetQualifiedName)
		assert.Equal(t, EdgeCalls, e.EdgeKind)
	}
	assert.Contains(t, targets, "formatGreeting")
}

func TestGoParser_StableAcrossReformatting(t *testing.T) {
	p := NewGoParser()
	r1, err := p.Parse("sample.go", []byte(sampleGoSource))
	require.NoError(t, err)

	reformatted := sampleGoSource + "\n// trailing comment\n"
	r2, err := p.Parse("sample.go", []byte(reformatted))
	require.NoError(t, err)

	idsByName := func(rs *ParseResult) map[string]symbol.SymbolID {
		m := map[string]symbol.SymbolID{}
		for _, s := range rs.Symbols {
			m[s.QualifiedName] = s.ID
		}
		return m
	}
	m1, m2 := idsByName(r1), idsByName(r2)
	for name, id := range m1 {
		assert.Equal(t, id, m2[name], "symbol_id for %s should be stable", name)
	}
}

func TestGoParser_InvalidSyntaxReturnsParseError(t *testing.T) {
	p := NewGoParser()
	result, err := p.Parse("broken.go", []byte("package broken\nfunc ( {"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Errors)
}
