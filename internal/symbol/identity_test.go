package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSymbolID_StableAcrossReformatting(t *testing.T) {
	id1 := ComputeSymbolID("go", "pkg/foo.go", KindFunction, "pkg.Foo", "func Foo(x int) error")
	id2 := ComputeSymbolID("go", "pkg/foo.go", KindFunction, "pkg.Foo", "func Foo(x int) error")
	assert.Equal(t, id1, id2)
}

func TestComputeSymbolID_ChangesWithIdentityFields(t *testing.T) {
	base := ComputeSymbolID("go", "pkg/foo.go", KindFunction, "pkg.Foo", "func Foo(x int) error")

	t.Run("renamed", func(t *testing.T) {
		id := ComputeSymbolID("go", "pkg/foo.go", KindFunction, "pkg.Bar", "func Foo(x int) error")
		assert.NotEqual(t, base, id)
	})
	t.Run("kind change", func(t *testing.T) {
		id := ComputeSymbolID("go", "pkg/foo.go", KindMethod, "pkg.Foo", "func Foo(x int) error")
		assert.NotEqual(t, base, id)
	})
	t.Run("signature change", func(t *testing.T) {
		id := ComputeSymbolID("go", "pkg/foo.go", KindFunction, "pkg.Foo", "func Foo(x int, y int) error")
		assert.NotEqual(t, base, id)
	})
	t.Run("moved file", func(t *testing.T) {
		id := ComputeSymbolID("go", "pkg/bar.go", KindFunction, "pkg.Foo", "func Foo(x int) error")
		assert.NotEqual(t, base, id)
	})
}

func TestComputeSymbolID_NoFieldBoundaryCollision(t *testing.T) {
	// ("ab", "c") vs ("a", "bc") concatenated naively would collide.
	a := ComputeSymbolID("go", "ab", KindFunction, "c", "sig")
	b := ComputeSymbolID("go", "a", KindFunction, "bc", "sig")
	assert.NotEqual(t, a, b)
}

func TestSymbolID_String(t *testing.T) {
	id := ComputeSymbolID("go", "pkg/foo.go", KindFunction, "pkg.Foo", "sig")
	assert.Len(t, id.String(), 64)
}
