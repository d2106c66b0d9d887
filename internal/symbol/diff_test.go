package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkSymbol(qname, sigFingerprint string, start, end int) Symbol {
	s := Symbol{
		Language:             "go",
		FilePath:             "pkg/foo.go",
		QualifiedName:        qname,
		Kind:                 KindFunction,
		SignatureFingerprint: sigFingerprint,
		StartByte:            start,
		EndByte:              end,
	}
	return s.WithID()
}

func TestDiff_Added(t *testing.T) {
	prev := []Symbol{mkSymbol("pkg.Foo", "sig1", 0, 10)}
	cur := []Symbol{mkSymbol("pkg.Foo", "sig1", 0, 10), mkSymbol("pkg.Bar", "sig2", 10, 20)}

	added, removed, updated, err := Diff(prev, cur)
	require.NoError(t, err)
	assert.Len(t, added, 1)
	assert.Equal(t, "pkg.Bar", added[0].QualifiedName)
	assert.Empty(t, removed)
	assert.Empty(t, updated)
}

func TestDiff_Removed(t *testing.T) {
	prev := []Symbol{mkSymbol("pkg.Foo", "sig1", 0, 10), mkSymbol("pkg.Bar", "sig2", 10, 20)}
	cur := []Symbol{mkSymbol("pkg.Foo", "sig1", 0, 10)}

	added, removed, updated, err := Diff(prev, cur)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Len(t, removed, 1)
	assert.Equal(t, "pkg.Bar", removed[0].QualifiedName)
	assert.Empty(t, updated)
}

func TestDiff_UpdatedRequiresNonIdentityChange(t *testing.T) {
	prev := []Symbol{mkSymbol("pkg.Foo", "sig1", 0, 10)}
	cur := []Symbol{mkSymbol("pkg.Foo", "sig1", 0, 15)} // body grew, identity unchanged

	added, removed, updated, err := Diff(prev, cur)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Empty(t, removed)
	require.Len(t, updated, 1)
	assert.Equal(t, 15, updated[0].EndByte)
}

func TestDiff_ReformattingOnlyYieldsNoChanges(t *testing.T) {
	prev := []Symbol{mkSymbol("pkg.Foo", "sig1", 0, 10)}
	cur := []Symbol{mkSymbol("pkg.Foo", "sig1", 0, 10)}

	added, removed, updated, err := Diff(prev, cur)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Empty(t, removed)
	assert.Empty(t, updated)
}

func TestDiff_IdentityCollision(t *testing.T) {
	colliding := mkSymbol("pkg.Foo", "sig1", 0, 10)
	colliding2 := colliding
	colliding2.QualifiedName = "pkg.OtherName"

	_, _, _, err := Diff(nil, []Symbol{colliding, colliding2})
	require.Error(t, err)

	var collisionErr *IdentityCollisionError
	require.ErrorAs(t, err, &collisionErr)
	assert.Equal(t, "pkg.Foo", collisionErr.QualifiedNameA)
	assert.Equal(t, "pkg.OtherName", collisionErr.QualifiedNameB)
}
