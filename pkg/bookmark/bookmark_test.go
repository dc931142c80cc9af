package bookmark

import (
	"testing"

	"github.com/cuemby/warren-bolt/pkg/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_UpdateReplacesPrevious(t *testing.T) {
	m := NewInMemory()
	require.NoError(t, m.UpdateBookmarks(values.NewBookmarks(), values.NewBookmarks("bm:1")))

	got, err := m.GetBookmarks()
	require.NoError(t, err)
	assert.Equal(t, []string{"bm:1"}, got.Slice())

	require.NoError(t, m.UpdateBookmarks(values.NewBookmarks("bm:1"), values.NewBookmarks("bm:2")))
	got, err = m.GetBookmarks()
	require.NoError(t, err)
	assert.Equal(t, []string{"bm:2"}, got.Slice())
}

func TestInMemory_UnionAcrossSessions(t *testing.T) {
	m := NewInMemory()
	require.NoError(t, m.UpdateBookmarks(values.NewBookmarks(), values.NewBookmarks("bm:a")))
	require.NoError(t, m.UpdateBookmarks(values.NewBookmarks(), values.NewBookmarks("bm:b")))

	got, _ := m.GetBookmarks()
	assert.ElementsMatch(t, []string{"bm:a", "bm:b"}, got.Slice())
}
