package routing

import (
	"testing"
	"time"

	"github.com/cuemby/warren-bolt/pkg/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetPutInvalidate(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("neo4j")
	assert.False(t, ok)

	tbl := &Table{Database: "neo4j", Writers: []string{"a:7687"}, Deadline: time.Now().Add(time.Minute)}
	c.Put(tbl)

	got, ok := c.Get("neo4j")
	require.True(t, ok)
	assert.Equal(t, []string{"a:7687"}, got.Addresses(true))

	c.Invalidate("neo4j")
	_, ok = c.Get("neo4j")
	assert.False(t, ok)
}

func TestTable_Expired(t *testing.T) {
	tbl := &Table{Deadline: time.Now().Add(-time.Second)}
	assert.True(t, tbl.Expired(time.Now()))
}

func TestCache_RemoveWriterEvictsOnlyTheGivenAddress(t *testing.T) {
	c := NewCache()
	tbl := &Table{
		Database: "neo4j",
		Writers:  []string{"a:7687", "b:7687"},
		Deadline: time.Now().Add(time.Minute),
	}
	c.Put(tbl)

	c.RemoveWriter("neo4j", "a:7687")

	got, ok := c.Get("neo4j")
	require.True(t, ok)
	assert.Equal(t, []string{"b:7687"}, got.Addresses(true))
	assert.False(t, got.Expired(time.Now()), "evicting a writer must not expire the table")
}

func TestCache_RemoveWriterUnknownDatabaseIsNoop(t *testing.T) {
	c := NewCache()
	c.RemoveWriter("neo4j", "a:7687")
	_, ok := c.Get("neo4j")
	assert.False(t, ok)
}

func TestCache_RemoveWriterUnknownAddressIsNoop(t *testing.T) {
	c := NewCache()
	tbl := &Table{Database: "neo4j", Writers: []string{"a:7687"}, Deadline: time.Now().Add(time.Minute)}
	c.Put(tbl)

	c.RemoveWriter("neo4j", "z:7687")

	got, ok := c.Get("neo4j")
	require.True(t, ok)
	assert.Equal(t, []string{"a:7687"}, got.Addresses(true))
}

func TestHashAuthToken_OrderIndependent(t *testing.T) {
	a := values.AuthToken{"scheme": "basic", "principal": "neo4j", "credentials": "pw"}
	b := values.AuthToken{"credentials": "pw", "scheme": "basic", "principal": "neo4j"}
	assert.Equal(t, HashAuthToken(a), HashAuthToken(b))
}

func TestHashAuthToken_DifferentTokensDiffer(t *testing.T) {
	a := values.AuthToken{"scheme": "basic", "principal": "neo4j"}
	b := values.AuthToken{"scheme": "basic", "principal": "admin"}
	assert.NotEqual(t, HashAuthToken(a), HashAuthToken(b))
}

func TestHomeDBCache_SoftTrimsOnOverflow(t *testing.T) {
	c, err := NewHomeDBCache(10)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		key := HomeDBKey{ImpersonatedUser: "", AuthHash: uint64(i)}
		c.Put(key, "neo4j")
	}
	assert.LessOrEqual(t, c.lru.Len(), 10)
}
