package routing

import (
	"encoding/binary"
	"math"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/cuemby/warren-bolt/pkg/values"
)

// DefaultHomeDBCacheSize is N in spec.md §4.6's trim formula.
const DefaultHomeDBCacheSize = 1000

// HomeDBKey is (imp_user, session_auth): the home database resolved for one
// user is only reusable under the identical impersonation/auth identity
// (spec.md §4.6).
type HomeDBKey struct {
	ImpersonatedUser string
	AuthHash         uint64
}

// HashAuthToken derives a bit-exact, order-independent hash of an auth
// token: keys are sorted so map iteration order never affects the hash,
// floats hash by their IEEE-754 bit pattern, and nested maps/vectors
// recurse the same way (spec.md §4.6 "a bit-exact scheme").
func HashAuthToken(tok values.AuthToken) uint64 {
	h := xxhash.New()
	hashValue(h, map[string]any(tok))
	return h.Sum64()
}

func hashValue(h *xxhash.Digest, v any) {
	switch vv := v.(type) {
	case nil:
		h.Write([]byte{0})
	case bool:
		if vv {
			h.Write([]byte{1, 1})
		} else {
			h.Write([]byte{1, 0})
		}
	case string:
		h.Write([]byte{2})
		h.Write([]byte(vv))
	case int64:
		h.Write([]byte{3})
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(vv))
		h.Write(b[:])
	case float64:
		h.Write([]byte{4})
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(vv))
		h.Write(b[:])
	case []byte:
		h.Write([]byte{5})
		h.Write(vv)
	case []any:
		h.Write([]byte{6})
		for _, e := range vv {
			hashValue(h, e)
		}
	case map[string]any:
		h.Write([]byte{7})
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			hashValue(h, vv[k])
		}
	case values.Vector:
		h.Write([]byte{8, byte(vv.Kind)})
		hashValue(h, vectorElements(vv))
	default:
		h.Write([]byte{9})
	}
}

func vectorElements(v values.Vector) []any {
	out := make([]any, 0, v.Len())
	switch v.Kind {
	case values.VectorF64:
		for _, f := range v.F64 {
			out = append(out, f)
		}
	case values.VectorF32:
		for _, f := range v.F32 {
			out = append(out, float64(f))
		}
	case values.VectorI64:
		for _, n := range v.I64 {
			out = append(out, n)
		}
	case values.VectorI32:
		for _, n := range v.I32 {
			out = append(out, int64(n))
		}
	case values.VectorI16:
		for _, n := range v.I16 {
			out = append(out, int64(n))
		}
	case values.VectorI8:
		for _, n := range v.I8 {
			out = append(out, int64(n))
		}
	}
	return out
}

// HomeDBCache is a bounded LRU keyed by HomeDBKey, soft-trimming on
// overflow (spec.md §4.6). It wraps hashicorp/golang-lru for the recency
// list and adds the spec's bulk-trim behavior, which a plain fixed-size LRU
// (evict-one-on-overflow) does not provide.
type HomeDBCache struct {
	mu   sync.Mutex
	size int
	lru  *lru.Cache
}

func NewHomeDBCache(size int) (*HomeDBCache, error) {
	if size <= 0 {
		size = DefaultHomeDBCacheSize
	}
	// Oversize the underlying LRU so our own trim policy (not golang-lru's
	// single-entry eviction) decides when entries are dropped.
	inner, err := lru.New(size * 2)
	if err != nil {
		return nil, err
	}
	return &HomeDBCache{size: size, lru: inner}, nil
}

func (c *HomeDBCache) Get(key HomeDBKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *HomeDBCache) Put(key HomeDBKey, database string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, database)
	if c.lru.Len() > c.size {
		c.trim()
	}
}

// trim drops entries down to N - max(1, floor(0.01*N*log_N(N)))
// (spec.md §4.6's exact soft-trim formula). log_N(N) is 1 by definition of
// logarithm for any base N>1, so the formula reduces to N - max(1,
// floor(0.01*N)); written out in full here rather than pre-simplified so
// the trim size this cache targets stays traceable back to the spec.
func (c *HomeDBCache) trim() {
	n := float64(c.size)
	const logNOfN = 1.0
	target := int(n - math.Max(1, math.Floor(0.01*n*logNOfN)))
	if target < 0 {
		target = 0
	}
	for c.lru.Len() > target {
		c.lru.RemoveOldest()
	}
}
