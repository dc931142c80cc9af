package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/warren-bolt/pkg/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_ReturnsFixedToken(t *testing.T) {
	tok := values.AuthToken{"scheme": "basic", "principal": "neo4j"}
	s := Static{Token: tok}
	got, err := s.GetAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "neo4j", got.Principal())
}

func TestRefreshing_CoalescesConcurrentRefreshes(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	r := &Refreshing{Fetch: func(ctx context.Context) (values.AuthToken, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return values.AuthToken{"scheme": "bearer", "credentials": "tok-1"}, nil
	}}

	// The fetch is held open until every caller has started, so the 20
	// refreshes overlap and singleflight can merge them.
	var started, wg sync.WaitGroup
	started.Add(20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			_, err := r.refresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRefreshing_IgnoresNonExpiredSecurityErrors(t *testing.T) {
	var calls int32
	r := &Refreshing{Fetch: func(ctx context.Context) (values.AuthToken, error) {
		atomic.AddInt32(&calls, 1)
		return values.AuthToken{}, nil
	}}
	rotated, err := r.HandleSecurityError(context.Background(), "Neo.ClientError.Security.Forbidden")
	require.NoError(t, err)
	assert.False(t, rotated)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
