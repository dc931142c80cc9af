// Package auth implements AuthManager: the credential source consulted on
// every connection acquisition, with re-auth on an authorization-expired
// server error coalesced across concurrent callers (spec.md §5 "The auth
// manager is consulted with a read-mostly guard... a security-expired
// event triggers a single refresh with other threads blocked on the same
// guard").
package auth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
	"github.com/cuemby/warren-bolt/pkg/values"
)

// Manager supplies the AuthToken for new connections and is told when the
// server has rejected the previously issued one.
type Manager interface {
	GetAuth(ctx context.Context) (values.AuthToken, error)
	// HandleSecurityError is invoked when a connection sees an
	// AuthorizationExpired-classified ServerError; it returns whether the
	// token was actually rotated (a caller can skip a redundant re-fetch
	// when another goroutine already refreshed it).
	HandleSecurityError(ctx context.Context, code string) (rotated bool, err error)
}

// Static wraps a fixed, never-expiring token (basic auth with a long-lived
// password, or no-auth deployments).
type Static struct {
	Token values.AuthToken
}

func (s Static) GetAuth(ctx context.Context) (values.AuthToken, error) { return s.Token, nil }
func (s Static) HandleSecurityError(ctx context.Context, code string) (bool, error) {
	return false, nil
}

// Refreshing wraps a user-supplied fetch function (e.g. an OIDC token
// exchange) behind a cache and a singleflight group, so a thundering herd
// of connections hitting AuthorizationExpired at once triggers exactly one
// upstream fetch.
type Refreshing struct {
	Fetch func(ctx context.Context) (values.AuthToken, error)

	mu      sync.RWMutex
	current values.AuthToken
	have    bool
	group   singleflight.Group
}

func (r *Refreshing) GetAuth(ctx context.Context) (values.AuthToken, error) {
	r.mu.RLock()
	if r.have {
		tok := r.current
		r.mu.RUnlock()
		return tok, nil
	}
	r.mu.RUnlock()
	return r.refresh(ctx)
}

func (r *Refreshing) HandleSecurityError(ctx context.Context, code string) (bool, error) {
	if code != "Neo.ClientError.Security.AuthorizationExpired" {
		return false, nil
	}
	_, err := r.refresh(ctx)
	return err == nil, err
}

func (r *Refreshing) refresh(ctx context.Context) (values.AuthToken, error) {
	result, err, _ := r.group.Do("refresh", func() (any, error) {
		tok, err := r.Fetch(ctx)
		if err != nil {
			return nil, neo4jerr.UserCallback(fmt.Errorf("auth: %w", err))
		}
		r.mu.Lock()
		r.current = tok
		r.have = true
		r.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(values.AuthToken), nil
}
