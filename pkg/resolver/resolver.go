// Package resolver implements AddressResolver: the user callback consulted
// when a routing table needs seed addresses and, for the neo4j+s(ccs)?
// "dns+srv" convention, SRV-record expansion of a single logical hostname
// into the cluster's actual router endpoints (spec.md §5 "user callbacks",
// §6 "Connection URIs").
package resolver

import (
	"context"
	"fmt"

	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
)

// AddressResolver resolves one configured address into the set the driver
// should actually try. An empty result is invalid: spec.md's config surface
// requires "must return ≥1 address or fail the session".
type AddressResolver interface {
	Resolve(ctx context.Context, address string) ([]string, error)
}

// Lazy wraps a user-supplied resolve function, matching the driver's
// "resolver: AddressResolver (optional)" config knob — when nil, resolution
// is the identity function.
type Lazy struct {
	Fn func(ctx context.Context, address string) ([]string, error)
}

func (l Lazy) Resolve(ctx context.Context, address string) ([]string, error) {
	if l.Fn == nil {
		return []string{address}, nil
	}
	addrs, err := l.Fn(ctx, address)
	if err != nil {
		return nil, neo4jerr.UserCallback(fmt.Errorf("resolver: %w", err))
	}
	if len(addrs) == 0 {
		return nil, neo4jerr.InvalidConfig("resolver returned zero addresses")
	}
	return addrs, nil
}

// Chain runs resolvers in sequence, feeding each address through the next:
// e.g. a DNS+SRV expander followed by a user-supplied AddressResolver, the
// composition spec.md implies by listing both a built-in expansion scheme
// and a user resolver hook.
type Chain struct {
	Stages []AddressResolver
}

func (c Chain) Resolve(ctx context.Context, address string) ([]string, error) {
	current := []string{address}
	for _, stage := range c.Stages {
		var next []string
		for _, a := range current {
			resolved, err := stage.Resolve(ctx, a)
			if err != nil {
				return nil, err
			}
			next = append(next, resolved...)
		}
		current = next
	}
	if len(current) == 0 {
		return nil, neo4jerr.InvalidConfig("resolver chain produced zero addresses")
	}
	return current, nil
}
