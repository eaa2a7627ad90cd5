package resolve

import (
	"context"
	"sync"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/syntax"
)

// Strategy is one resolution tier. A nil symbol with a nil error means the
// tier has no answer and the next one is tried.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, o oracle.Oracle, invocation *syntax.Node) (oracle.Symbol, error)
}

// DefaultStrategies returns the built-in tiers in resolution order.
func DefaultStrategies() []Strategy {
	return []Strategy{Primary{}, FirstCandidate{}, Declared{}}
}

// Primary accepts the symbol the oracle bound uniquely at the site.
type Primary struct{}

func (Primary) Name() string { return "primary" }

func (Primary) Resolve(ctx context.Context, o oracle.Oracle, inv *syntax.Node) (oracle.Symbol, error) {
	site, err := o.ResolveSite(ctx, inv)
	if err != nil {
		return nil, err
	}
	return site.Primary, nil
}

// FirstCandidate accepts the first candidate of an ambiguous site, in the
// order the oracle returned them.
type FirstCandidate struct{}

func (FirstCandidate) Name() string { return "first_candidate" }

func (FirstCandidate) Resolve(ctx context.Context, o oracle.Oracle, inv *syntax.Node) (oracle.Symbol, error) {
	site, err := o.ResolveSite(ctx, inv)
	if err != nil {
		return nil, err
	}
	if len(site.Candidates) == 0 {
		return nil, nil
	}
	return site.Candidates[0], nil
}

// Declared asks for a symbol declared by the invocation node itself.
type Declared struct{}

func (Declared) Name() string { return "declared" }

func (Declared) Resolve(ctx context.Context, o oracle.Oracle, inv *syntax.Node) (oracle.Symbol, error) {
	return o.ResolveDeclared(ctx, inv)
}

// siteCache wraps an oracle for a single invocation so ResolveSite reaches
// the underlying oracle at most once.
type siteCache struct {
	oracle.Oracle
	node *syntax.Node

	once sync.Once
	site oracle.Site
	err  error
}

func (c *siteCache) ResolveSite(ctx context.Context, n *syntax.Node) (oracle.Site, error) {
	if n != c.node {
		return c.Oracle.ResolveSite(ctx, n)
	}
	c.once.Do(func() {
		c.site, c.err = c.Oracle.ResolveSite(ctx, n)
	})
	return c.site, c.err
}
