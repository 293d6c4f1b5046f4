package vm

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/smasher164/sid/internal/panicerr"
	"github.com/smasher164/sid/sched"
	"golang.org/x/sync/errgroup"
)

// Policy decides the order in which the nodes of a sub-stack run. Every
// policy must start a node only after all of its predecessors finished.
type Policy interface {
	schedule(ctx context.Context, g *sched.Graph, run func(ctx context.Context, node int) error) error
	String() string
}

// Sequential runs nodes in source order.
var Sequential Policy = sequential{}

type sequential struct{}

func (sequential) String() string { return "sequential" }

func (sequential) schedule(ctx context.Context, g *sched.Graph, run func(context.Context, int) error) error {
	for i := range g.Nodes {
		if err := run(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// Concurrent runs each node in its own goroutine once its predecessors are
// done, at most limit at a time. A limit of zero or less means no limit.
func Concurrent(limit int) Policy {
	return concurrent{limit: limit}
}

type concurrent struct{ limit int }

func (c concurrent) String() string { return fmt.Sprintf("concurrent(%d)", c.limit) }

func (c concurrent) schedule(ctx context.Context, g *sched.Graph, run func(context.Context, int) error) error {
	eg, ctx := errgroup.WithContext(ctx)
	if c.limit > 0 {
		eg.SetLimit(c.limit)
	}
	done := make([]chan struct{}, len(g.Nodes))
	for i := range done {
		done[i] = make(chan struct{})
	}
	// Nodes start in index order and only wait on lower indices, so a
	// limited group always holds a node whose predecessors are done.
	for i, n := range g.Nodes {
		eg.Go(func() error {
			for _, p := range n.Preds {
				select {
				case <-done[p]:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			err := panicerr.Recover(fmt.Sprintf("node %d (%s)", i, n.Label), func() error {
				return run(ctx, i)
			})
			if err == nil {
				close(done[i])
			}
			return err
		})
	}
	return eg.Wait()
}

// Shuffled runs the levels of a graph in order and the nodes within each
// level in a random order drawn from seed.
func Shuffled(seed int64) Policy {
	return &shuffled{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

type shuffled struct {
	seed int64
	mu   sync.Mutex
	rng  *rand.Rand
}

func (s *shuffled) String() string { return fmt.Sprintf("shuffled(%d)", s.seed) }

func (s *shuffled) perm(n int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Perm(n)
}

func (s *shuffled) schedule(ctx context.Context, g *sched.Graph, run func(context.Context, int) error) error {
	for _, level := range g.Levels {
		for _, j := range s.perm(len(level)) {
			if err := run(ctx, level[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParsePolicy maps a command-line name to a policy.
func ParsePolicy(name string, seed int64) (Policy, error) {
	switch name {
	case "", "sequential":
		return Sequential, nil
	case "concurrent":
		return Concurrent(0), nil
	case "shuffled":
		return Shuffled(seed), nil
	}
	return nil, fmt.Errorf("unknown policy %q", name)
}
