// Package sched finds the items of a sub-stack that may run independently.
//
// Every value a sub-stack touches lives in a slot: either one of the
// values the block consumes from below (an external slot) or an output of
// one of its items. Simulating the stack over slots instead of values gives
// each item the exact slots it reads and writes, and therefore a dependency
// graph. Items whose effects are impure are additionally chained in source
// order.
package sched

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sanity-io/litter"
	"github.com/smasher164/sid/value"
	"golang.org/x/exp/slices"
)

var ErrNotSubStack = errors.New("sched: scripts run in order and have no schedule")

// External is the Node of slots that hold values from below the block.
const External = -1

type Slot struct {
	Node  int
	Index int
}

func (s Slot) String() string {
	if s.Node == External {
		return fmt.Sprintf("ext%d", s.Index)
	}
	return fmt.Sprintf("n%d.%d", s.Node, s.Index)
}

type EdgeKind int

const (
	// DataEdge means the target reads a slot written by the source.
	DataEdge EdgeKind = iota
	// EffectEdge orders two impure items.
	EffectEdge
)

func (k EdgeKind) String() string {
	if k == DataEdge {
		return "data"
	}
	return "effect"
}

type Edge struct {
	From, To int
	Kind     EdgeKind
}

type Node struct {
	Item  int
	Label string
	// In lists the slots the item reads, bottom to top.
	In     []Slot
	Out    int
	Impure bool
	Preds  []int
}

// Graph is the schedule of one sub-stack. Node i runs item i.
type Graph struct {
	Nodes []Node
	Edges []Edge
	// Levels groups nodes by their depth in the graph. Nodes in one level
	// are pairwise independent.
	Levels [][]int
	// Inputs is the number of values taken from below the block. External
	// slot 0 is the value nearest the top.
	Inputs int
	// Outputs are the slots left on the stack, bottom to top.
	Outputs []Slot
}

func Analyze(code *value.Code) (*Graph, error) {
	if code.Kind != value.SubStackBlock {
		return nil, ErrNotSubStack
	}
	if len(code.Effects) != len(code.Items) {
		return nil, fmt.Errorf("sched: code %q has not been checked", code.Source)
	}
	g := &Graph{Nodes: make([]Node, len(code.Items))}
	var stack []Slot
	lastImpure := -1
	for i, it := range code.Items {
		e := code.Effects[i]
		n := Node{Item: i, Label: value.ItemString(it), Out: len(e.Produces), Impure: e.Impure}
		n.In = make([]Slot, len(e.Consumes))
		for j := len(n.In) - 1; j >= 0; j-- {
			if len(stack) > 0 {
				n.In[j] = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			} else {
				n.In[j] = Slot{Node: External, Index: g.Inputs}
				g.Inputs++
			}
		}
		for _, s := range n.In {
			if s.Node != External {
				g.addEdge(&n, s.Node, i, DataEdge)
			}
		}
		if n.Impure {
			if lastImpure >= 0 {
				g.addEdge(&n, lastImpure, i, EffectEdge)
			}
			lastImpure = i
		}
		for k := 0; k < n.Out; k++ {
			stack = append(stack, Slot{Node: i, Index: k})
		}
		g.Nodes[i] = n
	}
	g.Outputs = stack
	g.level()
	return g, nil
}

func (g *Graph) addEdge(n *Node, from, to int, kind EdgeKind) {
	if slices.Contains(n.Preds, from) {
		return
	}
	n.Preds = append(n.Preds, from)
	g.Edges = append(g.Edges, Edge{From: from, To: to, Kind: kind})
}

func (g *Graph) level() {
	depth := make([]int, len(g.Nodes))
	for i, n := range g.Nodes {
		for _, p := range n.Preds {
			if depth[p]+1 > depth[i] {
				depth[i] = depth[p] + 1
			}
		}
		for len(g.Levels) <= depth[i] {
			g.Levels = append(g.Levels, nil)
		}
		g.Levels[depth[i]] = append(g.Levels[depth[i]], i)
	}
}

// Reaches reports whether there is a path from a to b.
func (g *Graph) Reaches(a, b int) bool {
	if a >= b {
		return false
	}
	seen := make([]bool, len(g.Nodes))
	var visit func(n int) bool
	visit = func(n int) bool {
		if n == a {
			return true
		}
		if n < a || seen[n] {
			return false
		}
		seen[n] = true
		for _, p := range g.Nodes[n].Preds {
			if visit(p) {
				return true
			}
		}
		return false
	}
	return visit(b)
}

// Independent reports whether neither node depends on the other.
func (g *Graph) Independent(a, b int) bool {
	return a != b && !g.Reaches(a, b) && !g.Reaches(b, a)
}

func (g *Graph) String() string {
	var b strings.Builder
	for i, n := range g.Nodes {
		fmt.Fprintf(&b, "n%d %s in=%v out=%d", i, n.Label, n.In, n.Out)
		if len(n.Preds) > 0 {
			fmt.Fprintf(&b, " after=%v", n.Preds)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "levels=%v inputs=%d outputs=%v", g.Levels, g.Inputs, g.Outputs)
	return b.String()
}

// Dump renders the whole graph structure for debugging.
func (g *Graph) Dump() string {
	return litter.Options{HidePrivateFields: true, Compact: false}.Sdump(g)
}
