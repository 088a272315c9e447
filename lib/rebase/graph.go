package rebase

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var ErrForeignSelector = errors.New("selector belongs to another step graph")

var graphIDs atomic.Uint64

// Edge connects a step to one of its parents. Siblings are ordered by Order.
type Edge struct {
	Order int
}

type parentEdge struct {
	parent int
	edge   Edge
}

type node struct {
	step    Step
	parents []parentEdge
	// origin is the commit this node was created for, kept after the step is replaced.
	origin plumbing.Hash
}

// StepGraph holds the steps of a rewrite. Nodes are never deleted, only replaced by Removed.
type StepGraph struct {
	id    uint64
	nodes []*node
}

// Selector points to a node of one StepGraph.
type Selector struct {
	graph uint64
	id    int
}

func (s Selector) String() string {
	return fmt.Sprintf("step %v", s.id)
}

func newStepGraph() *StepGraph {
	return &StepGraph{id: graphIDs.Add(1)}
}

func (g *StepGraph) Len() int {
	return len(g.nodes)
}

func (g *StepGraph) add(step Step) int {
	n := &node{step: step}
	if p, ok := step.(Pick); ok {
		n.origin = p.CommitID
	}

	g.nodes = append(g.nodes, n)
	return len(g.nodes) - 1
}

func (g *StepGraph) selector(id int) Selector {
	return Selector{graph: g.id, id: id}
}

func (g *StepGraph) resolve(sel Selector) (int, error) {
	if sel.graph != g.id {
		return 0, errors.Wrapf(ErrForeignSelector, "%v", sel)
	}
	if sel.id < 0 || sel.id >= len(g.nodes) {
		return 0, errors.Errorf("unknown %v", sel)
	}
	return sel.id, nil
}

func (g *StepGraph) step(id int) Step {
	return g.nodes[id].step
}

func (g *StepGraph) addParent(child, parent, order int) {
	n := g.nodes[child]
	n.parents = append(n.parents, parentEdge{parent: parent, edge: Edge{Order: order}})
}

func (g *StepGraph) nextOrder(id int) int {
	return lo.Reduce(g.nodes[id].parents, func(agg int, p parentEdge, _ int) int {
		if p.edge.Order >= agg {
			return p.edge.Order + 1
		}
		return agg
	}, 0)
}

// orderedParents returns the parents of a node sorted by edge order.
func (g *StepGraph) orderedParents(id int) []int {
	edges := append([]parentEdge{}, g.nodes[id].parents...)
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].edge.Order < edges[j].edge.Order
	})

	return lo.Map(edges, func(e parentEdge, _ int) int { return e.parent })
}

// children returns the nodes that have id as a parent.
func (g *StepGraph) children(id int) []int {
	var result []int
	for i, n := range g.nodes {
		if lo.ContainsBy(n.parents, func(p parentEdge) bool { return p.parent == id }) {
			result = append(result, i)
		}
	}
	return result
}

// redirectParent makes every edge from child to oldParent point to newParent instead.
func (g *StepGraph) redirectParent(child, oldParent, newParent int) {
	n := g.nodes[child]
	for i := range n.parents {
		if n.parents[i].parent == oldParent {
			n.parents[i].parent = newParent
		}
	}
}

// replaceParent replaces one parent of child by many. The first new parent takes the edge
// order of the old one, and the others are added after the existing edges.
func (g *StepGraph) replaceParent(child, oldParent int, newParents []int) error {
	n := g.nodes[child]

	idx := lo.IndexOf(lo.Map(n.parents, func(p parentEdge, _ int) int { return p.parent }), oldParent)
	if idx == -1 {
		return errors.Errorf("step %v is not a parent of step %v", oldParent, child)
	}

	if len(newParents) == 0 {
		n.parents = append(n.parents[:idx], n.parents[idx+1:]...)
		return nil
	}

	n.parents[idx].parent = newParents[0]

	for _, p := range newParents[1:] {
		g.addParent(child, p, g.nextOrder(child))
	}

	return nil
}

// Describe lists the steps reachable from the heads, one per line, with their parents.
func (g *StepGraph) Describe(heads ...Selector) string {
	sb := strings.Builder{}

	seen := map[int]bool{}
	var visit func(id int)
	visit = func(id int) {
		if seen[id] {
			return
		}
		seen[id] = true

		parents := g.orderedParents(id)
		sb.WriteString(fmt.Sprintf("%v: %v", id, g.nodes[id].step))
		if len(parents) > 0 {
			sb.WriteString(fmt.Sprintf(" -> %v", strings.Join(lo.Map(parents, func(p int, _ int) string {
				return fmt.Sprint(p)
			}), ", ")))
		}
		sb.WriteString("\n")

		for _, p := range parents {
			visit(p)
		}
	}

	for _, h := range heads {
		if h.graph == g.id {
			visit(h.id)
		}
	}

	return sb.String()
}
