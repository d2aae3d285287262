// Package graph is the call-scoped dependency graph the retry planner
// builds from a workflow's edge set. Node ids are opaque; trigger ids
// and job ids share the namespace. Pruning computes the ancestor
// closure of a node: everything that must already have run, or be
// re-run, to legitimately produce that node's input.
package graph

import (
	"sort"

	"github.com/heimdalr/dag"

	"github.com/eleven-am/foreman/internal/domain"
)

type Graph struct {
	d *dag.DAG
}

func New() *Graph {
	return &Graph{d: dag.NewDAG()}
}

// AddEdge inserts a directed edge, creating unseen vertices on first
// reference. Duplicate insertion is a no-op. An edge that would close
// a cycle is a programming-invariant violation and fails loudly.
func (g *Graph) AddEdge(from, to string) error {
	if from == "" || to == "" {
		return domain.NewValidationError("edge", "source and target cannot be empty")
	}

	if err := g.ensureVertex(from); err != nil {
		return err
	}
	if err := g.ensureVertex(to); err != nil {
		return err
	}

	err := g.d.AddEdge(from, to)
	if err == nil {
		return nil
	}
	if _, ok := err.(dag.EdgeDuplicateError); ok {
		return nil
	}
	if _, ok := err.(dag.EdgeLoopError); ok {
		return &domain.GraphCycleError{From: from, To: to}
	}
	if _, ok := err.(dag.SrcDstEqualError); ok {
		return &domain.GraphCycleError{From: from, To: to}
	}
	return err
}

// AddNode inserts a node with no edges; a no-op when it already
// exists.
func (g *Graph) AddNode(id string) error {
	if id == "" {
		return domain.NewValidationError("node", "id cannot be empty")
	}
	return g.ensureVertex(id)
}

// Prune returns the induced subgraph containing node and every
// ancestor reachable upstream of it, with the edges among exactly that
// set. Descendants are excluded. A node with no inbound edges prunes
// to the singleton {node}; an unknown node fails with not-found.
func (g *Graph) Prune(node string) (*Graph, error) {
	if !g.Contains(node) {
		return nil, domain.NewNotFoundError("node", node)
	}

	ancestors, err := g.d.GetAncestors(node)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]struct{}, len(ancestors)+1)
	keep[node] = struct{}{}
	for id := range ancestors {
		keep[id] = struct{}{}
	}

	pruned := New()
	for id := range keep {
		if err := pruned.ensureVertex(id); err != nil {
			return nil, err
		}
	}
	for id := range keep {
		children, err := g.d.GetChildren(id)
		if err != nil {
			return nil, err
		}
		for child := range children {
			if _, ok := keep[child]; !ok {
				continue
			}
			if err := pruned.AddEdge(id, child); err != nil {
				return nil, err
			}
		}
	}

	return pruned, nil
}

// Nodes returns the graph's node ids in sorted order.
func (g *Graph) Nodes() []string {
	vertices := g.d.GetVertices()
	ids := make([]string, 0, len(vertices))
	for id := range vertices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodeSet returns the node ids as a membership set.
func (g *Graph) NodeSet() map[string]struct{} {
	vertices := g.d.GetVertices()
	set := make(map[string]struct{}, len(vertices))
	for id := range vertices {
		set[id] = struct{}{}
	}
	return set
}

func (g *Graph) Contains(id string) bool {
	_, err := g.d.GetVertex(id)
	return err == nil
}

func (g *Graph) Size() int {
	return g.d.GetOrder()
}

func (g *Graph) ensureVertex(id string) error {
	err := g.d.AddVertexByID(id, id)
	if err == nil {
		return nil
	}
	if _, ok := err.(dag.IDDuplicateError); ok {
		return nil
	}
	if _, ok := err.(dag.VertexDuplicateError); ok {
		return nil
	}
	return err
}

// FromEdges builds a graph from a workflow's full edge set, skipping
// disabled edges.
func FromEdges(edges []domain.Edge) (*Graph, error) {
	g := New()
	for _, edge := range edges {
		if !edge.Enabled {
			continue
		}
		if err := g.AddEdge(edge.SourceID(), edge.TargetJobID); err != nil {
			return nil, err
		}
	}
	return g, nil
}
