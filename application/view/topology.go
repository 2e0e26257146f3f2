package view

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aymericbeaumet/loupe/domain/graph"
	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// ErrInvalidElements is wrapped when an element list cannot form a graph.
var ErrInvalidElements = errors.New("invalid element list")

// Topology indexes an element list as a directed graph.
type Topology struct {
	nodes   []graph.Element
	edges   []graph.Edge
	index   map[string]int64
	byID    map[string]graph.Element
	forward *simple.DirectedGraph
	reverse *simple.DirectedGraph
}

// NewTopology checks identities and edge endpoints while indexing.
func NewTopology(elements []graph.Element) (*Topology, error) {
	t := &Topology{
		index:   make(map[string]int64),
		byID:    make(map[string]graph.Element, len(elements)),
		forward: simple.NewDirectedGraph(),
		reverse: simple.NewDirectedGraph(),
	}

	for _, el := range elements {
		id := el.ElementID()
		if _, dup := t.byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidElements, id)
		}
		t.byID[id] = el

		if el.Kind() == graph.KindEdge {
			continue
		}
		gid := int64(len(t.nodes))
		t.index[id] = gid
		t.nodes = append(t.nodes, el)
		t.forward.AddNode(simple.Node(gid))
		t.reverse.AddNode(simple.Node(gid))
	}

	for _, el := range elements {
		edge, ok := el.(graph.Edge)
		if !ok {
			continue
		}
		from, okFrom := t.index[edge.Source]
		to, okTo := t.index[edge.Target]
		if !okFrom || !okTo {
			return nil, fmt.Errorf("%w: edge %q references a missing node", ErrInvalidElements, edge.ID)
		}
		if from == to {
			return nil, fmt.Errorf("%w: edge %q is a self loop", ErrInvalidElements, edge.ID)
		}
		if t.forward.HasEdgeFromTo(from, to) {
			return nil, fmt.Errorf("%w: edge %q duplicates another edge", ErrInvalidElements, edge.ID)
		}
		t.forward.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		t.reverse.SetEdge(simple.Edge{F: simple.Node(to), T: simple.Node(from)})
		t.edges = append(t.edges, edge)
	}

	return t, nil
}

// Element returns the element with the given id.
func (t *Topology) Element(id string) (graph.Element, bool) {
	el, ok := t.byID[id]
	return el, ok
}

// Nodes returns the node elements in list order.
func (t *Topology) Nodes() []graph.Element { return t.nodes }

// Edges returns the edge elements in list order.
func (t *Topology) Edges() []graph.Edge { return t.edges }

// Descendants returns the ids reachable from id following edges forward.
func (t *Topology) Descendants(id string) []string {
	return t.reach(t.forward, id)
}

// Ancestors returns the ids reachable from id following edges backward.
func (t *Topology) Ancestors(id string) []string {
	return t.reach(t.reverse, id)
}

func (t *Topology) reach(g *simple.DirectedGraph, id string) []string {
	gid, ok := t.index[id]
	if !ok {
		return nil
	}
	var ids []string
	bf := traverse.BreadthFirst{
		Visit: func(n gonum.Node) {
			if n.ID() != gid {
				ids = append(ids, t.nodes[n.ID()].ElementID())
			}
		},
	}
	bf.Walk(g, simple.Node(gid), nil)
	sort.Strings(ids)
	return ids
}

func (t *Topology) collect(it gonum.Nodes) []string {
	var ids []string
	for it.Next() {
		ids = append(ids, t.nodes[it.Node().ID()].ElementID())
	}
	sort.Strings(ids)
	return ids
}

func (t *Topology) gid(id string) int64 { return t.index[id] }
