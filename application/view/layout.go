package view

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/aymericbeaumet/loupe/domain/graph"
	"gonum.org/v1/gonum/graph/topo"
)

// DefaultLayout is the name of the layered layout registered by Init.
const DefaultLayout = "layered"

var (
	// ErrNotInitialized is returned by Render before Init has run.
	ErrNotInitialized = errors.New("view: layouts not initialized")
	// ErrUnknownLayout is returned when no layout is registered under a name.
	ErrUnknownLayout = errors.New("view: unknown layout")
	// ErrCycle is returned by the layered layout on a cyclic element list.
	ErrCycle = errors.New("view: element graph has a cycle")
)

// Layout positions the nodes of a topology.
type Layout interface {
	Arrange(t *Topology) (Scene, error)
}

// LayoutFunc adapts a function to Layout.
type LayoutFunc func(t *Topology) (Scene, error)

// Arrange calls f.
func (f LayoutFunc) Arrange(t *Topology) (Scene, error) { return f(t) }

var (
	registryMu  sync.RWMutex
	registry    map[string]Layout
	initialized bool
	initOnce    sync.Once
)

// Init registers the built in layouts. It must be called once by whatever
// composes views, before the first Render. Further calls are no-ops.
func Init() {
	initOnce.Do(func() {
		registryMu.Lock()
		defer registryMu.Unlock()
		if registry == nil {
			registry = make(map[string]Layout)
		}
		registry[DefaultLayout] = Layered{}
		initialized = true
	})
}

// RegisterLayout adds or replaces a named layout.
func RegisterLayout(name string, l Layout) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registry == nil {
		registry = make(map[string]Layout)
	}
	registry[name] = l
}

func lookupLayout(name string) (Layout, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if !initialized {
		return nil, ErrNotInitialized
	}
	l, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
	return l, nil
}

// Layered places nodes top to bottom by rank, the length of the longest
// path from a source. Within a rank, nodes follow their leftmost parent,
// then their label, then their id, so the result only depends on the
// element set.
type Layered struct {
	RankSpacing float64
	NodeGap     float64
	NodeHeight  float64
	CharWidth   float64
	Padding     float64
}

func (l Layered) withDefaults() Layered {
	if l.RankSpacing <= 0 {
		l.RankSpacing = 80
	}
	if l.NodeGap <= 0 {
		l.NodeGap = 16
	}
	if l.NodeHeight <= 0 {
		l.NodeHeight = 24
	}
	if l.CharWidth <= 0 {
		l.CharWidth = 8
	}
	if l.Padding <= 0 {
		l.Padding = 16
	}
	return l
}

type placed struct {
	el    graph.Element
	label string
	rank  int
	index int
	key   float64
}

// Arrange implements Layout.
func (l Layered) Arrange(t *Topology) (Scene, error) {
	l = l.withDefaults()
	scene := Scene{Nodes: []SceneNode{}, Edges: []SceneEdge{}}
	if len(t.Nodes()) == 0 {
		return scene, nil
	}

	order, err := topo.Sort(t.forward)
	if err != nil {
		var unorderable topo.Unorderable
		if errors.As(err, &unorderable) {
			return Scene{}, ErrCycle
		}
		return Scene{}, err
	}

	rank := make([]int, len(t.nodes))
	maxRank := 0
	for _, n := range order {
		r := 0
		preds := t.forward.To(n.ID())
		for preds.Next() {
			if pr := rank[preds.Node().ID()] + 1; pr > r {
				r = pr
			}
		}
		rank[n.ID()] = r
		if r > maxRank {
			maxRank = r
		}
	}

	ranks := make([][]*placed, maxRank+1)
	nodes := make([]*placed, len(t.nodes))
	for gid, el := range t.nodes {
		p := &placed{el: el, label: labelOf(el), rank: rank[gid]}
		nodes[gid] = p
		ranks[p.rank] = append(ranks[p.rank], p)
	}

	for r, row := range ranks {
		for _, p := range row {
			p.key = 0
			if r == 0 {
				continue
			}
			p.key = 2
			preds := t.forward.To(t.gid(p.el.ElementID()))
			for preds.Next() {
				parent := nodes[preds.Node().ID()]
				if k := float64(parent.index) / float64(len(ranks[parent.rank])); k < p.key {
					p.key = k
				}
			}
		}
		sort.SliceStable(row, func(i, j int) bool {
			a, b := row[i], row[j]
			if a.key != b.key {
				return a.key < b.key
			}
			if a.label != b.label {
				return a.label < b.label
			}
			return a.el.ElementID() < b.el.ElementID()
		})
		for i, p := range row {
			p.index = i
		}
	}

	widths := make([]float64, len(ranks))
	for r, row := range ranks {
		for i, p := range row {
			if i > 0 {
				widths[r] += l.NodeGap
			}
			widths[r] += l.width(p.label)
		}
		if widths[r] > scene.Width {
			scene.Width = widths[r]
		}
	}

	for r, row := range ranks {
		cursor := (scene.Width - widths[r]) / 2
		for _, p := range row {
			w := l.width(p.label)
			scene.Nodes = append(scene.Nodes, SceneNode{
				ID:     p.el.ElementID(),
				Kind:   p.el.Kind(),
				Label:  p.label,
				Rank:   r,
				X:      cursor + w/2,
				Y:      float64(r)*l.RankSpacing + l.NodeHeight/2,
				Width:  w,
				Height: l.NodeHeight,
			})
			cursor += w + l.NodeGap
		}
	}
	scene.Height = float64(maxRank)*l.RankSpacing + l.NodeHeight

	for _, e := range t.Edges() {
		scene.Edges = append(scene.Edges, SceneEdge{ID: e.ID, Source: e.Source, Target: e.Target})
	}
	sort.Slice(scene.Edges, func(i, j int) bool { return scene.Edges[i].ID < scene.Edges[j].ID })

	return scene, nil
}

func (l Layered) width(label string) float64 {
	w := float64(utf8.RuneCountInString(label))*l.CharWidth + l.Padding
	if w < l.NodeHeight {
		w = l.NodeHeight
	}
	return w
}

func labelOf(el graph.Element) string {
	switch e := el.(type) {
	case graph.ByteNode:
		return e.Label
	case graph.RecordNode:
		return e.Record.DisplayName()
	default:
		return el.ElementID()
	}
}
