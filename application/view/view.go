// Package view renders element lists on a Surface and drives selection
// highlighting and inspection popups over the rendered graph.
package view

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aymericbeaumet/loupe/domain/graph"
	"github.com/aymericbeaumet/loupe/domain/pathtext"
	"go.uber.org/zap"
)

var (
	// ErrDestroyed is returned by every View method after Destroy.
	ErrDestroyed = errors.New("view: destroyed")
	// ErrUnknownElement is returned when an id is not part of the view.
	ErrUnknownElement = errors.New("view: unknown element")
)

type options struct {
	layout string
	logger *zap.Logger
}

// Option configures Render.
type Option func(*options)

// WithLayout selects a registered layout by name.
func WithLayout(name string) Option {
	return func(o *options) { o.layout = name }
}

// WithLogger sets the logger used for view events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// View is one rendered element list. It owns the drawing on its surface and
// every popup it opened until Destroy.
type View struct {
	mu        sync.Mutex
	surface   Surface
	topology  *Topology
	scene     Scene
	logger    *zap.Logger
	selection map[string][]string
	refs      map[string]int
	popups    map[string]Popup
	destroyed bool
}

// Render lays out elements and draws them on surface. On failure the
// surface is cleared and no View is returned.
func Render(surface Surface, elements []graph.Element, opts ...Option) (*View, error) {
	o := options{layout: DefaultLayout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	layout, err := lookupLayout(o.layout)
	if err != nil {
		return nil, err
	}

	topology, err := NewTopology(elements)
	if err != nil {
		surface.Clear()
		return nil, err
	}

	scene, err := layout.Arrange(topology)
	if err != nil {
		surface.Clear()
		return nil, fmt.Errorf("layout %q: %w", o.layout, err)
	}

	if err := surface.Draw(scene); err != nil {
		surface.Clear()
		return nil, fmt.Errorf("draw: %w", err)
	}

	o.logger.Debug("View rendered",
		zap.String("layout", o.layout),
		zap.Int("nodes", len(scene.Nodes)),
		zap.Int("edges", len(scene.Edges)),
	)

	return &View{
		surface:   surface,
		topology:  topology,
		scene:     scene,
		logger:    o.logger,
		selection: make(map[string][]string),
		refs:      make(map[string]int),
		popups:    make(map[string]Popup),
	}, nil
}

// Scene returns the laid out scene.
func (v *View) Scene() Scene {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scene
}

// Select highlights id with its reach: a node brings its ancestors and
// descendants, an edge its two endpoints. Selecting twice is a no-op.
func (v *View) Select(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.destroyed {
		return ErrDestroyed
	}
	if _, ok := v.selection[id]; ok {
		return nil
	}

	reach, err := v.reach(id)
	if err != nil {
		return err
	}
	v.selection[id] = reach

	var on []string
	for _, rid := range reach {
		v.refs[rid]++
		if v.refs[rid] == 1 {
			on = append(on, rid)
		}
	}
	if len(on) > 0 {
		v.surface.SetHighlighted(on, true)
	}
	return nil
}

// Deselect releases exactly what the matching Select added. Elements still
// held by another selection stay highlighted.
func (v *View) Deselect(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.destroyed {
		return ErrDestroyed
	}
	reach, ok := v.selection[id]
	if !ok {
		return nil
	}
	delete(v.selection, id)

	var off []string
	for _, rid := range reach {
		v.refs[rid]--
		if v.refs[rid] == 0 {
			delete(v.refs, rid)
			off = append(off, rid)
		}
	}
	if len(off) > 0 {
		v.surface.SetHighlighted(off, false)
	}
	return nil
}

// Selected returns the active selections, sorted.
func (v *View) Selected() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, 0, len(v.selection))
	for id := range v.selection {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Highlighted returns the highlighted ids, sorted.
func (v *View) Highlighted() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, 0, len(v.refs))
	for id := range v.refs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsHighlighted reports whether id is held by at least one selection.
func (v *View) IsHighlighted(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refs[id] > 0
}

// HoverEnter shows the inspection popup of id, opening it on first use.
// Byte nodes show their raw path, record nodes their full record. Edges
// have no popup.
func (v *View) HoverEnter(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.destroyed {
		return ErrDestroyed
	}
	el, ok := v.topology.Element(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownElement, id)
	}

	popup, ok := v.popups[id]
	if !ok {
		var content string
		switch e := el.(type) {
		case graph.ByteNode:
			content = pathtext.HexList(e.Path)
		case graph.RecordNode:
			content = e.Record.Pretty()
		default:
			return nil
		}
		p, err := v.surface.OpenPopup(id, content)
		if err != nil {
			return fmt.Errorf("open popup for %q: %w", id, err)
		}
		v.popups[id] = p
		popup = p
	}
	popup.Show()
	return nil
}

// HoverLeave hides the popup of id, if one was opened.
func (v *View) HoverLeave(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.destroyed {
		return ErrDestroyed
	}
	if popup, ok := v.popups[id]; ok {
		popup.Hide()
	}
	return nil
}

// Popups returns the ids holding a popup, sorted.
func (v *View) Popups() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, 0, len(v.popups))
	for id := range v.popups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Destroy destroys every popup and clears the surface. It is safe to call
// more than once.
func (v *View) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.destroyed {
		return
	}
	v.destroyed = true

	for id, popup := range v.popups {
		popup.Destroy()
		delete(v.popups, id)
	}
	v.selection = nil
	v.refs = nil
	v.surface.Clear()

	v.logger.Debug("View destroyed")
}

func (v *View) reach(id string) ([]string, error) {
	el, ok := v.topology.Element(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownElement, id)
	}

	if edge, ok := el.(graph.Edge); ok {
		if edge.Source == edge.Target {
			return []string{edge.Source}, nil
		}
		ids := []string{edge.Source, edge.Target}
		sort.Strings(ids)
		return ids, nil
	}

	ids := []string{id}
	ids = append(ids, v.topology.Ancestors(id)...)
	ids = append(ids, v.topology.Descendants(id)...)
	sort.Strings(ids)
	return ids, nil
}
