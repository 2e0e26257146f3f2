package view

import (
	"errors"
	"sort"
	"testing"

	"github.com/aymericbeaumet/loupe/domain/graph"
	"github.com/aymericbeaumet/loupe/domain/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPopup struct {
	id        string
	content   string
	visible   bool
	destroyed bool
}

func (p *recordingPopup) Show()    { p.visible = true }
func (p *recordingPopup) Hide()    { p.visible = false }
func (p *recordingPopup) Destroy() { p.destroyed = true; p.visible = false }

type recordingSurface struct {
	drawn       *Scene
	drawErr     error
	highlighted map[string]bool
	popups      []*recordingPopup
	clears      int
}

func newRecordingSurface() *recordingSurface {
	return &recordingSurface{highlighted: map[string]bool{}}
}

func (s *recordingSurface) Draw(scene Scene) error {
	if s.drawErr != nil {
		return s.drawErr
	}
	s.drawn = &scene
	return nil
}

func (s *recordingSurface) SetHighlighted(ids []string, on bool) {
	for _, id := range ids {
		if on {
			s.highlighted[id] = true
		} else {
			delete(s.highlighted, id)
		}
	}
}

func (s *recordingSurface) OpenPopup(id, content string) (Popup, error) {
	p := &recordingPopup{id: id, content: content}
	s.popups = append(s.popups, p)
	return p, nil
}

func (s *recordingSurface) Clear() {
	s.drawn = nil
	s.clears++
}

func (s *recordingSurface) highlightedIDs() []string {
	ids := []string{}
	for id := range s.highlighted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sample builds:
//
//	"ab" -> a, b        (seed "ab", two children)
//	a    -> record:1
//	b    -> record:1, c
func sample(t *testing.T) []graph.Element {
	t.Helper()
	one := trie.Record{ID: "1", Name: "one"}
	root := &trie.Node{Children: []trie.Child{
		{Key: 'a', Node: &trie.Node{Records: []trie.Record{one}}},
		{Key: 'b', Node: &trie.Node{
			Children: []trie.Child{{Key: 'c', Node: &trie.Node{}}},
			Records:  []trie.Record{one},
		}},
	}}
	elements, err := graph.BuildElements(&trie.Payload{Seeds: []trie.Seed{{Word: "x", Node: root}}})
	require.NoError(t, err)
	return elements
}

func idByLabel(t *testing.T, elements []graph.Element, label string) string {
	t.Helper()
	for _, el := range elements {
		if n, ok := el.(graph.ByteNode); ok && n.Label == label {
			return n.ID
		}
	}
	t.Fatalf("no node labeled %q", label)
	return ""
}

func render(t *testing.T, elements []graph.Element) (*View, *recordingSurface) {
	t.Helper()
	Init()
	surface := newRecordingSurface()
	v, err := Render(surface, elements)
	require.NoError(t, err)
	return v, surface
}

func TestRender_Empty(t *testing.T) {
	v, surface := render(t, []graph.Element{})
	require.NotNil(t, surface.drawn)
	assert.Empty(t, surface.drawn.Nodes)
	assert.Empty(t, surface.drawn.Edges)

	v.Destroy()
	assert.Equal(t, 1, surface.clears)
}

func TestRender_Deterministic(t *testing.T) {
	elements := sample(t)
	a, _ := render(t, elements)

	reversed := make([]graph.Element, len(elements))
	for i, el := range elements {
		reversed[len(elements)-1-i] = el
	}
	b, _ := render(t, reversed)

	sortNodes := func(s Scene) []SceneNode {
		nodes := append([]SceneNode(nil), s.Nodes...)
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
		return nodes
	}
	assert.Equal(t, sortNodes(a.Scene()), sortNodes(b.Scene()))
	assert.Equal(t, a.Scene().Edges, b.Scene().Edges)
}

func TestRender_Ranks(t *testing.T) {
	elements := sample(t)
	v, _ := render(t, elements)
	scene := v.Scene()

	rank := func(id string) int {
		n, ok := scene.Node(id)
		require.True(t, ok)
		return n.Rank
	}
	assert.Equal(t, 0, rank(idByLabel(t, elements, "x")))
	assert.Equal(t, 1, rank(idByLabel(t, elements, "xa")))
	assert.Equal(t, 2, rank(idByLabel(t, elements, "xbc")))
	// longest path: x -> xb -> record:1
	assert.Equal(t, 2, rank("record:1"))

	for _, e := range scene.Edges {
		assert.Less(t, rank(e.Source), rank(e.Target))
	}
}

func TestRender_NotInitializedOrUnknownLayout(t *testing.T) {
	Init()
	surface := newRecordingSurface()
	_, err := Render(surface, sample(t), WithLayout("nope"))
	assert.ErrorIs(t, err, ErrUnknownLayout)
	assert.Nil(t, surface.drawn)
}

func TestRender_FailuresClearSurface(t *testing.T) {
	Init()

	t.Run("draw", func(t *testing.T) {
		surface := newRecordingSurface()
		surface.drawErr = errors.New("no canvas")
		v, err := Render(surface, sample(t))
		require.Error(t, err)
		assert.Nil(t, v)
		assert.Equal(t, 1, surface.clears)
	})

	t.Run("cycle", func(t *testing.T) {
		elements := []graph.Element{
			graph.ByteNode{ID: "0"}, graph.ByteNode{ID: "1"},
			graph.Edge{ID: graph.EdgeID("0", "1"), Source: "0", Target: "1"},
			graph.Edge{ID: graph.EdgeID("1", "0"), Source: "1", Target: "0"},
		}
		surface := newRecordingSurface()
		_, err := Render(surface, elements)
		assert.ErrorIs(t, err, ErrCycle)
		assert.Equal(t, 1, surface.clears)
	})

	t.Run("dangling edge", func(t *testing.T) {
		surface := newRecordingSurface()
		_, err := Render(surface, []graph.Element{graph.Edge{ID: "e", Source: "0", Target: "1"}})
		assert.ErrorIs(t, err, ErrInvalidElements)
		assert.Equal(t, 1, surface.clears)
	})
}

func TestRegisterLayout(t *testing.T) {
	Init()
	called := false
	RegisterLayout("flat", LayoutFunc(func(topology *Topology) (Scene, error) {
		called = true
		return Scene{}, nil
	}))
	_, err := Render(newRecordingSurface(), sample(t), WithLayout("flat"))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestSelect_NodeHighlightsAncestorsAndDescendants(t *testing.T) {
	elements := sample(t)
	v, surface := render(t, elements)

	x := idByLabel(t, elements, "x")
	xb := idByLabel(t, elements, "xb")
	xbc := idByLabel(t, elements, "xbc")

	require.NoError(t, v.Select(xb))
	want := []string{x, xb, xbc, "record:1"}
	sort.Strings(want)
	assert.Equal(t, want, v.Highlighted())
	assert.Equal(t, want, surface.highlightedIDs())

	require.NoError(t, v.Deselect(xb))
	assert.Empty(t, v.Highlighted())
	assert.Empty(t, surface.highlightedIDs())
}

func TestSelect_EdgeHighlightsEndpoints(t *testing.T) {
	elements := sample(t)
	v, surface := render(t, elements)

	xa := idByLabel(t, elements, "xa")
	edge := graph.EdgeID(xa, "record:1")

	require.NoError(t, v.Select(edge))
	assert.Equal(t, []string{xa, "record:1"}, surface.highlightedIDs())
	assert.False(t, v.IsHighlighted(edge))
}

func TestSelect_ReferenceCounted(t *testing.T) {
	elements := sample(t)
	v, surface := render(t, elements)

	x := idByLabel(t, elements, "x")
	xa := idByLabel(t, elements, "xa")
	xbc := idByLabel(t, elements, "xbc")

	require.NoError(t, v.Select(xa))
	require.NoError(t, v.Select(xbc))
	require.NoError(t, v.Deselect(xa))

	assert.True(t, v.IsHighlighted(x), "shared ancestor stays while xbc is selected")
	assert.False(t, v.IsHighlighted(xa))
	assert.True(t, surface.highlighted[x])
	assert.False(t, surface.highlighted[xa])
	assert.Equal(t, []string{xbc}, v.Selected())

	require.NoError(t, v.Deselect(xbc))
	assert.Empty(t, surface.highlightedIDs())
}

func TestSelect_Idempotent(t *testing.T) {
	elements := sample(t)
	v, _ := render(t, elements)
	xa := idByLabel(t, elements, "xa")

	require.NoError(t, v.Select(xa))
	require.NoError(t, v.Select(xa))
	require.NoError(t, v.Deselect(xa))
	assert.Empty(t, v.Highlighted())

	require.NoError(t, v.Deselect(xa))
	assert.ErrorIs(t, v.Select("missing"), ErrUnknownElement)
}

func TestHover_LazyPopups(t *testing.T) {
	elements := sample(t)
	v, surface := render(t, elements)
	xa := idByLabel(t, elements, "xa")

	require.NoError(t, v.HoverEnter(xa))
	require.NoError(t, v.HoverLeave(xa))
	require.NoError(t, v.HoverEnter(xa))
	require.Len(t, surface.popups, 1)
	assert.Equal(t, "[0x78, 0x61]", surface.popups[0].content)
	assert.True(t, surface.popups[0].visible)

	require.NoError(t, v.HoverEnter("record:1"))
	require.Len(t, surface.popups, 2)
	assert.JSONEq(t, `{"id":"1","name":"one"}`, surface.popups[1].content)

	require.NoError(t, v.HoverEnter(graph.EdgeID(xa, "record:1")))
	assert.Len(t, surface.popups, 2)

	// leaving an element never hovered is harmless
	require.NoError(t, v.HoverLeave(idByLabel(t, elements, "x")))
	assert.Equal(t, []string{xa, "record:1"}, sortedCopy(v.Popups()))
}

func TestDestroy(t *testing.T) {
	t.Run("with open popups", func(t *testing.T) {
		elements := sample(t)
		v, surface := render(t, elements)
		require.NoError(t, v.HoverEnter("record:1"))
		require.NoError(t, v.HoverEnter(idByLabel(t, elements, "xb")))
		require.NoError(t, v.Select(idByLabel(t, elements, "xb")))

		v.Destroy()
		for _, p := range surface.popups {
			assert.True(t, p.destroyed)
			assert.False(t, p.visible)
		}
		assert.Nil(t, surface.drawn)
		assert.Empty(t, v.Popups())
	})

	t.Run("without interaction and twice", func(t *testing.T) {
		v, surface := render(t, sample(t))
		v.Destroy()
		v.Destroy()
		assert.Equal(t, 1, surface.clears)
	})

	t.Run("calls after destroy", func(t *testing.T) {
		elements := sample(t)
		v, _ := render(t, elements)
		v.Destroy()
		id := idByLabel(t, elements, "x")
		assert.ErrorIs(t, v.Select(id), ErrDestroyed)
		assert.ErrorIs(t, v.Deselect(id), ErrDestroyed)
		assert.ErrorIs(t, v.HoverEnter(id), ErrDestroyed)
		assert.ErrorIs(t, v.HoverLeave(id), ErrDestroyed)
	})
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
