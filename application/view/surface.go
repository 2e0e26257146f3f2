package view

import (
	"github.com/aymericbeaumet/loupe/domain/graph"
)

// Surface is what a View draws on: a browser page, a terminal, a test
// recorder. Implementations must tolerate Clear being called at any time,
// including before Draw.
type Surface interface {
	// Draw replaces whatever is shown with scene.
	Draw(scene Scene) error
	// SetHighlighted turns the highlight marker on or off for ids.
	SetHighlighted(ids []string, on bool)
	// OpenPopup creates a hidden inspection popup attached to an element.
	OpenPopup(id, content string) (Popup, error)
	// Clear releases everything drawn by the last Draw.
	Clear()
}

// Popup is an inspection popup created by a Surface.
type Popup interface {
	Show()
	Hide()
	Destroy()
}

// SceneNode is a positioned node. X and Y are the node center.
type SceneNode struct {
	ID     string     `json:"id"`
	Kind   graph.Kind `json:"kind"`
	Label  string     `json:"label"`
	Rank   int        `json:"rank"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
}

// SceneEdge is a directed connection between two scene nodes.
type SceneEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Scene is a laid out element list.
type Scene struct {
	Nodes  []SceneNode `json:"nodes"`
	Edges  []SceneEdge `json:"edges"`
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
}

// Node returns the scene node with the given id.
func (s Scene) Node(id string) (SceneNode, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return SceneNode{}, false
}
