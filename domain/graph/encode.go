package graph

import (
	"encoding/json"
)

// ElementJSON is the wire form of an element, shaped after the usual
// browser graph libraries: a group, a style class and a data bag.
type ElementJSON struct {
	Group   string      `json:"group"`
	Classes string      `json:"classes"`
	Data    ElementData `json:"data"`
}

// ElementData carries the variant specific fields.
type ElementData struct {
	ID      string          `json:"id"`
	Content string          `json:"content,omitempty"`
	Path    []int           `json:"path,omitempty"`
	Record  json.RawMessage `json:"record,omitempty"`
	Source  string          `json:"source,omitempty"`
	Target  string          `json:"target,omitempty"`
}

// Encode converts one element to its wire form.
func Encode(el Element) ElementJSON {
	switch e := el.(type) {
	case ByteNode:
		path := make([]int, len(e.Path))
		for i, b := range e.Path {
			path[i] = int(b)
		}
		return ElementJSON{
			Group:   "nodes",
			Classes: "node",
			Data:    ElementData{ID: e.ID, Content: e.Label, Path: path},
		}
	case RecordNode:
		raw, err := e.Record.MarshalJSON()
		if err != nil {
			raw = nil
		}
		return ElementJSON{
			Group:   "nodes",
			Classes: "record",
			Data:    ElementData{ID: e.ID, Content: e.Record.DisplayName(), Record: raw},
		}
	case Edge:
		return ElementJSON{
			Group:   "edges",
			Classes: "edge",
			Data:    ElementData{ID: e.ID, Source: e.Source, Target: e.Target},
		}
	default:
		return ElementJSON{Data: ElementData{ID: el.ElementID()}}
	}
}

// EncodeAll converts a list, preserving order.
func EncodeAll(elements []Element) []ElementJSON {
	out := make([]ElementJSON, 0, len(elements))
	for _, el := range elements {
		out = append(out, Encode(el))
	}
	return out
}
