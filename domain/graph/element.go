package graph

import (
	"github.com/aymericbeaumet/loupe/domain/trie"
)

// Kind discriminates the element variants
type Kind string

const (
	KindByteNode   Kind = "byte"
	KindRecordNode Kind = "record"
	KindEdge       Kind = "edge"
)

// RecordIDPrefix namespaces record nodes away from the integer ids of byte nodes.
const RecordIDPrefix = "record:"

// Element is one entry of a flattened trie fragment: a ByteNode, a
// RecordNode or an Edge.
type Element interface {
	ElementID() string
	Kind() Kind
}

// ByteNode stands for one trie node. Path is the cumulative byte path from
// the fragment root; Label is its rendered text.
type ByteNode struct {
	ID    string
	Path  []byte
	Label string
}

// RecordNode stands for one record terminating at a trie node.
type RecordNode struct {
	ID     string
	Record trie.Record
}

// Edge connects a parent element to a child element.
type Edge struct {
	ID     string
	Source string
	Target string
}

func (n ByteNode) ElementID() string   { return n.ID }
func (n ByteNode) Kind() Kind          { return KindByteNode }
func (n RecordNode) ElementID() string { return n.ID }
func (n RecordNode) Kind() Kind        { return KindRecordNode }
func (e Edge) ElementID() string       { return e.ID }
func (e Edge) Kind() Kind              { return KindEdge }

// EdgeID derives the identity of the edge between two elements.
func EdgeID(source, target string) string {
	return "edge:" + source + "->" + target
}

// Stats counts the element variants of a list
type Stats struct {
	ByteNodes   int `json:"byte_nodes"`
	RecordNodes int `json:"record_nodes"`
	Edges       int `json:"edges"`
}

// Summarize counts the elements of each kind.
func Summarize(elements []Element) Stats {
	var s Stats
	for _, el := range elements {
		switch el.Kind() {
		case KindByteNode:
			s.ByteNodes++
		case KindRecordNode:
			s.RecordNodes++
		case KindEdge:
			s.Edges++
		}
	}
	return s
}
