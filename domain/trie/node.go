// Package trie holds the payload shapes produced by the byte-indexed prefix
// tree backend: nodes keyed by single bytes, and the opaque records that
// terminate at them.
package trie

import "errors"

// ErrMalformed is wrapped by every error caused by a payload that does not
// respect the node/record shape.
var ErrMalformed = errors.New("malformed trie payload")

// Node is one node of a trie fragment.
type Node struct {
	Children []Child
	Records  []Record
}

// Child is an outgoing edge of a Node labeled by a single byte.
type Child struct {
	Key  byte
	Node *Node
}

// Seed is one entry point of a fragment: the node reached after consuming
// Word from the trie root. Word is empty when the fragment is rooted exactly
// at the query.
type Seed struct {
	Word string
	Node *Node
}

// Payload is a whole fragment as returned by the backend query endpoint.
type Payload struct {
	Seeds []Seed
}

// Rooted reports whether the payload uses the single-node convention.
func (p *Payload) Rooted() bool {
	return p != nil && len(p.Seeds) == 1 && p.Seeds[0].Word == ""
}

// Empty reports whether the payload has no seeds.
func (p *Payload) Empty() bool {
	return p == nil || len(p.Seeds) == 0
}

// Rooted wraps a single node rooted exactly at the query.
func Rooted(n *Node) *Payload {
	return &Payload{Seeds: []Seed{{Node: n}}}
}
