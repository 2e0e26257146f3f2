// Package graph flattens trie fragments into explicit element lists.
package graph

import (
	"fmt"
	"strconv"

	"github.com/aymericbeaumet/loupe/domain/pathtext"
	"github.com/aymericbeaumet/loupe/domain/trie"
)

// Builder turns a payload into graph elements. The zero value labels byte
// nodes with pathtext.Render.
type Builder struct {
	Label func(path []byte) string
}

// BuildElements flattens p with the default Builder.
func BuildElements(p *trie.Payload) ([]Element, error) {
	return Builder{}.Build(p)
}

type frame struct {
	id   string
	path []byte
	node *trie.Node
}

// Build walks every seed of p depth first with an explicit stack. Every node
// gets a ByteNode, every parent/child relation and every record attachment
// an Edge, every distinct record a RecordNode. The input is only read.
//
// A malformed payload yields an error wrapping trie.ErrMalformed and no
// elements.
func (b Builder) Build(p *trie.Payload) ([]Element, error) {
	if p.Empty() {
		return []Element{}, nil
	}

	label := b.Label
	if label == nil {
		label = pathtext.Render
	}

	nextID := 0
	newID := func() string {
		id := strconv.Itoa(nextID)
		nextID++
		return id
	}

	stack := make([]frame, 0, len(p.Seeds))
	for i, seed := range p.Seeds {
		if seed.Node == nil {
			return nil, fmt.Errorf("%w: seed %d (%q) has no node", trie.ErrMalformed, i, seed.Word)
		}
		stack = append(stack, frame{id: newID(), path: []byte(seed.Word), node: seed.Node})
	}

	var elements []Element
	emittedRecords := make(map[string]bool)

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		elements = append(elements, ByteNode{ID: cur.id, Path: cur.path, Label: label(cur.path)})

		var seen [256]bool
		for _, child := range cur.node.Children {
			if child.Node == nil {
				return nil, fmt.Errorf("%w: nil child under key %d at path %x", trie.ErrMalformed, child.Key, cur.path)
			}
			if seen[child.Key] {
				return nil, fmt.Errorf("%w: duplicate child key %d at path %x", trie.ErrMalformed, child.Key, cur.path)
			}
			seen[child.Key] = true

			childPath := make([]byte, len(cur.path)+1)
			copy(childPath, cur.path)
			childPath[len(cur.path)] = child.Key

			childID := newID()
			elements = append(elements, Edge{ID: EdgeID(cur.id, childID), Source: cur.id, Target: childID})
			stack = append(stack, frame{id: childID, path: childPath, node: child.Node})
		}

		attached := make(map[string]bool, len(cur.node.Records))
		for _, record := range cur.node.Records {
			if record.ID == "" {
				return nil, fmt.Errorf("%w: record without id at path %x", trie.ErrMalformed, cur.path)
			}
			recordID := RecordIDPrefix + record.ID
			if attached[recordID] {
				return nil, fmt.Errorf("%w: record %q attached twice at path %x", trie.ErrMalformed, record.ID, cur.path)
			}
			attached[recordID] = true
			if !emittedRecords[recordID] {
				emittedRecords[recordID] = true
				elements = append(elements, RecordNode{ID: recordID, Record: record})
			}
			elements = append(elements, Edge{ID: EdgeID(cur.id, recordID), Source: cur.id, Target: recordID})
		}
	}

	return elements, nil
}
