package trie

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// DecodePayload parses either backend convention: a mapping from word to
// node, or a single node rooted at the query. The single-node shape is
// recognized by a "records" member holding an array; in the mapping shape
// every member is a node object.
func DecodePayload(data []byte) (*Payload, error) {
	v, err := decodeValue(data)
	if err != nil {
		return nil, err
	}

	switch obj := v.(type) {
	case nil:
		return &Payload{}, nil
	case map[string]any:
		if len(obj) == 0 {
			return &Payload{}, nil
		}
		if records, ok := obj["records"]; ok {
			if _, isList := records.([]any); isList {
				node, err := nodeFromValue(obj)
				if err != nil {
					return nil, err
				}
				return Rooted(node), nil
			}
		}

		words := make([]string, 0, len(obj))
		for word := range obj {
			words = append(words, word)
		}
		sort.Strings(words)

		payload := &Payload{Seeds: make([]Seed, 0, len(words))}
		for _, word := range words {
			node, err := nodeFromValue(obj[word])
			if err != nil {
				return nil, fmt.Errorf("word %q: %w", word, err)
			}
			payload.Seeds = append(payload.Seeds, Seed{Word: word, Node: node})
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("%w: payload must be an object", ErrMalformed)
	}
}

// MarshalJSON encodes the payload in the convention it was built with.
func (p *Payload) MarshalJSON() ([]byte, error) {
	if p.Empty() {
		return []byte("{}"), nil
	}
	if p.Rooted() {
		return p.Seeds[0].Node.MarshalJSON()
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, seed := range p.Seeds {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(seed.Word)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := encodeNode(&buf, seed.Node); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a node and its whole subtree.
func (n *Node) UnmarshalJSON(data []byte) error {
	v, err := decodeValue(data)
	if err != nil {
		return err
	}
	decoded, err := nodeFromValue(v)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

// MarshalJSON encodes children as [key, node] pairs.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeNode(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after payload", ErrMalformed)
	}
	return v, nil
}

// nodeFromValue converts a generic JSON tree without recursion, so deep
// fragments cost no Go stack.
func nodeFromValue(v any) (*Node, error) {
	type pending struct {
		value any
		node  *Node
	}

	root := &Node{}
	stack := []pending{{value: v, node: root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		obj, ok := p.value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: node must be an object", ErrMalformed)
		}

		records, err := recordsFromValue(obj["records"])
		if err != nil {
			return nil, err
		}
		p.node.Records = records

		entries, err := childEntries(obj["children"])
		if err != nil {
			return nil, err
		}
		var seen [256]bool
		for _, e := range entries {
			if seen[e.key] {
				return nil, fmt.Errorf("%w: duplicate child key %d", ErrMalformed, e.key)
			}
			seen[e.key] = true

			child := &Node{}
			p.node.Children = append(p.node.Children, Child{Key: e.key, Node: child})
			stack = append(stack, pending{value: e.value, node: child})
		}
	}
	return root, nil
}

type childEntry struct {
	key   byte
	value any
}

func childEntries(v any) ([]childEntry, error) {
	switch children := v.(type) {
	case []any:
		entries := make([]childEntry, 0, len(children))
		for _, item := range children {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%w: child must be a [key, node] pair", ErrMalformed)
			}
			num, ok := pair[0].(json.Number)
			if !ok {
				return nil, fmt.Errorf("%w: child key must be a number", ErrMalformed)
			}
			key, err := parseKey(num.String())
			if err != nil {
				return nil, err
			}
			entries = append(entries, childEntry{key: key, value: pair[1]})
		}
		return entries, nil
	case map[string]any:
		entries := make([]childEntry, 0, len(children))
		for k, value := range children {
			key, err := parseKey(k)
			if err != nil {
				return nil, err
			}
			entries = append(entries, childEntry{key: key, value: value})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
		return entries, nil
	case nil:
		return nil, fmt.Errorf("%w: node without children", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: children must be a list or an object", ErrMalformed)
	}
}

func parseKey(s string) (byte, error) {
	k, err := strconv.Atoi(s)
	if err != nil || k < 0 || k > 255 {
		return 0, fmt.Errorf("%w: invalid child key %q", ErrMalformed, s)
	}
	return byte(k), nil
}

func recordsFromValue(v any) ([]Record, error) {
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, fmt.Errorf("%w: node without records", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: records must be a list", ErrMalformed)
	}
	records := make([]Record, 0, len(list))
	for _, item := range list {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("%w: record: %v", ErrMalformed, err)
		}
		r, err := ParseRecord(data)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func encodeNode(buf *bytes.Buffer, root *Node) error {
	if root == nil {
		buf.WriteString("null")
		return nil
	}

	type frame struct {
		node *Node
		next int
	}

	stack := []frame{{node: root}}
	buf.WriteString(`{"children":[`)
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.node.Children) {
			c := top.node.Children[top.next]
			if top.next > 0 {
				buf.WriteByte(',')
			}
			top.next++
			if c.Node == nil {
				return fmt.Errorf("%w: nil child under key %d", ErrMalformed, c.Key)
			}
			fmt.Fprintf(buf, `[%d,{"children":[`, c.Key)
			stack = append(stack, frame{node: c.Node})
			continue
		}

		records := top.node.Records
		if records == nil {
			records = []Record{}
		}
		data, err := json.Marshal(records)
		if err != nil {
			return err
		}
		buf.WriteString(`],"records":`)
		buf.Write(data)
		buf.WriteByte('}')

		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			buf.WriteByte(']')
		}
	}
	return nil
}
