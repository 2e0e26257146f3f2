// Package index is a small in-process byte trie over records. It serves the
// same fragments as the production search service so the viewer can be
// developed and tested without one.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aymericbeaumet/loupe/domain/trie"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store persists records across restarts.
type Store interface {
	Put(ctx context.Context, records []trie.Record) error
	Each(ctx context.Context, fn func(trie.Record) error) error
}

// Observer is notified of index activity.
type Observer interface {
	ObserveIndexed(n int)
	ObserveIndexQuery(kind string)
}

// Query kinds reported to the Observer.
const (
	QueryNodes   = "nodes"
	QueryRoot    = "root"
	QueryRecords = "records"
)

type node struct {
	children map[byte]*node
	records  []string
}

func newNode() *node {
	return &node{children: make(map[byte]*node)}
}

func (n *node) attach(id string) {
	for _, existing := range n.records {
		if existing == id {
			return
		}
	}
	n.records = append(n.records, id)
}

// Index maps every token of every string field of a record to the trie
// node spelling it.
type Index struct {
	mu       sync.RWMutex
	root     *node
	records  map[string]trie.Record
	store    Store
	observer Observer
	logger   *zap.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithStore persists added records.
func WithStore(s Store) Option {
	return func(ix *Index) { ix.store = s }
}

// WithObserver reports index activity.
func WithObserver(o Observer) Option {
	return func(ix *Index) { ix.observer = o }
}

// WithLogger sets the index logger.
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// New creates an empty index.
func New(opts ...Option) *Index {
	ix := &Index{
		root:    newNode(),
		records: make(map[string]trie.Record),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// PrepareRecord parses a raw JSON object into a record, giving it a fresh
// UUID when it has no id.
func PrepareRecord(raw json.RawMessage) (trie.Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return trie.Record{}, fmt.Errorf("%w: record must be an object", trie.ErrMalformed)
	}
	if id, ok := fields["id"]; !ok || string(id) == "null" {
		encoded, err := json.Marshal(uuid.NewString())
		if err != nil {
			return trie.Record{}, err
		}
		fields["id"] = encoded
		if raw, err = json.Marshal(fields); err != nil {
			return trie.Record{}, err
		}
	}
	return trie.ParseRecord(raw)
}

// Add persists records, when a store is configured, then indexes them.
// Nothing is indexed if persisting fails.
func (ix *Index) Add(ctx context.Context, records ...trie.Record) error {
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record without id", trie.ErrMalformed)
		}
	}
	if ix.store != nil {
		if err := ix.store.Put(ctx, records); err != nil {
			return err
		}
	}
	ix.insert(records)
	return nil
}

// Restore indexes every record of the store.
func (ix *Index) Restore(ctx context.Context) error {
	if ix.store == nil {
		return nil
	}
	var batch []trie.Record
	err := ix.store.Each(ctx, func(r trie.Record) error {
		batch = append(batch, r)
		if len(batch) == 512 {
			ix.insert(batch)
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("restore index: %w", err)
	}
	ix.insert(batch)
	ix.logger.Info("Index restored", zap.Int("records", ix.Len()))
	return nil
}

func (ix *Index) insert(records []trie.Record) {
	if len(records) == 0 {
		return
	}
	ix.mu.Lock()
	for _, r := range records {
		ix.records[r.ID] = r
		for _, value := range r.StringValues() {
			for _, token := range Tokenize(value) {
				n := ix.root
				for i := 0; i < len(token); i++ {
					child, ok := n.children[token[i]]
					if !ok {
						child = newNode()
						n.children[token[i]] = child
					}
					n = child
				}
				n.attach(r.ID)
			}
		}
	}
	ix.mu.Unlock()

	if ix.observer != nil {
		ix.observer.ObserveIndexed(len(records))
	}
}

// Len returns the number of distinct records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// Get returns the record with the given id.
func (ix *Index) Get(id string) (trie.Record, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	r, ok := ix.records[id]
	return r, ok
}

func (ix *Index) find(key string) *node {
	n := ix.root
	for i := 0; i < len(key) && n != nil; i++ {
		n = n.children[key[i]]
	}
	return n
}

// Nodes returns, for every distinct token of query present in the index,
// the subtree found after consuming it.
func (ix *Index) Nodes(query string) *trie.Payload {
	ix.observe(QueryNodes)
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	p := &trie.Payload{Seeds: []trie.Seed{}}
	seen := make(map[string]bool)
	for _, token := range Tokenize(query) {
		if seen[token] {
			continue
		}
		seen[token] = true
		if n := ix.find(token); n != nil {
			p.Seeds = append(p.Seeds, trie.Seed{Word: token, Node: ix.snapshot(n)})
		}
	}
	sort.Slice(p.Seeds, func(i, j int) bool { return p.Seeds[i].Word < p.Seeds[j].Word })
	return p
}

// Root returns the subtree found after consuming the normalized query, or
// an empty payload when there is none. An empty query yields the whole
// trie.
func (ix *Index) Root(query string) *trie.Payload {
	ix.observe(QueryRoot)
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := ix.find(Normalize(query))
	if n == nil {
		return &trie.Payload{}
	}
	return trie.Rooted(ix.snapshot(n))
}

// Records returns the records attached anywhere below the nodes matched by
// the tokens of query, unique by id, in traversal order.
func (ix *Index) Records(query string) []trie.Record {
	ix.observe(QueryRecords)
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := []trie.Record{}
	seen := make(map[string]bool)
	for _, token := range Tokenize(query) {
		start := ix.find(token)
		if start == nil {
			continue
		}
		stack := []*node{start}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, id := range n.records {
				if !seen[id] {
					seen[id] = true
					out = append(out, ix.records[id])
				}
			}
			keys := sortedKeys(n)
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, n.children[keys[i]])
			}
		}
	}
	return out
}

// snapshot copies the subtree under n into an immutable trie.Node, children
// ordered by key. The caller holds the read lock.
func (ix *Index) snapshot(n *node) *trie.Node {
	type pending struct {
		src *node
		dst *trie.Node
	}
	root := &trie.Node{}
	stack := []pending{{n, root}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, id := range cur.src.records {
			cur.dst.Records = append(cur.dst.Records, ix.records[id])
		}
		for _, key := range sortedKeys(cur.src) {
			child := &trie.Node{}
			cur.dst.Children = append(cur.dst.Children, trie.Child{Key: key, Node: child})
			stack = append(stack, pending{cur.src.children[key], child})
		}
	}
	return root
}

func sortedKeys(n *node) []byte {
	keys := make([]byte, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (ix *Index) observe(kind string) {
	if ix.observer != nil {
		ix.observer.ObserveIndexQuery(kind)
	}
}
