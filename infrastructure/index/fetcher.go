package index

import (
	"context"

	"github.com/aymericbeaumet/loupe/domain/trie"
)

// Fetcher serves trie fragments straight from an Index.
type Fetcher struct {
	Index  *Index
	Rooted bool
}

// Fetch returns the fragment for query: the word mapping, or the single
// subtree at the query when Rooted is set.
func (f *Fetcher) Fetch(ctx context.Context, query string) (*trie.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Rooted {
		return f.Index.Root(query), nil
	}
	return f.Index.Nodes(query), nil
}
