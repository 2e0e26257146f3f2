package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aymericbeaumet/loupe/application/view"
	"github.com/aymericbeaumet/loupe/domain/graph"
	"github.com/aymericbeaumet/loupe/domain/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	mu     sync.Mutex
	draws  []view.Scene
	clears int
}

func (s *fakeSurface) Draw(scene view.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws = append(s.draws, scene)
	return nil
}

func (s *fakeSurface) SetHighlighted([]string, bool) {}

func (s *fakeSurface) OpenPopup(string, string) (view.Popup, error) { return nopPopup{}, nil }

func (s *fakeSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *fakeSurface) labels() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [][]string
	for _, scene := range s.draws {
		var labels []string
		for _, n := range scene.Nodes {
			labels = append(labels, n.Label)
		}
		out = append(out, labels)
	}
	return out
}

type nopPopup struct{}

func (nopPopup) Show()    {}
func (nopPopup) Hide()    {}
func (nopPopup) Destroy() {}

type reply struct {
	payload *trie.Payload
	err     error
}

// gatedFetcher blocks every query until the test releases it.
type gatedFetcher struct {
	mu          sync.Mutex
	gates       map[string]chan reply
	ignoreCtx   bool
	started     chan string
	cancelledMu sync.Mutex
	cancelled   []string
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{gates: map[string]chan reply{}, started: make(chan string, 16)}
}

func (f *gatedFetcher) gate(query string) chan reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[query]
	if !ok {
		g = make(chan reply, 1)
		f.gates[query] = g
	}
	return g
}

func (f *gatedFetcher) Fetch(ctx context.Context, query string) (*trie.Payload, error) {
	g := f.gate(query)
	f.started <- query
	if f.ignoreCtx {
		r := <-g
		return r.payload, r.err
	}
	select {
	case r := <-g:
		return r.payload, r.err
	case <-ctx.Done():
		f.cancelledMu.Lock()
		f.cancelled = append(f.cancelled, query)
		f.cancelledMu.Unlock()
		return nil, ctx.Err()
	}
}

func (f *gatedFetcher) release(query string, r reply) { f.gate(query) <- r }

func word(w string) *trie.Payload {
	return &trie.Payload{Seeds: []trie.Seed{{Word: w, Node: &trie.Node{}}}}
}

type recordedError struct {
	query string
	err   error
}

type errorSink struct {
	mu   sync.Mutex
	errs []recordedError
}

func (e *errorSink) handle(query string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, recordedError{query, err})
}

func (e *errorSink) all() []recordedError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]recordedError(nil), e.errs...)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not settle")
	}
}

func TestMain(m *testing.M) {
	view.Init()
	m.Run()
}

func TestSession_RendersResult(t *testing.T) {
	fetcher := newGatedFetcher()
	surface := &fakeSurface{}
	s := New(fetcher, surface)
	defer s.Close()

	done := s.Submit("hi")
	fetcher.release("hi", reply{payload: word("hi")})
	waitDone(t, done)

	require.NotNil(t, s.Current())
	assert.Equal(t, [][]string{{"hi"}}, surface.labels())
}

func TestSession_SupersededQueryIsDiscarded(t *testing.T) {
	fetcher := newGatedFetcher()
	fetcher.ignoreCtx = true
	surface := &fakeSurface{}
	sink := &errorSink{}
	s := New(fetcher, surface, WithErrorHandler(sink.handle))
	defer s.Close()

	doneA := s.Submit("a")
	<-fetcher.started
	doneB := s.Submit("b")
	<-fetcher.started

	fetcher.release("b", reply{payload: word("b")})
	waitDone(t, doneB)
	fetcher.release("a", reply{payload: word("a")})
	waitDone(t, doneA)

	assert.Equal(t, [][]string{{"b"}}, surface.labels())
	assert.Empty(t, sink.all())
}

func TestSession_SupersededFailureIsSilent(t *testing.T) {
	fetcher := newGatedFetcher()
	fetcher.ignoreCtx = true
	sink := &errorSink{}
	s := New(fetcher, &fakeSurface{}, WithErrorHandler(sink.handle))
	defer s.Close()

	doneA := s.Submit("a")
	<-fetcher.started
	doneB := s.Submit("b")
	<-fetcher.started

	fetcher.release("a", reply{err: errors.New("boom")})
	waitDone(t, doneA)
	fetcher.release("b", reply{payload: word("b")})
	waitDone(t, doneB)

	assert.Empty(t, sink.all())
}

func TestSession_CancelsPreviousFetch(t *testing.T) {
	fetcher := newGatedFetcher()
	sink := &errorSink{}
	s := New(fetcher, &fakeSurface{}, WithErrorHandler(sink.handle))
	defer s.Close()

	doneA := s.Submit("a")
	<-fetcher.started
	s.Submit("b")
	waitDone(t, doneA)

	fetcher.cancelledMu.Lock()
	assert.Equal(t, []string{"a"}, fetcher.cancelled)
	fetcher.cancelledMu.Unlock()
	assert.Empty(t, sink.all())
}

func TestSession_ErrorsPropagateUnchanged(t *testing.T) {
	fetcher := newGatedFetcher()
	sink := &errorSink{}
	s := New(fetcher, &fakeSurface{}, WithErrorHandler(sink.handle))
	defer s.Close()

	boom := errors.New("connection refused")
	done := s.Submit("q")
	fetcher.release("q", reply{err: boom})
	waitDone(t, done)

	errs := sink.all()
	require.Len(t, errs, 1)
	assert.Equal(t, "q", errs[0].query)
	assert.Same(t, boom, errs[0].err)
	assert.Nil(t, s.Current())
}

func TestSession_MalformedPayloadIsReported(t *testing.T) {
	fetcher := newGatedFetcher()
	sink := &errorSink{}
	surface := &fakeSurface{}
	s := New(fetcher, surface, WithErrorHandler(sink.handle))
	defer s.Close()

	done := s.Submit("q")
	fetcher.release("q", reply{payload: &trie.Payload{Seeds: []trie.Seed{{Word: "q"}}}})
	waitDone(t, done)

	errs := sink.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0].err, trie.ErrMalformed)
	assert.Empty(t, surface.labels())
}

func TestSession_NewResultReplacesView(t *testing.T) {
	fetcher := newGatedFetcher()
	surface := &fakeSurface{}
	s := New(fetcher, surface)
	defer s.Close()

	done := s.Submit("a")
	fetcher.release("a", reply{payload: word("a")})
	waitDone(t, done)
	first := s.Current()

	done = s.Submit("b")
	fetcher.release("b", reply{payload: word("b")})
	waitDone(t, done)

	assert.NotSame(t, first, s.Current())
	assert.ErrorIs(t, first.Select("0"), view.ErrDestroyed)
}

func TestSession_QueryChangeReleasesView(t *testing.T) {
	fetcher := newGatedFetcher()
	surface := &fakeSurface{}
	sink := &errorSink{}
	s := New(fetcher, surface, WithErrorHandler(sink.handle))
	defer s.Close()

	done := s.Submit("alpha")
	fetcher.release("alpha", reply{payload: word("alpha")})
	waitDone(t, done)
	first := s.Current()
	require.NotNil(t, first)

	done = s.Submit("beta")
	assert.Nil(t, s.Current())
	assert.ErrorIs(t, first.Select("0"), view.ErrDestroyed)
	surface.mu.Lock()
	assert.Equal(t, 1, surface.clears)
	surface.mu.Unlock()

	fetcher.release("beta", reply{err: errors.New("boom")})
	waitDone(t, done)

	assert.Nil(t, s.Current())
	assert.Equal(t, [][]string{{"alpha"}}, surface.labels())
	errs := sink.all()
	require.Len(t, errs, 1)
	assert.Equal(t, "beta", errs[0].query)
}

func TestSession_Close(t *testing.T) {
	fetcher := newGatedFetcher()
	fetcher.ignoreCtx = true
	surface := &fakeSurface{}
	sink := &errorSink{}
	s := New(fetcher, surface, WithErrorHandler(sink.handle))

	done := s.Submit("a")
	fetcher.release("a", reply{payload: word("a")})
	waitDone(t, done)
	v := s.Current()

	pending := s.Submit("b")
	<-fetcher.started
	<-fetcher.started

	go fetcher.release("b", reply{err: errors.New("late")})
	s.Close()
	waitDone(t, pending)

	assert.Nil(t, s.Current())
	assert.ErrorIs(t, v.Select("0"), view.ErrDestroyed)
	assert.Empty(t, sink.all())
	assert.Len(t, surface.labels(), 1)

	waitDone(t, s.Submit("c"))
	s.Close()
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes []string
	builds   []graph.Stats
}

func (o *countingObserver) ObserveFetch(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *countingObserver) ObserveBuild(stats graph.Stats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.builds = append(o.builds, stats)
}

func TestSession_Observer(t *testing.T) {
	fetcher := newGatedFetcher()
	obs := &countingObserver{}
	s := New(fetcher, &fakeSurface{}, WithObserver(obs))
	defer s.Close()

	doneA := s.Submit("a")
	<-fetcher.started
	doneB := s.Submit("b")
	waitDone(t, doneA)
	fetcher.release("b", reply{payload: word("b")})
	waitDone(t, doneB)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.ElementsMatch(t, []string{OutcomeStale, OutcomeRendered}, obs.outcomes)
	assert.Equal(t, []graph.Stats{{ByteNodes: 1}}, obs.builds)
}
