package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aymericbeaumet/loupe/application/session"
	"github.com/aymericbeaumet/loupe/domain/trie"
	"github.com/aymericbeaumet/loupe/infrastructure/config"
	"github.com/aymericbeaumet/loupe/infrastructure/index"
	"github.com/aymericbeaumet/loupe/interfaces/http/rest/handlers"
	apperrors "github.com/aymericbeaumet/loupe/pkg/errors"
	"github.com/aymericbeaumet/loupe/pkg/observability"
)

type fixture struct {
	server  *httptest.Server
	index   *index.Index
	metrics *observability.Collector
}

// newFixture serves a fresh index. A nil fetcher queries that index.
func newFixture(t *testing.T, fetcher session.Fetcher) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Metrics.Enabled = true
	ix := index.New()
	metrics := observability.NewCollector("loupe_test")

	if fetcher == nil {
		fetcher = &index.Fetcher{Index: ix}
	}

	router := NewRouter(cfg, ix, fetcher, nil, metrics, zap.NewNop())
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return &fixture{server: srv, index: ix, metrics: metrics}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestRouter_Probes(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))

	resp, body = f.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ready"}`, string(body))
}

func TestRouter_AddAndQueryRecords(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPost, "/records", `[{"id":1,"name":"Hello World"},{"name":"help"}]`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var added handlers.AddRecordsResponse
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, 2, added.Count)
	assert.Equal(t, "1", added.Records[0].ID)
	assert.NotEmpty(t, added.Records[1].ID)
	assert.Equal(t, 2, f.index.Len())

	resp, body = f.do(t, http.MethodGet, "/records/query?query=hel", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(body, &records))
	assert.Len(t, records, 2)

	resp, body = f.do(t, http.MethodPost, "/records/query", `{"query":"world"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 1)
	assert.EqualValues(t, 1, records[0]["id"])
}

func TestRouter_AddSingleRecord(t *testing.T) {
	f := newFixture(t, nil)

	resp, _ := f.do(t, http.MethodPost, "/records", `{"id":"a","name":"solo"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	_, ok := f.index.Get("a")
	assert.True(t, ok)
}

func TestRouter_AddRecordsRejectsInvalid(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"scalar", `42`},
		{"array of scalars", `[1,2]`},
		{"object id", `[{"id":{"a":1}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/records", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var out apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &out))
			assert.Equal(t, string(apperrors.ErrorTypeValidation), out.Type)
		})
	}
	assert.Equal(t, 0, f.index.Len())
}

func TestRouter_DebugNodes(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodPost, "/records", `[{"id":"1","name":"hi"}]`)

	resp, body := f.do(t, http.MethodGet, "/debug/nodes?query=hi", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p, err := trie.DecodePayload(body)
	require.NoError(t, err)
	require.Len(t, p.Seeds, 1)
	assert.Equal(t, "hi", p.Seeds[0].Word)

	resp, body = f.do(t, http.MethodGet, "/debug/nodes?query=h&rooted=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p, err = trie.DecodePayload(body)
	require.NoError(t, err)
	assert.True(t, p.Rooted())
	require.Len(t, p.Seeds[0].Node.Children, 1)
	assert.Equal(t, byte('i'), p.Seeds[0].Node.Children[0].Key)

	resp, _ = f.do(t, http.MethodGet, "/debug/nodes?rooted=maybe", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Elements(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodPost, "/records", `[{"id":"1","name":"hi"}]`)

	resp, body := f.do(t, http.MethodGet, "/api/v1/elements?query=hi", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Query    string `json:"query"`
		Elements []struct {
			Group string `json:"group"`
		} `json:"elements"`
		Stats map[string]int `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "hi", out.Query)
	assert.Len(t, out.Elements, 3)
}

func TestRouter_ElementsMalformed(t *testing.T) {
	f := newFixture(t, session.FetcherFunc(func(context.Context, string) (*trie.Payload, error) {
		return &trie.Payload{Seeds: []trie.Seed{{Word: "x"}}}, nil
	}))

	resp, body := f.do(t, http.MethodGet, "/api/v1/elements?query=x", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var out apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, string(apperrors.ErrorTypeMalformed), out.Type)
}

func TestRouter_MetricsAndUI(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/health", "")

	resp, body := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `route="/health"`)

	resp, body = f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<title>loupe</title>")

	resp, _ = f.do(t, http.MethodGet, "/app.js", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
