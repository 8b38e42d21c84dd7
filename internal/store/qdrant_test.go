package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"newsrag/internal/model"
)

type mockEmbedder struct {
	mu       sync.Mutex
	calls    int
	lastText string
	vector   []float64
	err      error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastText = text
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

// qdrantFake records requests and serves canned JSON per path suffix.
type qdrantFake struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]string
	status    int
}

type recordedRequest struct {
	method string
	path   string
	body   map[string]any
}

func (f *qdrantFake) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, body: body})
		status := f.status
		var response string
		for suffix, resp := range f.responses {
			if strings.HasSuffix(r.URL.Path, suffix) {
				response = resp
			}
		}
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if response == "" {
			response = `{"result":{},"status":"ok"}`
		}
		w.Write([]byte(response))
	}
}

func (f *qdrantFake) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestStore(t *testing.T, fake *qdrantFake, embedder *mockEmbedder) *QdrantStore {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewQdrantStore(QdrantConfig{
		URL:        srv.URL,
		Collection: "articles",
	}, embedder, zap.NewNop())
}

func TestPointID_Deterministic(t *testing.T) {
	a := pointID("https://x/a")
	b := pointID("https://x/a")
	c := pointID("https://x/b")

	assert.Equal(t, a, b, "same URL must hash to the same point ID")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 36, "point ID must be in UUID form")
}

func TestQdrantStore_Save(t *testing.T) {
	fake := &qdrantFake{}
	embedder := &mockEmbedder{vector: []float64{0.1, 0.2}}
	st := newTestStore(t, fake, embedder)

	longContent := strings.Repeat("x", storedContentLimit+500)
	article := model.Article{ID: "art-1", Title: "T", Content: longContent, URL: "https://x/a", Date: "2026-01-05"}
	require.NoError(t, st.Save(context.Background(), article))

	assert.Equal(t, 1, embedder.calls)
	assert.Len(t, embedder.lastText, storedContentLimit, "embedding input must be capped")

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, "/collections/articles/points", reqs[0].path)

	points := reqs[0].body["points"].([]any)
	require.Len(t, points, 1)
	point := points[0].(map[string]any)
	assert.Equal(t, pointID("https://x/a"), point["id"])

	payload := point["payload"].(map[string]any)
	assert.Equal(t, "art-1", payload["id"])
	assert.Equal(t, "T", payload["title"])
	assert.Equal(t, "https://x/a", payload["url"])
	assert.Equal(t, "2026-01-05", payload["date"])
	assert.Len(t, payload["content"], storedContentLimit, "stored content must be truncated")
}

func TestQdrantStore_Save_EmbeddingFailureAborts(t *testing.T) {
	fake := &qdrantFake{}
	embedder := &mockEmbedder{err: errors.New("quota exceeded")}
	st := newTestStore(t, fake, embedder)

	err := st.Save(context.Background(), model.Article{Title: "T", Content: "C", URL: "https://x/a"})
	require.Error(t, err)
	assert.Empty(t, fake.recorded(), "embedding failure must abort before any write")
}

func TestQdrantStore_FindByURL(t *testing.T) {
	fake := &qdrantFake{responses: map[string]string{
		"/points": `{"result":[{"id":"p","payload":{"id":"art-1","title":"T","url":"https://x/a","date":"2026-01-05","content":"C"}}]}`,
	}}
	st := newTestStore(t, fake, &mockEmbedder{})

	article, err := st.FindByURL(context.Background(), "https://x/a")
	require.NoError(t, err)
	assert.Equal(t, model.Article{ID: "art-1", Title: "T", Content: "C", URL: "https://x/a", Date: "2026-01-05"}, article)
}

func TestQdrantStore_FindByURL_NotFound(t *testing.T) {
	fake := &qdrantFake{responses: map[string]string{
		"/points": `{"result":[]}`,
	}}
	st := newTestStore(t, fake, &mockEmbedder{})

	_, err := st.FindByURL(context.Background(), "https://x/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQdrantStore_FindByURL_HashCollisionMismatch(t *testing.T) {
	// A point comes back but its payload URL is not the one we asked for.
	fake := &qdrantFake{responses: map[string]string{
		"/points": `{"result":[{"id":"p","payload":{"id":"art-1","title":"T","url":"https://other/url","date":"d","content":"C"}}]}`,
	}}
	st := newTestStore(t, fake, &mockEmbedder{})

	_, err := st.FindByURL(context.Background(), "https://x/a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQdrantStore_SearchSimilar(t *testing.T) {
	fake := &qdrantFake{responses: map[string]string{
		"/points/search": `{"result":[
			{"score":0.9,"payload":{"id":"1","title":"A","url":"https://x/1","date":"d1","content":"c1"}},
			{"score":0.8,"payload":{"id":"2","title":"B","url":"https://x/2","date":"d2","content":"c2"}}
		]}`,
	}}
	embedder := &mockEmbedder{vector: []float64{0.5}}
	st := newTestStore(t, fake, embedder)

	articles, err := st.SearchSimilar(context.Background(), "what happened?", 5)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "A", articles[0].Title)
	assert.Equal(t, "https://x/2", articles[1].URL)

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, float64(5), reqs[0].body["limit"])
}

func TestQdrantStore_SearchSimilar_StoreFailure(t *testing.T) {
	fake := &qdrantFake{status: http.StatusInternalServerError}
	st := newTestStore(t, fake, &mockEmbedder{vector: []float64{0.5}})

	_, err := st.SearchSimilar(context.Background(), "q", 5)
	assert.Error(t, err)
}

func TestQdrantStore_EnsureCollection_ConflictOK(t *testing.T) {
	fake := &qdrantFake{status: http.StatusConflict}
	st := newTestStore(t, fake, &mockEmbedder{})

	assert.NoError(t, st.EnsureCollection(context.Background(), 1536), "an existing collection is not an error")
}
