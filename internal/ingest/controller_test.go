package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"newsrag/internal/model"
)

// mockStream feeds URLs from a channel and can be told to refuse the
// subscribe step.
type mockStream struct {
	subscribeErr   error
	subscribeCalls int
	urls           chan string
	closed         bool
	mu             sync.Mutex
}

func newMockStream() *mockStream {
	return &mockStream{urls: make(chan string, 16)}
}

func (m *mockStream) Subscribe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeCalls++
	return m.subscribeErr
}

func (m *mockStream) Fetch(ctx context.Context) (string, error) {
	select {
	case url := <-m.urls:
		return url, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *mockStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type mockProcessor struct {
	mu        sync.Mutex
	processed []string
	failURLs  map[string]error
}

func (m *mockProcessor) Process(ctx context.Context, url string) (model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, url)
	if err, ok := m.failURLs[url]; ok {
		return model.Article{}, err
	}
	return model.Article{ID: "id", URL: url}, nil
}

func (m *mockProcessor) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.processed...)
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fallback.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestController_StreamConsumption(t *testing.T) {
	stream := newMockStream()
	proc := &mockProcessor{failURLs: map[string]error{"https://x/bad": errors.New("boom")}}
	c := NewController(stream, proc, "", zap.NewNop())

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	stream.urls <- "https://x/1"
	stream.urls <- "https://x/bad"
	stream.urls <- "https://x/2"

	assert.Eventually(t, func() bool {
		return len(proc.seen()) == 3
	}, time.Second, 10*time.Millisecond, "a failing message must not stop the consumer")

	assert.Equal(t, []string{"https://x/1", "https://x/bad", "https://x/2"}, proc.seen())
}

func TestController_FallbackActivation(t *testing.T) {
	path := writeCSV(t, "title,url\nFirst,https://x/a\nSecond,https://x/b\n")

	stream := newMockStream()
	stream.subscribeErr = errors.New("broker unreachable")
	proc := &mockProcessor{}
	c := NewController(stream, proc, path, zap.NewNop())

	err := c.Start(context.Background())
	require.NoError(t, err, "fallback success means Start reports success")

	assert.Equal(t, []string{"https://x/a", "https://x/b"}, proc.seen())
}

func TestController_FallbackSkipsBadRecords(t *testing.T) {
	path := writeCSV(t, "url,title\nhttps://x/a,First\n,Empty\nhttps://x/fail,Broken\nhttps://x/b,Last\n")

	stream := newMockStream()
	stream.subscribeErr = errors.New("down")
	proc := &mockProcessor{failURLs: map[string]error{"https://x/fail": errors.New("extract error")}}
	c := NewController(stream, proc, path, zap.NewNop())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, []string{"https://x/a", "https://x/fail", "https://x/b"}, proc.seen())
}

func TestController_FallbackUnreadable(t *testing.T) {
	stream := newMockStream()
	stream.subscribeErr = errors.New("broker unreachable")
	proc := &mockProcessor{}
	c := NewController(stream, proc, filepath.Join(t.TempDir(), "missing.csv"), zap.NewNop())

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "fallback source", "the fallback error supersedes the stream error")

	// A failed start must leave the controller startable again.
	path := writeCSV(t, "url\nhttps://x/a\n")
	c.fallbackPath = path
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, []string{"https://x/a"}, proc.seen())
}

func TestController_FallbackMissingURLColumn(t *testing.T) {
	path := writeCSV(t, "title,link\nFirst,https://x/a\n")

	stream := newMockStream()
	stream.subscribeErr = errors.New("down")
	c := NewController(stream, &mockProcessor{}, path, zap.NewNop())

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "no url column")
}

func TestController_StartTwice(t *testing.T) {
	stream := newMockStream()
	c := NewController(stream, &mockProcessor{}, "", zap.NewNop())

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.NoError(t, c.Start(context.Background()), "starting while running is a successful no-op")
	assert.Equal(t, 1, stream.subscribeCalls, "second start must not subscribe again")
}

func TestController_StopIdempotent(t *testing.T) {
	stream := newMockStream()
	c := NewController(stream, &mockProcessor{}, "", zap.NewNop())

	c.Stop() // stop while idle is a no-op
	assert.False(t, stream.closed)

	require.NoError(t, c.Start(context.Background()))
	c.Stop()
	assert.True(t, stream.closed)
	c.Stop() // second stop is a no-op
}
