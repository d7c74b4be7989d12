package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/newsintel/internal/config"
	"github.com/nikhilbhutani/newsintel/internal/models"
)

func TestStaticAndRegistry(t *testing.T) {
	docs := []models.RawDocument{{Title: "a", Content: "x"}}
	s := NewStatic("seed", docs)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, docs, got)

	r := NewRegistry(s, NewDir(t.TempDir(), ""))
	assert.Equal(t, []string{"dir", "seed"}, r.Names())
	_, err = r.Get("seed")
	assert.NoError(t, err)
	_, err = r.Get("twitter")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestNewsAPI_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/top-headlines", r.URL.Path)
		assert.Equal(t, "business", r.URL.Query().Get("category"))
		assert.Equal(t, "us", r.URL.Query().Get("country"))
		assert.Equal(t, "25", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		_, _ = w.Write([]byte(`{"status":"ok","articles":[
			{"source":{"name":"Reuters"},"title":"Rates","content":"Body text","url":"https://x/1","publishedAt":"2024-05-01T10:00:00Z"},
			{"source":{"name":""},"title":"Only description","description":"Short desc","content":null}
		]}`))
	}))
	defer srv.Close()

	api := NewNewsAPI("secret", "business", 25, WithNewsAPIBaseURL(srv.URL+"/"))
	docs, err := api.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.NotEqual(t, docs[0].ID, docs[1].ID)

	assert.Equal(t, "Reuters", docs[0].Source)
	assert.Equal(t, "Body text", docs[0].Content)
	assert.Equal(t, "business", docs[0].Category)
	require.NotNil(t, docs[0].PublishedAt)
	assert.Equal(t, 2024, docs[0].PublishedAt.Year())

	assert.Equal(t, "NewsAPI", docs[1].Source)
	assert.Equal(t, "Short desc", docs[1].Content)

	again, err := api.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, again, 2, "unacknowledged headlines are loaded again")

	api.Ack(docs)
	again, err = api.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again, "acknowledged headlines are not loaded twice")
}

func TestNewsAPI_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "code": "apiKeyInvalid", "message": "bad key"})
	}))
	defer srv.Close()

	_, err := NewNewsAPI("nope", "general", 10, WithNewsAPIBaseURL(srv.URL)).Load(context.Background())
	assert.ErrorContains(t, err, "apiKeyInvalid")
}

func TestRSS_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Daily Wire</title>
<item><title>Chip exports</title><link>https://x/2</link><description>Export rules tightened.</description>
<pubDate>Wed, 01 May 2024 10:00:00 GMT</pubDate></item>
</channel></rss>`))
	}))
	defer srv.Close()

	feed := NewRSS(srv.URL, "technology")
	assert.True(t, strings.HasPrefix(feed.Name(), "rss:127.0.0.1:"))

	docs, err := feed.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEmpty(t, docs[0].ID)
	assert.Equal(t, "Daily Wire", docs[0].Source)
	assert.Equal(t, "Export rules tightened.", docs[0].Content)
	assert.Equal(t, "technology", docs[0].Category)
	assert.NotNil(t, docs[0].PublishedAt)

	feed.Ack(docs)
	again, err := feed.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestDir_LoadOnlyNewOrChanged(t *testing.T) {
	root := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
	}
	write("a.txt", "Rates rise\nThe bank raised rates.")
	write("b.md", "# Cup final\nA late goal.")
	write("ignored.png", "binary")

	d := NewDir(root, "local")
	docs, err := d.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Rates rise", docs[0].Title)
	assert.Equal(t, "a.txt", docs[0].Source)
	assert.Equal(t, "Cup final", docs[1].Title)
	assert.Equal(t, "local", docs[1].Category)
	firstID := docs[0].ID

	again, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, again, 2, "files are reloaded until acknowledged")

	d.Ack(docs)
	docs, err = d.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs, "unchanged files are not reloaded")

	write("a.txt", "Rates rise again\nMore hikes.")
	docs, err = d.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEqual(t, firstID, docs[0].ID)
}

func TestSeenSet_FilterDropsDuplicatesWithoutMarking(t *testing.T) {
	var s seenSet
	docs := []models.RawDocument{{ID: "a"}, {ID: "b"}, {ID: "a"}}

	got := s.filter(slices.Clone(docs))
	assert.Len(t, got, 2)
	assert.Len(t, s.filter(slices.Clone(docs)), 2)

	s.mark(got[:1])
	got = s.filter(slices.Clone(docs))
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestWatch_BatchesEvents(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, 50*time.Millisecond, func(_ context.Context, paths []string) {
			mu.Lock()
			got = append(got, paths...)
			mu.Unlock()
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, got, filepath.Join(dir, "one.txt"))
	assert.NotContains(t, got, filepath.Join(dir, "skip.bin"))
}

func TestFromConfig(t *testing.T) {
	reg, dir := FromConfig(config.IngestionConfig{
		NewsAPIKey: "k",
		Category:   "general",
		BatchSize:  10,
		RSSFeeds:   []string{"https://feeds.example.com/world.xml"},
		WatchDir:   t.TempDir(),
	})
	assert.Equal(t, []string{"dir", "newsapi", "rss:feeds.example.com"}, reg.Names())
	assert.NotNil(t, dir)

	reg, dir = FromConfig(config.IngestionConfig{})
	assert.Empty(t, reg.Names())
	assert.Nil(t, dir)
}
