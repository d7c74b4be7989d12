package document

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nikhilbhutani/newsintel/internal/models"
)

// MemoryStore keeps everything in process. It is used when no database is
// configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	articles map[string]models.Article
	order    []string
	chunks   map[string]models.Chunk
	queries  []models.QueryRecord
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		articles: make(map[string]models.Article),
		chunks:   make(map[string]models.Chunk),
	}
}

func (s *MemoryStore) SaveArticles(_ context.Context, articles []models.Article, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range articles {
		if _, ok := s.articles[a.ID]; !ok {
			s.order = append(s.order, a.ID)
		}
		s.articles[a.ID] = a
	}
	for _, c := range chunks {
		if _, ok := s.articles[c.ArticleID]; !ok {
			return fmt.Errorf("save chunk %s: unknown article %s", c.ID, c.ArticleID)
		}
		s.chunks[c.ID] = c
	}
	return nil
}

func (s *MemoryStore) ResolveChunks(_ context.Context, chunkIDs []string) ([]models.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	passages := make([]models.Passage, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		c, ok := s.chunks[id]
		if !ok {
			continue
		}
		a := s.articles[c.ArticleID]
		passages = append(passages, models.Passage{
			ChunkID:   c.ID,
			ArticleID: a.ID,
			Title:     a.Title,
			Source:    a.Source,
			URL:       a.URL,
			Text:      c.Text,
		})
	}
	return passages, nil
}

func (s *MemoryStore) GetArticle(_ context.Context, id string) (*models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("get article %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

// ListArticles returns the most recently saved articles first.
func (s *MemoryStore) ListArticles(_ context.Context, filter ListFilter) ([]models.Article, error) {
	filter = filter.normalized()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Article, 0, filter.Limit)
	skipped := 0
	for _, id := range slices.Backward(s.order) {
		a := s.articles[id]
		if filter.Category != "" && !strings.EqualFold(a.Category, filter.Category) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, a)
		if len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordQuery(_ context.Context, rec models.QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, rec)
	return nil
}

func (s *MemoryStore) TrendingTopics(_ context.Context, since time.Time, limit int) ([]models.TopicTrend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTopic := make(map[string]*models.TopicTrend)
	for _, a := range s.articles {
		if a.MainTopic == "" || a.CreatedAt.Before(since) {
			continue
		}
		t, ok := byTopic[a.MainTopic]
		if !ok {
			t = &models.TopicTrend{Topic: a.MainTopic}
			byTopic[a.MainTopic] = t
		}
		t.ArticleCount++
		t.AverageSentiment += a.SentimentScore
	}

	trends := make([]models.TopicTrend, 0, len(byTopic))
	for _, t := range byTopic {
		t.AverageSentiment /= float64(t.ArticleCount)
		trends = append(trends, *t)
	}
	slices.SortFunc(trends, func(a, b models.TopicTrend) int {
		if a.ArticleCount != b.ArticleCount {
			return b.ArticleCount - a.ArticleCount
		}
		return strings.Compare(a.Topic, b.Topic)
	})

	if n := trendLimit(limit); len(trends) > n {
		trends = trends[:n]
	}
	return trends, nil
}

func (s *MemoryStore) Queries() []models.QueryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.queries)
}
