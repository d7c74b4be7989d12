package document

import (
	"context"
	"errors"
	"time"

	"github.com/nikhilbhutani/newsintel/internal/models"
)

var ErrNotFound = errors.New("article not found")

// Store persists articles and their chunks and maps chunk ids back to
// attributed passages.
type Store interface {
	SaveArticles(ctx context.Context, articles []models.Article, chunks []models.Chunk) error
	ResolveChunks(ctx context.Context, chunkIDs []string) ([]models.Passage, error)
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	ListArticles(ctx context.Context, filter ListFilter) ([]models.Article, error)
	RecordQuery(ctx context.Context, rec models.QueryRecord) error
	TrendingTopics(ctx context.Context, since time.Time, limit int) ([]models.TopicTrend, error)
}

type ListFilter struct {
	Category string
	Limit    int
	Offset   int
}

const (
	defaultListLimit = 20
	maxListLimit     = 100

	defaultTrendLimit = 20
)

func trendLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return defaultTrendLimit
	}
	return limit
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
