package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/newsintel/internal/models"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const articleColumns = `id, title, content, summary, source, url, category, published_at,
	sentiment_score, sentiment_label, entities, main_topic, metadata, created_at`

// SaveArticles writes all articles and chunks in one transaction. Rows that
// already exist are overwritten.
func (s *PostgresStore) SaveArticles(ctx context.Context, articles []models.Article, chunks []models.Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range articles {
		entities, err := json.Marshal(a.Entities)
		if err != nil {
			return fmt.Errorf("marshal entities for %s: %w", a.ID, err)
		}
		metadata, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", a.ID, err)
		}
		batch.Queue(
			`INSERT INTO articles (`+articleColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
			 ON CONFLICT (id) DO UPDATE SET
			   title = EXCLUDED.title, content = EXCLUDED.content, summary = EXCLUDED.summary,
			   source = EXCLUDED.source, url = EXCLUDED.url, category = EXCLUDED.category,
			   published_at = EXCLUDED.published_at, sentiment_score = EXCLUDED.sentiment_score,
			   sentiment_label = EXCLUDED.sentiment_label, entities = EXCLUDED.entities,
			   main_topic = EXCLUDED.main_topic, metadata = EXCLUDED.metadata`,
			a.ID, a.Title, a.Content, a.Summary, a.Source, a.URL, a.Category, a.PublishedAt,
			a.SentimentScore, a.SentimentLabel, entities, a.MainTopic, metadata,
		)
	}
	for _, c := range chunks {
		batch.Queue(
			`INSERT INTO chunks (id, article_id, chunk_index, content)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, chunk_index = EXCLUDED.chunk_index`,
			c.ID, c.ArticleID, c.Index, c.Text,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert articles: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ResolveChunks(ctx context.Context, chunkIDs []string) ([]models.Passage, error) {
	if len(chunkIDs) == 0 {
		return []models.Passage{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.article_id, a.title, a.source, a.url, c.content
		 FROM chunks c JOIN articles a ON a.id = c.article_id
		 WHERE c.id = ANY($1)`,
		chunkIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}
	defer rows.Close()

	found := make(map[string]models.Passage, len(chunkIDs))
	for rows.Next() {
		var p models.Passage
		if err := rows.Scan(&p.ChunkID, &p.ArticleID, &p.Title, &p.Source, &p.URL, &p.Text); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		found[p.ChunkID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	passages := make([]models.Passage, 0, len(found))
	for _, id := range chunkIDs {
		if p, ok := found[id]; ok {
			passages = append(passages, p)
		}
	}
	return passages, nil
}

func (s *PostgresStore) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	row := s.db.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	a, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get article %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return a, nil
}

func (s *PostgresStore) ListArticles(ctx context.Context, filter ListFilter) ([]models.Article, error) {
	filter = filter.normalized()

	rows, err := s.db.Query(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE ($1 = '' OR lower(category) = lower($1))
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		filter.Category, filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

func (s *PostgresStore) RecordQuery(ctx context.Context, rec models.QueryRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO search_queries (id, query, result_count, response_time_ms, outcome, cached, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Query, rec.ResultCount, rec.ResponseTimeMs, rec.Outcome, rec.Cached, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	return nil
}

// TrendingTopics groups articles created since the given time by main topic,
// most frequent first.
func (s *PostgresStore) TrendingTopics(ctx context.Context, since time.Time, limit int) ([]models.TopicTrend, error) {
	rows, err := s.db.Query(ctx,
		`SELECT main_topic, count(*) AS article_count, coalesce(avg(sentiment_score), 0) AS avg_sentiment
		 FROM articles
		 WHERE created_at >= $1 AND main_topic <> ''
		 GROUP BY main_topic
		 ORDER BY article_count DESC, main_topic
		 LIMIT $2`,
		since, trendLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("trending topics: %w", err)
	}

	trends, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.TopicTrend])
	if err != nil {
		return nil, fmt.Errorf("scan trends: %w", err)
	}
	return trends, nil
}

func scanArticle(row pgx.Row) (*models.Article, error) {
	var (
		a                  models.Article
		entities, metadata []byte
	)
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Summary, &a.Source, &a.URL, &a.Category, &a.PublishedAt,
		&a.SentimentScore, &a.SentimentLabel, &entities, &a.MainTopic, &metadata, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &a.Entities); err != nil {
			return nil, fmt.Errorf("decode entities: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &a, nil
}
