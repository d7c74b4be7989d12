package models

import "time"

// RawDocument is an incoming news item before cleaning and enrichment.
type RawDocument struct {
	ID          string            `json:"id,omitempty"`
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	Source      string            `json:"source"`
	URL         string            `json:"url,omitempty"`
	Category    string            `json:"category,omitempty"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Article is a cleaned, enriched document. It is not modified after indexing
// apart from Summary.
type Article struct {
	ID             string              `json:"id" db:"id"`
	Title          string              `json:"title" db:"title"`
	Content        string              `json:"content" db:"content"`
	Summary        string              `json:"summary,omitempty" db:"summary"`
	Source         string              `json:"source" db:"source"`
	URL            string              `json:"url,omitempty" db:"url"`
	Category       string              `json:"category,omitempty" db:"category"`
	PublishedAt    *time.Time          `json:"published_at,omitempty" db:"published_at"`
	SentimentScore float64             `json:"sentiment_score" db:"sentiment_score"`
	SentimentLabel string              `json:"sentiment_label,omitempty" db:"sentiment_label"`
	Entities       map[string][]string `json:"entities,omitempty" db:"entities"`
	MainTopic      string              `json:"main_topic,omitempty" db:"main_topic"`
	Metadata       map[string]string   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
}

type Chunk struct {
	ID        string `json:"id" db:"id"`
	ArticleID string `json:"article_id" db:"article_id"`
	Index     int    `json:"index" db:"chunk_index"`
	Text      string `json:"text" db:"content"`
}

// Passage is a chunk joined with the attribution of its article.
type Passage struct {
	ChunkID   string `json:"chunk_id"`
	ArticleID string `json:"article_id"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	URL       string `json:"url,omitempty"`
	Text      string `json:"text"`
}

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)
