package models

import "time"

// QueryRecord is one answered or searched query, kept for analytics.
type QueryRecord struct {
	ID             string    `json:"id" db:"id"`
	Query          string    `json:"query" db:"query"`
	ResultCount    int       `json:"result_count" db:"result_count"`
	ResponseTimeMs int64     `json:"response_time_ms" db:"response_time_ms"`
	Outcome        string    `json:"outcome" db:"outcome"`
	Cached         bool      `json:"cached" db:"cached"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// TopicTrend counts recent articles sharing a main topic.
type TopicTrend struct {
	Topic            string  `json:"topic" db:"main_topic"`
	ArticleCount     int     `json:"article_count" db:"article_count"`
	AverageSentiment float64 `json:"avg_sentiment" db:"avg_sentiment"`
}
