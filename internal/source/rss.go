package source

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mmcdole/gofeed"

	"github.com/nikhilbhutani/newsintel/internal/models"
)

const maxFeedItems = 50

// RSS loads the newest items of an RSS or Atom feed.
type RSS struct {
	name     string
	feedURL  string
	category string
	parser   *gofeed.Parser
	seen     seenSet
}

// NewRSS names the source after the feed host, e.g. "rss:feeds.bbci.co.uk".
func NewRSS(feedURL, category string) *RSS {
	name := "rss"
	if u, err := url.Parse(feedURL); err == nil && u.Host != "" {
		name += ":" + u.Host
	}
	return &RSS{name: name, feedURL: feedURL, category: category, parser: gofeed.NewParser()}
}

func (r *RSS) Name() string { return r.name }

// Ack records docs as ingested so later loads skip them.
func (r *RSS) Ack(docs []models.RawDocument) { r.seen.mark(docs) }

func (r *RSS) Load(ctx context.Context) ([]models.RawDocument, error) {
	feed, err := r.parser.ParseURLWithContext(r.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", r.feedURL, err)
	}

	src := feed.Title
	if src == "" {
		src = "RSS Feed"
	}

	items := feed.Items
	if len(items) > maxFeedItems {
		items = items[:maxFeedItems]
	}

	docs := make([]models.RawDocument, 0, len(items))
	for _, it := range items {
		content := it.Content
		if content == "" {
			content = it.Description
		}
		docs = append(docs, models.RawDocument{
			ID:          itemID(it.Link, it.Title, content),
			Title:       it.Title,
			Content:     content,
			Source:      src,
			URL:         it.Link,
			Category:    r.category,
			PublishedAt: it.PublishedParsed,
		})
	}
	return r.seen.filter(docs), nil
}
