package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nikhilbhutani/newsintel/internal/models"
)

const newsAPIBaseURL = "https://newsapi.org/v2"

// NewsAPI loads top headlines from newsapi.org.
type NewsAPI struct {
	apiKey   string
	category string
	pageSize int
	country  string
	baseURL  string
	client   *http.Client
	seen     seenSet
}

type NewsAPIOption func(*NewsAPI)

func WithNewsAPIBaseURL(u string) NewsAPIOption {
	return func(n *NewsAPI) { n.baseURL = strings.TrimRight(u, "/") }
}

// WithCountry overrides the default "us" headline country. Empty keeps it.
func WithCountry(c string) NewsAPIOption {
	return func(n *NewsAPI) {
		if c != "" {
			n.country = c
		}
	}
}

func NewNewsAPI(apiKey, category string, pageSize int, opts ...NewsAPIOption) *NewsAPI {
	n := &NewsAPI{
		apiKey:   apiKey,
		category: category,
		pageSize: pageSize,
		country:  "us",
		baseURL:  newsAPIBaseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *NewsAPI) Name() string { return "newsapi" }

// Ack records docs as ingested so later loads skip them.
func (n *NewsAPI) Ack(docs []models.RawDocument) { n.seen.mark(docs) }

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"publishedAt"`
}

func (n *NewsAPI) Load(ctx context.Context) ([]models.RawDocument, error) {
	q := url.Values{}
	q.Set("country", n.country)
	q.Set("category", n.category)
	q.Set("pageSize", strconv.Itoa(n.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/top-headlines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build newsapi request: %w", err)
	}
	req.Header.Set("X-Api-Key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch headlines: %w", err)
	}
	defer resp.Body.Close()

	var body newsAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode headlines (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		return nil, fmt.Errorf("newsapi %s: %s (status %d)", body.Code, body.Message, resp.StatusCode)
	}

	docs := make([]models.RawDocument, 0, len(body.Articles))
	for _, a := range body.Articles {
		content := a.Content
		if content == "" {
			content = a.Description
		}
		src := a.Source.Name
		if src == "" {
			src = "NewsAPI"
		}
		docs = append(docs, models.RawDocument{
			ID:          itemID(a.URL, a.Title, content),
			Title:       a.Title,
			Content:     content,
			Source:      src,
			URL:         a.URL,
			Category:    n.category,
			PublishedAt: a.PublishedAt,
		})
	}
	return n.seen.filter(docs), nil
}
