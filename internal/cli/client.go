package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nikhilbhutani/newsintel/internal/api/handlers"
	"github.com/nikhilbhutani/newsintel/internal/ingestion"
	"github.com/nikhilbhutani/newsintel/internal/models"
)

// Client talks to the newsintel HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Answer is the body of a query response.
type Answer struct {
	Answer         string           `json:"answer"`
	Status         string           `json:"status"`
	Sources        []string         `json:"sources"`
	Confidence     float64          `json:"confidence"`
	Passages       []models.Passage `json:"passages"`
	Cached         bool             `json:"cached"`
	ResponseTimeMs int64            `json:"response_time_ms"`
}

type IndexStats struct {
	Vectors   int    `json:"vectors"`
	Dimension int    `json:"dimension"`
	Embedder  string `json:"embedder"`
}

type JobInfo struct {
	TaskID string `json:"task_id"`
	Source string `json:"source"`
}

func (c *Client) Query(ctx context.Context, query string) (*Answer, error) {
	var out Answer
	err := c.do(ctx, http.MethodPost, "/api/v1/rag/query", handlers.QueryRequest{Query: query}, &out)
	return &out, err
}

func (c *Client) Search(ctx context.Context, req handlers.SearchRequest) (*handlers.SearchResponse, error) {
	var out handlers.SearchResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/rag/search", req, &out)
	return &out, err
}

func (c *Client) Ingest(ctx context.Context, docs []models.RawDocument) (*ingestion.Report, error) {
	var out ingestion.Report
	err := c.do(ctx, http.MethodPost, "/api/v1/ingest", handlers.IngestRequest{Documents: docs}, &out)
	return &out, err
}

// Upload sends a single file for text extraction and ingestion.
func (c *Client) Upload(ctx context.Context, path, category string) (*ingestion.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if category != "" {
		if err := mw.WriteField("category", category); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/ingest/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out ingestion.Report
	return &out, c.send(req, &out)
}

func (c *Client) Enqueue(ctx context.Context, sourceName string) (*JobInfo, error) {
	var out JobInfo
	err := c.do(ctx, http.MethodPost, "/api/v1/ingest/jobs", handlers.JobRequest{Source: sourceName}, &out)
	return &out, err
}

func (c *Client) Articles(ctx context.Context, category string, limit, offset int) ([]models.Article, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var out struct {
		Articles []models.Article `json:"articles"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/articles?"+q.Encode(), nil, &out)
	return out.Articles, err
}

func (c *Client) Article(ctx context.Context, id string) (*models.Article, error) {
	var out models.Article
	err := c.do(ctx, http.MethodGet, "/api/v1/articles/"+url.PathEscape(id), nil, &out)
	return &out, err
}

func (c *Client) Trends(ctx context.Context, hours, limit int) ([]models.TopicTrend, error) {
	q := url.Values{}
	q.Set("hours", strconv.Itoa(hours))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out struct {
		Trends []models.TopicTrend `json:"trends"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/trends?"+q.Encode(), nil, &out)
	return out.Trends, err
}

func (c *Client) Stats(ctx context.Context) (*IndexStats, error) {
	var out IndexStats
	err := c.do(ctx, http.MethodGet, "/api/v1/index/stats", nil, &out)
	return &out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
