package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/newsintel/internal/cache"
	"github.com/nikhilbhutani/newsintel/internal/guardrails"
	"github.com/nikhilbhutani/newsintel/internal/models"
	"github.com/nikhilbhutani/newsintel/internal/rag"
)

// MaxQueryChars bounds query length when no guard is configured.
const MaxQueryChars = 2000

type Answerer interface {
	Answer(ctx context.Context, query string) (*rag.Answer, error)
}

type Searcher interface {
	Retrieve(ctx context.Context, query string, topK int, threshold float64) (*rag.Retrieval, error)
}

// AnswerCache is satisfied by *cache.Cache.
type AnswerCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

type QueryRecorder interface {
	RecordQuery(ctx context.Context, rec models.QueryRecord) error
}

// QueryGuard is satisfied by *guardrails.Pipeline.
type QueryGuard interface {
	Check(ctx context.Context, text string) (*guardrails.Result, error)
}

type RAGOptions struct {
	TopK      int
	Threshold float64
	Guard     QueryGuard
	// Generation identifies the current state of the searchable corpus; a
	// change invalidates cached answers.
	Generation func() int
}

type RAGHandler struct {
	answerer Answerer
	searcher Searcher
	passages rag.PassageResolver
	recorder QueryRecorder
	cache    AnswerCache
	opts     RAGOptions
}

// NewRAGHandler wires the query endpoints. cache may be nil.
func NewRAGHandler(answerer Answerer, searcher Searcher, passages rag.PassageResolver, recorder QueryRecorder, cache AnswerCache, opts RAGOptions) *RAGHandler {
	if opts.Generation == nil {
		opts.Generation = func() int { return 0 }
	}
	if opts.Guard == nil {
		opts.Guard = guardrails.NewPipeline(guardrails.NewLengthGuard(MaxQueryChars))
	}
	return &RAGHandler{
		answerer: answerer,
		searcher: searcher,
		passages: passages,
		recorder: recorder,
		cache:    cache,
		opts:     opts,
	}
}

type QueryRequest struct {
	Query string `json:"query"`
}

type QueryResponse struct {
	*rag.Answer
	Cached         bool  `json:"cached"`
	ResponseTimeMs int64 `json:"response_time_ms"`
}

type SearchRequest struct {
	Query     string   `json:"query"`
	TopK      int      `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type SearchResult struct {
	rag.Hit
	ArticleID string `json:"article_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Source    string `json:"source,omitempty"`
	URL       string `json:"url,omitempty"`
	Text      string `json:"text,omitempty"`
}

type SearchResponse struct {
	Status  rag.Outcome    `json:"status"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

func (h *RAGHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	query, ok := h.validQuery(w, r, req.Query)
	if !ok {
		return
	}

	start := time.Now()
	key := cache.AnswerKey(query, h.opts.Generation())

	var answer rag.Answer
	cached := h.cachedAnswer(r.Context(), key, &answer)
	if !cached {
		a, err := h.answerer.Answer(r.Context(), query)
		if err != nil {
			writeFault(w, r, err)
			return
		}
		answer = *a
		h.storeAnswer(r.Context(), key, &answer)
	}

	elapsed := time.Since(start).Milliseconds()
	h.record(r.Context(), query, len(answer.Sources), elapsed, answer.Outcome, cached)

	writeJSON(w, http.StatusOK, QueryResponse{Answer: &answer, Cached: cached, ResponseTimeMs: elapsed})
}

func (h *RAGHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	query, ok := h.validQuery(w, r, req.Query)
	if !ok {
		return
	}

	topK := h.opts.TopK
	if req.TopK != 0 {
		topK = req.TopK
	}
	threshold := h.opts.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	start := time.Now()
	retrieval, err := h.searcher.Retrieve(r.Context(), query, topK, threshold)
	if err != nil {
		writeFault(w, r, err)
		return
	}

	results, err := h.attachPassages(r.Context(), retrieval)
	if err != nil {
		writeFault(w, r, err)
		return
	}

	h.record(r.Context(), query, len(results), time.Since(start).Milliseconds(), retrieval.Outcome, false)

	writeJSON(w, http.StatusOK, SearchResponse{Status: retrieval.Outcome, Results: results, Count: len(results)})
}

func (h *RAGHandler) attachPassages(ctx context.Context, retrieval *rag.Retrieval) ([]SearchResult, error) {
	results := make([]SearchResult, len(retrieval.Hits))
	if len(retrieval.Hits) == 0 {
		return results, nil
	}

	passages, err := h.passages.ResolveChunks(ctx, retrieval.ChunkIDs())
	if err != nil {
		return nil, err
	}
	byChunk := make(map[string]models.Passage, len(passages))
	for _, p := range passages {
		byChunk[p.ChunkID] = p
	}

	for i, hit := range retrieval.Hits {
		res := SearchResult{Hit: hit}
		if p, ok := byChunk[hit.ChunkID]; ok {
			res.ArticleID, res.Title, res.Source, res.URL, res.Text = p.ArticleID, p.Title, p.Source, p.URL, p.Text
		}
		results[i] = res
	}
	return results, nil
}

func (h *RAGHandler) cachedAnswer(ctx context.Context, key string, dest *rag.Answer) bool {
	if h.cache == nil {
		return false
	}
	hit, err := h.cache.Get(ctx, key, dest)
	if err != nil {
		slog.Warn("answer cache read failed", "error", err)
		return false
	}
	return hit
}

func (h *RAGHandler) storeAnswer(ctx context.Context, key string, answer *rag.Answer) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, key, answer); err != nil {
		slog.Warn("answer cache write failed", "error", err)
	}
}

func (h *RAGHandler) record(ctx context.Context, query string, results int, elapsedMs int64, outcome rag.Outcome, cached bool) {
	if h.recorder == nil {
		return
	}
	err := h.recorder.RecordQuery(ctx, models.QueryRecord{
		ID:             uuid.NewString(),
		Query:          query,
		ResultCount:    results,
		ResponseTimeMs: elapsedMs,
		Outcome:        string(outcome),
		Cached:         cached,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("failed to record query", "error", err)
	}
}

func (h *RAGHandler) validQuery(w http.ResponseWriter, r *http.Request, q string) (string, bool) {
	q = strings.TrimSpace(q)
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query required"})
		return "", false
	}

	verdict, err := h.opts.Guard.Check(r.Context(), q)
	if err != nil {
		writeFault(w, r, err)
		return "", false
	}
	if !verdict.Allowed {
		slog.Info("query rejected by guardrails", "reason", verdict.Reason, "flags", verdict.Flags)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": verdict.Reason, "flags": verdict.Flags})
		return "", false
	}
	return q, true
}
