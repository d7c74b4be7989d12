package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/newsintel/internal/document"
	"github.com/nikhilbhutani/newsintel/internal/vectorstore"
)

const defaultTrendWindow = 24 * time.Hour

type ArticleHandler struct {
	store document.Store
}

func NewArticleHandler(store document.Store) *ArticleHandler {
	return &ArticleHandler{store: store}
}

func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	articles, err := h.store.ListArticles(r.Context(), document.ListFilter{
		Category: q.Get("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeFault(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"articles": articles, "count": len(articles)})
}

func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Trends lists the most frequent main topics over the last "hours" hours.
func (h *ArticleHandler) Trends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window := defaultTrendWindow
	if v := q.Get("hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hours must be a positive integer"})
			return
		}
		window = time.Duration(hours) * time.Hour
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	trends, err := h.store.TrendingTopics(r.Context(), time.Now().Add(-window), limit)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trends": trends, "window_hours": int(window.Hours())})
}

type IndexHandler struct {
	index    vectorstore.Index
	embedder string
}

func NewIndexHandler(index vectorstore.Index, embedder string) *IndexHandler {
	return &IndexHandler{index: index, embedder: embedder}
}

func (h *IndexHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"vectors":   h.index.Len(),
		"dimension": h.index.Dimension(),
		"embedder":  h.embedder,
	})
}
