package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/nikhilbhutani/newsintel/internal/ingestion"
	"github.com/nikhilbhutani/newsintel/internal/models"
	"github.com/nikhilbhutani/newsintel/internal/source"
	"github.com/nikhilbhutani/newsintel/pkg/textextract"
)

const (
	maxUploadBytes   = 32 << 20
	maxIngestRequest = 500
)

type Ingester interface {
	Ingest(ctx context.Context, docs []models.RawDocument) (*ingestion.Report, error)
}

// JobQueue is satisfied by *queue.Client.
type JobQueue interface {
	EnqueueIngest(ctx context.Context, sourceName string) (string, error)
}

type IngestHandler struct {
	ingester Ingester
	jobs     JobQueue
	sources  *source.Registry
}

// NewIngestHandler wires the ingestion endpoints. jobs may be nil when Redis
// is unavailable.
func NewIngestHandler(ingester Ingester, jobs JobQueue, sources *source.Registry) *IngestHandler {
	return &IngestHandler{ingester: ingester, jobs: jobs, sources: sources}
}

type IngestRequest struct {
	Documents []models.RawDocument `json:"documents"`
}

type JobRequest struct {
	Source string `json:"source"`
}

func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Documents) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documents required"})
		return
	}
	if len(req.Documents) > maxIngestRequest {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "too many documents in one request"})
		return
	}

	h.run(w, r, req.Documents)
}

// Upload extracts the text of a single PDF, DOCX, TXT or Markdown file and
// ingests it as one document.
func (h *IngestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read file"})
		return
	}

	doc, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = doc.Title
	}
	now := time.Now().UTC()
	h.run(w, r, []models.RawDocument{{
		Title:       title,
		Content:     doc.Content,
		Source:      r.FormValue("source"),
		Category:    r.FormValue("category"),
		PublishedAt: &now,
		Metadata:    map[string]string{"file_name": header.Filename, "format": doc.Format},
	}})
}

func (h *IngestHandler) run(w http.ResponseWriter, r *http.Request, docs []models.RawDocument) {
	report, err := h.ingester.Ingest(r.Context(), docs)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Enqueue schedules an asynchronous ingestion run for a registered source.
func (h *IngestHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if _, err := h.sources.Get(req.Source); err != nil {
		writeFault(w, r, err)
		return
	}
	if h.jobs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "job queue unavailable"})
		return
	}

	taskID, err := h.jobs.EnqueueIngest(r.Context(), req.Source)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "source": req.Source})
}

func (h *IngestHandler) Sources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": h.sources.Names()})
}
