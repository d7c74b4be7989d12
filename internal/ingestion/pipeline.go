package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/newsintel/internal/document"
	"github.com/nikhilbhutani/newsintel/internal/embedding"
	"github.com/nikhilbhutani/newsintel/internal/enrich"
	"github.com/nikhilbhutani/newsintel/internal/models"
	"github.com/nikhilbhutani/newsintel/internal/source"
	"github.com/nikhilbhutani/newsintel/internal/vectorstore"
	"github.com/nikhilbhutani/newsintel/pkg/chunker"
)

var ErrIngestion = errors.New("ingestion fault")

const (
	StageEnrich   = "enrich"
	StageConflict = "conflict"

	defaultSummarySentences = 3
)

type Options struct {
	Chunk            chunker.Options
	BatchSize        int
	Concurrency      int
	SummarySentences int
}

// DocumentFault is a per-document problem that did not stop the run.
type DocumentFault struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title,omitempty"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

type Report struct {
	Indexed    int             `json:"indexed"`
	Skipped    int             `json:"skipped"`
	Chunks     int             `json:"chunks"`
	Faults     []DocumentFault `json:"faults"`
	ArticleIDs []string        `json:"article_ids"`
	DurationMs int64           `json:"duration_ms"`
}

type Pipeline struct {
	store    document.Store
	embedder embedding.Provider
	index    vectorstore.Index
	enricher enrich.Enricher
	opts     Options
}

func NewPipeline(store document.Store, embedder embedding.Provider, index vectorstore.Index, enricher enrich.Enricher, opts Options) (*Pipeline, error) {
	if err := opts.Chunk.Validate(); err != nil {
		return nil, err
	}
	if embedder.Dimension() != index.Dimension() {
		return nil, fmt.Errorf("%w: embedder %s produces %d dimensions, index holds %d",
			vectorstore.ErrDimensionMismatch, embedder.Name(), embedder.Dimension(), index.Dimension())
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = defaultSummarySentences
	}
	if enricher == nil {
		enricher = enrich.Disabled{}
	}
	return &Pipeline{store: store, embedder: embedder, index: index, enricher: enricher, opts: opts}, nil
}

// IngestSource loads documents from src and ingests them. Sources that track
// what they returned are acknowledged only after a successful run, so a failed
// run is retried with the same documents.
func (p *Pipeline) IngestSource(ctx context.Context, src source.Source) (*Report, error) {
	docs, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", ErrIngestion, src.Name(), err)
	}
	slog.Info("loaded documents", "source", src.Name(), "count", len(docs))

	report, err := p.Ingest(ctx, docs)
	if err != nil {
		return nil, err
	}
	if acker, ok := src.(source.Acker); ok {
		acker.Ack(docs)
	}
	return report, nil
}

// Ingest cleans, enriches, chunks, embeds and indexes docs. Documents that
// are empty after cleaning are skipped and enrichment problems are reported
// per document; an embedding or index failure aborts the whole run and leaves
// both the index and the document store unchanged. Articles are stored only
// after their vectors are indexed. Re-ingesting a document indexes it again.
func (p *Pipeline) Ingest(ctx context.Context, docs []models.RawDocument) (*Report, error) {
	start := time.Now()
	report := &Report{Faults: []DocumentFault{}, ArticleIDs: []string{}}

	articles := make([]models.Article, 0, len(docs))
	for _, d := range docs {
		a := newArticle(d)
		if a.Content == "" {
			slog.Info("skipping empty document", "document_id", a.ID, "title", a.Title)
			report.Skipped++
			continue
		}
		articles = append(articles, a)
	}

	articles, conflicts, err := p.dropConflicts(ctx, articles)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngestion, err)
	}
	report.Skipped += len(conflicts)
	report.Faults = append(report.Faults, conflicts...)

	report.Faults = append(report.Faults, p.enrichAll(ctx, articles)...)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngestion, err)
	}

	var chunks []models.Chunk
	for i := range articles {
		a := &articles[i]
		a.Summary = enrich.Summarize(a.Content, p.opts.SummarySentences)

		parts, err := chunker.Chunk(a.Content, a.ID, p.opts.Chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %s: %w", ErrIngestion, a.ID, err)
		}
		for _, c := range parts {
			chunks = append(chunks, models.Chunk{ID: c.ID, ArticleID: a.ID, Index: c.Index, Text: c.Text})
		}
	}

	if len(articles) == 0 {
		report.DurationMs = time.Since(start).Milliseconds()
		return report, nil
	}

	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		ids[i] = c.ID
	}

	vectors, err := p.embedder.Encode(ctx, texts, p.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngestion, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", ErrIngestion, len(vectors), len(chunks))
	}

	positions, err := p.index.Add(vectors, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngestion, err)
	}

	if err := p.store.SaveArticles(ctx, articles, chunks); err != nil {
		// the index is append-only; these positions stay unresolvable
		slog.Error("articles indexed but not stored",
			"articles", len(articles),
			"first_position", positions[0],
			"vectors", len(positions),
			"error", err,
		)
		return nil, fmt.Errorf("%w: save articles: %w", ErrIngestion, err)
	}

	report.Indexed = len(articles)
	report.Chunks = len(chunks)
	for _, a := range articles {
		report.ArticleIDs = append(report.ArticleIDs, a.ID)
	}
	report.DurationMs = time.Since(start).Milliseconds()

	slog.Info("ingestion complete",
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"chunks", report.Chunks,
		"faults", len(report.Faults),
		"duration_ms", report.DurationMs,
	)
	return report, nil
}

func newArticle(d models.RawDocument) models.Article {
	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}
	return models.Article{
		ID:          id,
		Title:       enrich.CleanText(d.Title),
		Content:     enrich.CleanText(d.Content),
		Source:      d.Source,
		URL:         d.URL,
		Category:    d.Category,
		PublishedAt: d.PublishedAt,
		Metadata:    d.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
}

// dropConflicts removes articles whose id is already stored, or used earlier
// in the batch, with different content. Indexed chunk ids must keep resolving
// to the text they were embedded from. Same id with same content is kept and
// indexed again.
func (p *Pipeline) dropConflicts(ctx context.Context, articles []models.Article) ([]models.Article, []DocumentFault, error) {
	var faults []DocumentFault
	batch := make(map[string]string, len(articles))
	kept := articles[:0]
	for _, a := range articles {
		content, ok := batch[a.ID]
		if !ok {
			existing, err := p.store.GetArticle(ctx, a.ID)
			switch {
			case errors.Is(err, document.ErrNotFound):
				content, ok = a.Content, true
			case err != nil:
				return nil, nil, fmt.Errorf("look up article %s: %w", a.ID, err)
			default:
				content, ok = existing.Content, true
			}
			batch[a.ID] = content
		}
		if content != a.Content {
			slog.Warn("skipping document whose id is taken by different content", "document_id", a.ID)
			faults = append(faults, DocumentFault{
				DocumentID: a.ID,
				Title:      a.Title,
				Stage:      StageConflict,
				Error:      "id already used for different content",
			})
			continue
		}
		kept = append(kept, a)
	}
	return kept, faults, nil
}

// enrichAll fills in enrichment fields concurrently. Failures never abort the
// run; the article keeps whatever partial result the enricher returned.
func (p *Pipeline) enrichAll(ctx context.Context, articles []models.Article) []DocumentFault {
	errs := make([]error, len(articles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i := range articles {
		g.Go(func() error {
			a := &articles[i]
			e, err := p.enricher.Enrich(gctx, a.Content)
			a.SentimentScore = e.SentimentScore
			a.SentimentLabel = e.SentimentLabel
			a.Entities = e.Entities
			a.MainTopic = e.MainTopic
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var faults []DocumentFault
	for i, err := range errs {
		if err == nil {
			continue
		}
		slog.Warn("enrichment failed", "document_id", articles[i].ID, "enricher", p.enricher.Name(), "error", err)
		faults = append(faults, DocumentFault{
			DocumentID: articles[i].ID,
			Title:      articles[i].Title,
			Stage:      StageEnrich,
			Error:      err.Error(),
		})
	}
	return faults
}
