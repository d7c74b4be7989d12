package rag

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/newsintel/internal/embedding"
	"github.com/nikhilbhutani/newsintel/internal/models"
	"github.com/nikhilbhutani/newsintel/internal/vectorstore"
)

// tableEmbedder returns fixed vectors per text; unknown texts map to the
// zero vector.
type tableEmbedder struct {
	dim     int
	vectors map[string][]float32
	err     error
}

func (e *tableEmbedder) Name() string   { return "table" }
func (e *tableEmbedder) Dimension() int { return e.dim }

func (e *tableEmbedder) Encode(_ context.Context, texts []string, _ int) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = make([]float32, e.dim)
		}
	}
	return out, nil
}

type mapResolver map[string]models.Passage

func (m mapResolver) ResolveChunks(_ context.Context, ids []string) ([]models.Passage, error) {
	var out []models.Passage
	for _, id := range ids {
		if p, ok := m[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubGenerator struct {
	reply   string
	err     error
	delay   time.Duration
	calls   int
	prompts []string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.reply, g.err
}

func newIndex(t *testing.T, dim int) *vectorstore.FlatIndex {
	t.Helper()
	idx, err := vectorstore.Open(filepath.Join(t.TempDir(), "vectors.idx"), dim)
	require.NoError(t, err)
	return idx
}

// fixture indexes three chunks at distances 0, 1 and 3 from the query "q".
func fixture(t *testing.T) (*tableEmbedder, *vectorstore.FlatIndex, mapResolver) {
	t.Helper()
	emb := &tableEmbedder{dim: 2, vectors: map[string][]float32{"q": {0, 0}}}
	idx := newIndex(t, 2)
	_, err := idx.Add([][]float32{{3, 0}, {0, 0}, {1, 0}}, []string{"a_chunk_0", "b_chunk_0", "c_chunk_0"})
	require.NoError(t, err)

	res := mapResolver{
		"a_chunk_0": {ChunkID: "a_chunk_0", Source: "AP", Title: "A", Text: "alpha"},
		"b_chunk_0": {ChunkID: "b_chunk_0", Source: "Reuters", Title: "B", Text: "bravo"},
		"c_chunk_0": {ChunkID: "c_chunk_0", Source: "BBC", Title: "C", Text: "charlie"},
	}
	return emb, idx, res
}

func TestRetrieve_OrderedByScore(t *testing.T) {
	emb, idx, _ := fixture(t)
	r := NewRetriever(emb, idx)

	got, err := r.Retrieve(context.Background(), "q", 5, 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFound, got.Outcome)
	assert.Equal(t, []string{"b_chunk_0", "c_chunk_0", "a_chunk_0"}, got.ChunkIDs())
	assert.Equal(t, 1.0, got.Hits[0].Score)
	assert.Equal(t, 0.5, got.Hits[1].Score)
	assert.Equal(t, 0.25, got.Hits[2].Score)
}

func TestRetrieve_ThresholdAndTopK(t *testing.T) {
	emb, idx, _ := fixture(t)
	r := NewRetriever(emb, idx)

	got, err := r.Retrieve(context.Background(), "q", 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b_chunk_0", "c_chunk_0"}, got.ChunkIDs(), "score equal to threshold is kept")

	got, err = r.Retrieve(context.Background(), "q", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b_chunk_0"}, got.ChunkIDs())

	got, err = r.Retrieve(context.Background(), "q", 5, 1.01)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoResults, got.Outcome)
	assert.Empty(t, got.Hits)
}

func TestRetrieve_WithOverfetch(t *testing.T) {
	emb, idx, _ := fixture(t)

	got, err := NewRetriever(emb, idx, WithOverfetch(1)).Retrieve(context.Background(), "q", 1, 0.3)
	require.NoError(t, err)
	assert.Equal(t, []string{"b_chunk_0"}, got.ChunkIDs())

	got, err = NewRetriever(emb, idx, WithOverfetch(0)).Retrieve(context.Background(), "q", 2, 0)
	require.NoError(t, err)
	assert.Len(t, got.Hits, 2, "invalid overfetch keeps the default")
}

func TestRetrieve_EmptyIndexIsNoResults(t *testing.T) {
	r := NewRetriever(&tableEmbedder{dim: 2}, newIndex(t, 2))

	got, err := r.Retrieve(context.Background(), "anything at all", 5, 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoResults, got.Outcome)
}

func TestRetrieve_Faults(t *testing.T) {
	_, idx, _ := fixture(t)

	_, err := NewRetriever(&tableEmbedder{dim: 2, err: embedding.ErrEmbeddingFailure}, idx).
		Retrieve(context.Background(), "q", 5, 0)
	assert.ErrorIs(t, err, ErrRetrieval)
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailure)

	_, err = NewRetriever(&tableEmbedder{dim: 3}, idx).Retrieve(context.Background(), "q", 5, 0)
	assert.ErrorIs(t, err, ErrRetrieval)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	_, err = NewRetriever(&tableEmbedder{dim: 2}, idx).Retrieve(context.Background(), "q", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewRetriever(&tableEmbedder{dim: 2}, idx).Retrieve(context.Background(), "q", 1, -0.1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRetrieve_LargeTopK(t *testing.T) {
	emb, idx, _ := fixture(t)
	r := NewRetriever(emb, idx)

	_, err := r.Retrieve(context.Background(), "q", math.MaxInt/DefaultOverfetch+1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	got, err := r.Retrieve(context.Background(), "q", 1<<50, 0)
	require.NoError(t, err)
	assert.Len(t, got.Hits, 3)
}

func newEngine(t *testing.T, gen Generator, opts EngineOptions) *Engine {
	emb, idx, res := fixture(t)
	return NewEngine(NewRetriever(emb, idx), res, gen, opts)
}

func TestAnswer_Grounded(t *testing.T) {
	gen := &stubGenerator{reply: "Rates went up."}
	e := newEngine(t, gen, EngineOptions{TopK: 2, Threshold: 0.3})

	ans, err := e.Answer(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, ans.Outcome)
	assert.Equal(t, "Rates went up.", ans.Text)
	assert.Equal(t, PlaceholderConfidence, ans.Confidence)
	assert.Equal(t, []string{"b_chunk_0", "c_chunk_0"}, ans.Sources)
	assert.Equal(t, []float64{1, 0.5}, ans.Scores)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Source: Reuters\nTitle: B\nContent: bravo\n\nSource: BBC\nTitle: C\nContent: charlie")
	assert.Contains(t, gen.prompts[0], "USER QUERY:\nq")
}

func TestAnswer_NoResultsSkipsGeneration(t *testing.T) {
	gen := &stubGenerator{reply: "should not be used"}
	e := newEngine(t, gen, EngineOptions{TopK: 5, Threshold: 1.01})

	ans, err := e.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoResults, ans.Outcome)
	assert.Equal(t, NotFoundMessage, ans.Text)
	assert.Zero(t, ans.Confidence)
	assert.Empty(t, ans.Sources)
	assert.Zero(t, gen.calls)
}

func TestAnswer_SentinelMeansNotFound(t *testing.T) {
	emb := &tableEmbedder{dim: 2, vectors: map[string][]float32{"q": {0, 0}}}
	idx := newIndex(t, 2)
	// distance 1/9 gives a similarity of 0.9
	_, err := idx.Add([][]float32{{1.0 / 9, 0}}, []string{"d_chunk_0"})
	require.NoError(t, err)

	gen := &stubGenerator{reply: "Sorry. no RELEVANT information found in these sources."}
	e := NewEngine(NewRetriever(emb, idx), mapResolver{"d_chunk_0": {ChunkID: "d_chunk_0", Text: "x"}}, gen, EngineOptions{TopK: 5, Threshold: 0.3})

	ans, err := e.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, OutcomeNotFound, ans.Outcome)
	assert.Equal(t, NotFoundMessage, ans.Text)
	assert.Zero(t, ans.Confidence)
	assert.Empty(t, ans.Sources)
}

func TestAnswer_UnresolvedPassagesAreNoResults(t *testing.T) {
	emb, idx, _ := fixture(t)
	gen := &stubGenerator{reply: "x"}
	e := NewEngine(NewRetriever(emb, idx), mapResolver{}, gen, EngineOptions{TopK: 5})

	ans, err := e.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoResults, ans.Outcome)
	assert.Zero(t, gen.calls)
}

func TestAnswer_GenerationFault(t *testing.T) {
	e := newEngine(t, &stubGenerator{err: errors.New("quota exceeded")}, EngineOptions{TopK: 5})

	_, err := e.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestAnswer_GenerationTimeout(t *testing.T) {
	gen := &stubGenerator{reply: "late", delay: time.Second}
	e := newEngine(t, gen, EngineOptions{TopK: 5, GenerationTimeout: 20 * time.Millisecond})

	_, err := e.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildContext_TruncatesByCharacter(t *testing.T) {
	out := BuildContext([]models.Passage{
		{Source: "S", Title: "T", Text: strings.Repeat("é", 600)},
	}, 500)

	content := strings.TrimPrefix(out, "Source: S\nTitle: T\nContent: ")
	assert.Equal(t, 500, len([]rune(content)))

	assert.Equal(t, "Source: S\nTitle: T\nContent: short", BuildContext([]models.Passage{{Source: "S", Title: "T", Text: "short"}}, 500))
}
