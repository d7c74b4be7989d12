package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/newsintel/internal/config"
	"github.com/nikhilbhutani/newsintel/internal/llm"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func distance(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return math.Sqrt(s)
}

func TestHashingProvider_ShapeAndDeterminism(t *testing.T) {
	h, err := NewHashingProvider(64)
	require.NoError(t, err)

	texts := []string{"Central bank raises rates", "Local team wins final", "x"}
	a, err := h.Encode(context.Background(), texts, 2)
	require.NoError(t, err)
	b, err := h.Encode(context.Background(), texts, 0)
	require.NoError(t, err)

	require.Len(t, a, 3)
	assert.Equal(t, a, b, "batching must not change the output")
	for _, v := range a {
		assert.Len(t, v, 64)
		assert.InDelta(t, 1.0, norm(v), 1e-5)
	}
}

func TestHashingProvider_SharedVocabularyIsCloser(t *testing.T) {
	h, err := NewHashingProvider(384)
	require.NoError(t, err)

	vecs, err := h.Encode(context.Background(), []string{
		"Central bank raises interest rates",
		"bank rates interest",
		"football championship final tonight",
	}, 8)
	require.NoError(t, err)

	assert.Less(t, distance(vecs[0], vecs[1]), distance(vecs[0], vecs[2]))
}

func TestHashingProvider_EmptyInputs(t *testing.T) {
	h, err := NewHashingProvider(8)
	require.NoError(t, err)

	out, err := h.Encode(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = h.Encode(context.Background(), []string{"   "}, 4)
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), out[0])

	_, err = NewHashingProvider(0)
	assert.Error(t, err)
}

func TestHashingProvider_CancelledContext(t *testing.T) {
	h, err := NewHashingProvider(8)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.Encode(ctx, []string{"a"}, 1)
	assert.ErrorIs(t, err, ErrEmbeddingFailure)
}

type fakeGateway struct {
	dim     int
	drop    bool
	err     error
	batches [][]string
}

func (g *fakeGateway) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

func (g *fakeGateway) Provider(string) (llm.Provider, error) { return nil, errors.New("not used") }

func (g *fakeGateway) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.batches = append(g.batches, req.Input)
	n := len(req.Input)
	if g.drop {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, g.dim)
		out[i][0] = float32(len(req.Input[i]))
	}
	return &llm.EmbeddingResponse{Embeddings: out}, nil
}

func TestService_BatchesPreserveOrder(t *testing.T) {
	gw := &fakeGateway{dim: 3}
	s := NewService(gw, "openai", "text-embedding-3-small", 3)

	out, err := s.Encode(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"}, 2)
	require.NoError(t, err)

	assert.Len(t, gw.batches, 3)
	require.Len(t, out, 5)
	for i, v := range out {
		assert.Equal(t, float32(i+1), v[0])
	}
}

func TestService_Failures(t *testing.T) {
	tests := []struct {
		name string
		gw   *fakeGateway
		dim  int
	}{
		{"provider unavailable", &fakeGateway{dim: 3, err: errors.New("connection refused")}, 3},
		{"wrong count", &fakeGateway{dim: 3, drop: true}, 3},
		{"wrong dimension", &fakeGateway{dim: 2}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.gw, "ollama", "", tt.dim).Encode(context.Background(), []string{"a", "b"}, 8)
			assert.ErrorIs(t, err, ErrEmbeddingFailure)
		})
	}
}

func TestNew(t *testing.T) {
	p, err := New(config.EmbeddingConfig{Provider: "hash", Dimension: 16}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hash", p.Name())
	assert.Equal(t, 16, p.Dimension())

	p, err = New(config.EmbeddingConfig{Provider: "openai", Dimension: 1536}, &fakeGateway{})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = New(config.EmbeddingConfig{Provider: "ollama", Dimension: 8}, nil)
	assert.Error(t, err)

	_, err = New(config.EmbeddingConfig{Provider: "word2vec", Dimension: 8}, nil)
	assert.Error(t, err)
}
