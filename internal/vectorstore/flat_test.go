package vectorstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, dim int) (*FlatIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "vectors.idx")
	idx, err := Open(path, dim)
	require.NoError(t, err)
	return idx, path
}

func TestFlatIndex_EmptySearch(t *testing.T) {
	idx, _ := openTemp(t, 3)

	res, err := idx.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, 0, idx.Len())
}

func TestFlatIndex_Reflexive(t *testing.T) {
	idx, _ := openTemp(t, 2)

	positions, err := idx.Add([][]float32{{1, 0}, {0, 1}, {3, 4}}, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, positions)

	res, err := idx.Search([]float32{3, 4}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 2, res[0].Position)
	assert.Equal(t, 0.0, res[0].Distance)
}

func TestFlatIndex_SearchOrderAndBounds(t *testing.T) {
	idx, _ := openTemp(t, 2)
	_, err := idx.Add([][]float32{{10, 0}, {1, 0}, {5, 0}}, []string{"far", "near", "mid"})
	require.NoError(t, err)

	res, err := idx.Search([]float32{0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, res, 3, "fewer than top_k vectors returns all of them")
	assert.Equal(t, []int{1, 2, 0}, []int{res[0].Position, res[1].Position, res[2].Position})
	assert.InDelta(t, 1.0, res[0].Distance, 1e-9)
	assert.InDelta(t, 5.0, res[1].Distance, 1e-9)
	assert.InDelta(t, 10.0, res[2].Distance, 1e-9)

	res, err = idx.Search([]float32{0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestFlatIndex_TiesOrderedByPosition(t *testing.T) {
	idx, _ := openTemp(t, 1)
	_, err := idx.Add([][]float32{{1}, {-1}, {1}}, []string{"a", "b", "c"})
	require.NoError(t, err)

	res, err := idx.Search([]float32{0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, []int{res[0].Position, res[1].Position, res[2].Position})
}

func TestFlatIndex_AppendOnlyPositions(t *testing.T) {
	idx, _ := openTemp(t, 2)

	first, err := idx.Add([][]float32{{1, 1}, {2, 2}}, []string{"m0", "m1"})
	require.NoError(t, err)
	second, err := idx.Add([][]float32{{3, 3}, {4, 4}, {5, 5}}, []string{"n0", "n1", "n2"})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, first)
	assert.Equal(t, []int{2, 3, 4}, second)

	want := []string{"m0", "m1", "n0", "n1", "n2"}
	for p, id := range want {
		got, err := idx.Resolve(p)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestFlatIndex_ResolveUnknown(t *testing.T) {
	idx, _ := openTemp(t, 2)
	_, err := idx.Add([][]float32{{1, 1}}, []string{"a"})
	require.NoError(t, err)

	_, err = idx.Resolve(1)
	assert.ErrorIs(t, err, ErrUnknownPosition)
	_, err = idx.Resolve(-1)
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestFlatIndex_AddValidation(t *testing.T) {
	idx, _ := openTemp(t, 3)

	_, err := idx.Add([][]float32{{1, 2, 3}}, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = idx.Add([][]float32{{1, 2, 3}, {1, 2}}, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, idx.Len(), "failed add must not change the index")

	_, err = idx.Search([]float32{1, 2}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = idx.Search([]float32{1, 2, 3}, 0)
	assert.Error(t, err)
}

func TestFlatIndex_PersistAndReload(t *testing.T) {
	idx, path := openTemp(t, 2)
	_, err := idx.Add([][]float32{{1, 0}, {0, 1}}, []string{"a", "b"})
	require.NoError(t, err)

	reloaded, err := Open(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())

	positions, err := reloaded.Add([][]float32{{0.5, 0.5}}, []string{"c"})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, positions, "appending continues at the stored count")

	for p, id := range []string{"a", "b", "c"} {
		got, err := reloaded.Resolve(p)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}

	res, err := reloaded.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res[0].Position)
	assert.Equal(t, 0.0, res[0].Distance)
}

func TestFlatIndex_ReloadDimensionMismatch(t *testing.T) {
	idx, path := openTemp(t, 2)
	_, err := idx.Add([][]float32{{1, 0}}, []string{"a"})
	require.NoError(t, err)

	_, err = Open(path, 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFlatIndex_CorruptFile(t *testing.T) {
	idx, path := openTemp(t, 2)
	_, err := idx.Add([][]float32{{1, 0}}, []string{"a"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-2], 0o644))

	_, err = Open(path, 2)
	assert.ErrorIs(t, err, ErrCorruptIndex)

	require.NoError(t, os.WriteFile(path, []byte("garbage-garbage-garbage"), 0o644))
	_, err = Open(path, 2)
	assert.ErrorIs(t, err, ErrCorruptIndex)
}

func TestFlatIndex_MissingSidecarIsCorrupt(t *testing.T) {
	idx, path := openTemp(t, 2)
	_, err := idx.Add([][]float32{{1, 0}}, []string{"a"})
	require.NoError(t, err)
	require.NoError(t, os.Remove(sidecarPath(path)))

	_, err = Open(path, 2)
	assert.ErrorIs(t, err, ErrCorruptIndex)
}

func TestFlatIndex_InterruptedAddRollsBack(t *testing.T) {
	idx, path := openTemp(t, 2)
	_, err := idx.Add([][]float32{{1, 0}}, []string{"a"})
	require.NoError(t, err)

	// Simulate a crash after the sidecar was replaced but before the vector
	// file was.
	require.NoError(t, os.WriteFile(sidecarPath(path), []byte(`["a","b","c"]`), 0o644))

	reloaded, err := Open(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
	_, err = reloaded.Resolve(1)
	assert.ErrorIs(t, err, ErrUnknownPosition)

	positions, err := reloaded.Add([][]float32{{0, 1}}, []string{"d"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, positions)
	got, err := reloaded.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, "d", got)
}

func TestFlatIndex_ConcurrentAddsDoNotInterleave(t *testing.T) {
	idx, path := openTemp(t, 1)

	const writers, perWriter = 8, 5
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			vecs := make([][]float32, perWriter)
			ids := make([]string, perWriter)
			for i := range vecs {
				vecs[i] = []float32{float32(w)}
				ids[i] = fmt.Sprintf("w%d_%d", w, i)
			}
			positions, err := idx.Add(vecs, ids)
			assert.NoError(t, err)
			for i := 1; i < len(positions); i++ {
				assert.Equal(t, positions[i-1]+1, positions[i], "a single add gets contiguous positions")
			}
		}(w)
	}

	// readers run alongside the writers and must only see whole adds
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				assert.Zero(t, idx.Len()%perWriter)
				_, err := idx.Search([]float32{0}, 3)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, writers*perWriter, idx.Len())

	reloaded, err := Open(path, 1)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, reloaded.Len())
	for p := 0; p < reloaded.Len(); p++ {
		want, err := idx.Resolve(p)
		require.NoError(t, err)
		got, err := reloaded.Resolve(p)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(0))
	assert.Equal(t, 0.5, Similarity(1))

	distances := []float64{0, 0.1, 0.5, 1, 2, 10, 1000}
	for i := 1; i < len(distances); i++ {
		assert.Greater(t, Similarity(distances[i-1]), Similarity(distances[i]))
		assert.Greater(t, Similarity(distances[i]), 0.0)
	}
}
