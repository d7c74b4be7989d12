package vectorstore

import "errors"

var (
	// ErrDimensionMismatch is a configuration fault: a vector or a persisted
	// index does not have the dimension the index was constructed with.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrLengthMismatch indicates vectors and ids of different lengths.
	ErrLengthMismatch = errors.New("vectors and ids length mismatch")

	// ErrUnknownPosition indicates a position that was never assigned.
	ErrUnknownPosition = errors.New("unknown index position")

	// ErrCorruptIndex indicates a persisted index that cannot be trusted.
	ErrCorruptIndex = errors.New("corrupt vector index")

	// ErrIndexFault wraps I/O failures while persisting or loading.
	ErrIndexFault = errors.New("vector index fault")
)

// Neighbor is a single search hit: a position and its Euclidean distance to
// the query.
type Neighbor struct {
	Position int
	Distance float64
}

// Index is an append-only vector index with exact nearest-neighbour search.
type Index interface {
	Add(vectors [][]float32, ids []string) ([]int, error)
	Search(query []float32, topK int) ([]Neighbor, error)
	Resolve(position int) (string, error)
	Len() int
	Dimension() int
}

// Similarity maps a distance in [0, inf) to (0, 1]. It is strictly
// decreasing, so ranking by similarity equals ranking by distance.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}
