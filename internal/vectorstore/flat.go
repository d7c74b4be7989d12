package vectorstore

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

const (
	fileMagic   = "NIVX"
	fileVersion = uint32(1)
	headerSize  = 4 + 4 + 4 + 8 // magic, version, dimension, count
)

// snapshot is never mutated after it is published.
type snapshot struct {
	vectors [][]float32
	ids     []string
}

// FlatIndex is an exact L2 index over an append-only list of vectors,
// persisted write-through to a vector file plus a chunk-id sidecar.
type FlatIndex struct {
	path string
	dim  int

	writeMu sync.Mutex // serialises Add

	mu   sync.RWMutex
	snap *snapshot
}

var _ Index = (*FlatIndex)(nil)

// Open loads the index at path, or starts an empty one if no vector file
// exists yet. The id sidecar lives next to it at path + ".ids.json".
func Open(path string, dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dim)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create index dir: %v", ErrIndexFault, err)
	}

	idx := &FlatIndex{path: path, dim: dim}

	vectors, err := readVectors(path, dim)
	if err != nil {
		return nil, err
	}
	ids, err := readIDs(sidecarPath(path))
	if err != nil {
		return nil, err
	}

	switch {
	case len(ids) < len(vectors):
		return nil, fmt.Errorf("%w: %d vectors but only %d chunk ids", ErrCorruptIndex, len(vectors), len(ids))
	case len(ids) > len(vectors):
		// The sidecar is replaced before the vector file, so extra ids belong
		// to an add that never completed.
		slog.Warn("discarding uncommitted index entries",
			"path", path,
			"vectors", len(vectors),
			"ids", len(ids),
		)
		ids = ids[:len(vectors)]
	}

	idx.snap = &snapshot{vectors: vectors, ids: ids}
	slog.Info("vector index opened", "path", path, "dimension", dim, "count", len(vectors))
	return idx, nil
}

func sidecarPath(path string) string {
	return path + ".ids.json"
}

func (x *FlatIndex) Path() string   { return x.path }
func (x *FlatIndex) Dimension() int { return x.dim }

func (x *FlatIndex) Len() int {
	return len(x.current().vectors)
}

func (x *FlatIndex) current() *snapshot {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.snap
}

// Add appends vectors at the current count and returns their positions. The
// index is persisted before Add returns; on any error the index is unchanged.
func (x *FlatIndex) Add(vectors [][]float32, ids []string) ([]int, error) {
	if len(vectors) != len(ids) {
		return nil, fmt.Errorf("%w: %d vectors, %d ids", ErrLengthMismatch, len(vectors), len(ids))
	}
	for i, v := range vectors {
		if len(v) != x.dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, index has %d", ErrDimensionMismatch, i, len(v), x.dim)
		}
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	old := x.current()
	start := len(old.vectors)

	next := &snapshot{
		vectors: make([][]float32, 0, start+len(vectors)),
		ids:     make([]string, 0, start+len(ids)),
	}
	next.vectors = append(next.vectors, old.vectors...)
	next.ids = append(next.ids, old.ids...)
	for i, v := range vectors {
		next.vectors = append(next.vectors, slices.Clone(v))
		next.ids = append(next.ids, ids[i])
	}

	if err := x.persist(next); err != nil {
		return nil, err
	}

	x.mu.Lock()
	x.snap = next
	x.mu.Unlock()

	positions := make([]int, len(vectors))
	for i := range positions {
		positions[i] = start + i
	}

	slog.Info("added vectors to index", "count", len(vectors), "total", len(next.vectors))
	return positions, nil
}

// Search returns up to topK positions ordered by ascending Euclidean
// distance. Equal distances are ordered by position.
func (x *FlatIndex) Search(query []float32, topK int) ([]Neighbor, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("search: top_k must be positive, got %d", topK)
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrDimensionMismatch, len(query), x.dim)
	}

	snap := x.current()
	if len(snap.vectors) == 0 {
		return []Neighbor{}, nil
	}

	neighbors := make([]Neighbor, len(snap.vectors))
	for i, v := range snap.vectors {
		neighbors[i] = Neighbor{Position: i, Distance: euclidean(query, v)}
	}

	slices.SortFunc(neighbors, func(a, b Neighbor) int {
		if a.Distance < b.Distance {
			return -1
		}
		if a.Distance > b.Distance {
			return 1
		}
		return a.Position - b.Position
	})

	if topK < len(neighbors) {
		neighbors = neighbors[:topK]
	}
	return neighbors, nil
}

// Resolve maps a position back to the chunk id it was added with.
func (x *FlatIndex) Resolve(position int) (string, error) {
	snap := x.current()
	if position < 0 || position >= len(snap.ids) {
		return "", fmt.Errorf("%w: %d", ErrUnknownPosition, position)
	}
	return snap.ids[position], nil
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func (x *FlatIndex) persist(s *snapshot) error {
	idsData, err := json.Marshal(s.ids)
	if err != nil {
		return fmt.Errorf("%w: marshal chunk ids: %v", ErrIndexFault, err)
	}
	if err := writeAtomic(sidecarPath(x.path), func(w io.Writer) error {
		_, err := w.Write(idsData)
		return err
	}); err != nil {
		return fmt.Errorf("%w: write chunk ids: %v", ErrIndexFault, err)
	}

	if err := writeAtomic(x.path, func(w io.Writer) error {
		return encodeVectors(w, x.dim, s.vectors)
	}); err != nil {
		return fmt.Errorf("%w: write vectors: %v", ErrIndexFault, err)
	}
	return nil
}

// writeAtomic writes to a temp file in the target directory and renames it
// over path, so readers of path see either the old or the new contents.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func encodeVectors(w io.Writer, dim int, vectors [][]float32) error {
	header := make([]byte, headerSize)
	copy(header[0:4], fileMagic)
	binary.LittleEndian.PutUint32(header[4:8], fileVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(dim))
	binary.LittleEndian.PutUint64(header[12:20], uint64(len(vectors)))
	if _, err := w.Write(header); err != nil {
		return err
	}

	buf := make([]byte, 4*dim)
	for _, v := range vectors {
		for i, f := range v {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func readVectors(path string, dim int) ([][]float32, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open vectors: %v", ErrIndexFault, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat vectors: %v", ErrIndexFault, err)
	}

	r := bufio.NewReader(f)
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorruptIndex, err)
	}
	if string(header[0:4]) != fileMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, header[0:4])
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, v)
	}
	storedDim := int(binary.LittleEndian.Uint32(header[8:12]))
	if storedDim != dim {
		return nil, fmt.Errorf("%w: index file has dimension %d, expected %d", ErrDimensionMismatch, storedDim, dim)
	}
	count := binary.LittleEndian.Uint64(header[12:20])

	if want := int64(headerSize) + int64(count)*int64(4*dim); info.Size() != want {
		return nil, fmt.Errorf("%w: file size %d, expected %d for %d vectors", ErrCorruptIndex, info.Size(), want, count)
	}

	vectors := make([][]float32, count)
	buf := make([]byte, 4*dim)
	for i := range vectors {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: read vector %d: %v", ErrCorruptIndex, i, err)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		vectors[i] = v
	}
	return vectors, nil
}

func readIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read chunk ids: %v", ErrIndexFault, err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: decode chunk ids: %v", ErrCorruptIndex, err)
	}
	return ids, nil
}
