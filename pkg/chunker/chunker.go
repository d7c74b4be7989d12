package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOptions is returned when the window size or overlap cannot
// produce forward progress.
var ErrInvalidOptions = errors.New("invalid chunk options")

type Options struct {
	Size    int // window size in whitespace-delimited tokens
	Overlap int // tokens shared between consecutive windows
}

// TextChunk is one window of a chunked text.
type TextChunk struct {
	ID    string
	Index int
	Text  string
}

func DefaultOptions() Options {
	return Options{
		Size:    400,
		Overlap: 50,
	}
}

func (o Options) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidOptions, o.Size)
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidOptions, o.Overlap, o.Size)
	}
	return nil
}

// Step is the number of tokens the window start advances per chunk.
func (o Options) Step() int {
	return o.Size - o.Overlap
}

// ChunkID formats the identifier of the i-th chunk emitted for prefix.
func ChunkID(prefix string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", prefix, i)
}

// Chunk splits text into overlapping word windows. The last window may be
// shorter than opts.Size. Empty or whitespace-only text yields no chunks.
func Chunk(text, idPrefix string, opts Options) ([]TextChunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := opts.Step()
	chunks := make([]TextChunk, 0, Count(len(words), opts))
	for start, idx := 0, 0; start < len(words); start, idx = start+step, idx+1 {
		end := start + opts.Size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, TextChunk{
			ID:    ChunkID(idPrefix, idx),
			Index: idx,
			Text:  strings.Join(words[start:end], " "),
		})
	}

	return chunks, nil
}

// Count returns how many chunks Chunk emits for n tokens.
func Count(n int, opts Options) int {
	if n <= 0 {
		return 0
	}
	step := opts.Step()
	if step <= 0 {
		return 0
	}
	return (n + step - 1) / step
}
