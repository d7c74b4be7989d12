package source

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/newsintel/internal/models"
)

var ErrUnknownSource = errors.New("unknown source")

// Source produces raw documents for ingestion.
type Source interface {
	Load(ctx context.Context) ([]models.RawDocument, error)
	Name() string
}

// Acker is implemented by sources that remember what they already returned.
// Documents are only remembered once acknowledged, so a failed run sees them
// again on the next Load.
type Acker interface {
	Ack(docs []models.RawDocument)
}

// Static serves a fixed set of documents.
type Static struct {
	name string
	docs []models.RawDocument
}

func NewStatic(name string, docs []models.RawDocument) *Static {
	return &Static{name: name, docs: docs}
}

func (s *Static) Name() string { return s.name }

func (s *Static) Load(context.Context) ([]models.RawDocument, error) {
	return slices.Clone(s.docs), nil
}

// Registry resolves sources by name for scheduled and on-demand ingestion.
type Registry struct {
	sources map[string]Source
}

func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		r.sources[s.Name()] = s
	}
	return r
}

func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSource, name)
	}
	return s, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// itemID derives a stable id for a feed item, so an unchanged item keeps its
// id across fetches and an edited one gets a new id.
func itemID(link, title, content string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(link+"\n"+title+"\n"+content)).String()
}

// seenSet drops documents that an earlier run of the same source already
// ingested.
type seenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// filter returns the documents not yet marked, without duplicates.
func (s *seenSet) filter(docs []models.RawDocument) []models.RawDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(docs))
	out := docs[:0]
	for _, d := range docs {
		if _, ok := s.ids[d.ID]; ok {
			continue
		}
		if _, ok := batch[d.ID]; ok {
			continue
		}
		batch[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}

func (s *seenSet) mark(docs []models.RawDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		s.ids = make(map[string]struct{}, len(docs))
	}
	for _, d := range docs {
		s.ids[d.ID] = struct{}{}
	}
}

var (
	_ Acker = (*NewsAPI)(nil)
	_ Acker = (*RSS)(nil)
	_ Acker = (*Dir)(nil)
)
