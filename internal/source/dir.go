package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/newsintel/internal/models"
	"github.com/nikhilbhutani/newsintel/pkg/textextract"
)

// Dir loads supported files (.txt, .md, .pdf, .docx) under a directory. Each
// Load returns only files that are new or whose content changed since they
// were last acknowledged.
type Dir struct {
	root     string
	category string

	mu     sync.Mutex
	hashes map[string]string
}

func NewDir(root, category string) *Dir {
	return &Dir{root: root, category: category, hashes: make(map[string]string)}
}

func (d *Dir) Name() string { return "dir" }

// Ack records the file versions behind docs as ingested.
func (d *Dir) Ack(docs []models.RawDocument) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, doc := range docs {
		if path, hash := doc.Metadata["path"], doc.Metadata["sha256"]; path != "" && hash != "" {
			d.hashes[path] = hash
		}
	}
}

func (d *Dir) Load(ctx context.Context) ([]models.RawDocument, error) {
	var paths []string
	err := filepath.WalkDir(d.root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() && textextract.Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", d.root, err)
	}
	sort.Strings(paths)
	return d.LoadFiles(ctx, paths)
}

// LoadFiles reads the given paths. Unreadable or unsupported files are logged
// and skipped.
func (d *Dir) LoadFiles(ctx context.Context, paths []string) ([]models.RawDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var docs []models.RawDocument
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable file", "path", path, "error", err)
			continue
		}
		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])
		if d.hashes[path] == hash {
			continue
		}

		doc, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), path)
		if err != nil {
			slog.Warn("skipping file", "path", path, "error", err)
			continue
		}

		var published *time.Time
		if info, err := os.Stat(path); err == nil {
			t := info.ModTime().UTC()
			published = &t
		}

		docs = append(docs, models.RawDocument{
			// content-addressed so an edited file gets fresh chunk ids
			ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path+"#"+hash)).String(),
			Title:       doc.Title,
			Content:     doc.Content,
			Source:      filepath.Base(path),
			Category:    d.category,
			PublishedAt: published,
			Metadata: map[string]string{
				"path":   path,
				"format": doc.Format,
				"sha256": hash,
			},
		})
	}
	return docs, nil
}
