package textextract

import (
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrUnsupported = errors.New("unsupported file type")

// Document is the plain text of a file plus a title guessed from it.
type Document struct {
	Title   string
	Content string
	Pages   int
	Format  string
}

// Supported reports whether Extract can read files with this name.
func Supported(name string) bool {
	_, ok := formats[strings.ToLower(filepath.Ext(name))]
	return ok
}

var formats = map[string]func(io.ReaderAt, int64) (*Document, error){
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".txt":  extractPlain("txt"),
	".md":   extractPlain("md"),
}

// Extract reads the text of a file whose type is taken from name's
// extension.
func Extract(r io.ReaderAt, size int64, name string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(name))
	extract, ok := formats[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	doc, err := extract(r, size)
	if err != nil {
		return nil, err
	}
	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	return doc, nil
}

func extractPDF(r io.ReaderAt, size int64) (*Document, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var sb strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	content := strings.TrimSpace(sb.String())
	return &Document{Title: firstLine(content), Content: content, Pages: pages, Format: "pdf"}, nil
}

func extractDOCX(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()

		raw, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		content := stripXMLTags(string(raw))
		return &Document{Content: content, Pages: 1, Format: "docx"}, nil
	}
	return nil, fmt.Errorf("open DOCX: word/document.xml not found")
}

func extractPlain(format string) func(io.ReaderAt, int64) (*Document, error) {
	return func(r io.ReaderAt, size int64) (*Document, error) {
		raw, err := io.ReadAll(io.NewSectionReader(r, 0, size))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", format, err)
		}
		content := strings.TrimSpace(string(raw))

		title := firstLine(content)
		if format == "md" && strings.HasPrefix(title, "#") {
			title = strings.TrimSpace(strings.TrimLeft(title, "#"))
		}
		return &Document{Title: title, Content: content, Pages: 1, Format: format}, nil
	}
}

// firstLine returns the first non-empty line if it is short enough to be a
// heading.
func firstLine(content string) string {
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if len([]rune(line)) > 200 {
			return ""
		}
		return line
	}
	return ""
}

func stripXMLTags(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			sb.WriteRune(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
