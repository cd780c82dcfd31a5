package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"course-rag/internal/pkg/pdfextract"
)

// SourceFile is one raw course document read from disk.
type SourceFile struct {
	Path    string
	Content string
}

var supportedExtensions = map[string]bool{
	".txt": true,
	".pdf": true,
}

// Supported reports whether a file name has a loadable extension.
func Supported(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// ListFolder returns the supported course files of dir in name order.
func ListFolder(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read docs folder failed: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile loads a course document, extracting plain text from PDFs.
func ReadFile(path string) (SourceFile, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		f, err := os.Open(path)
		if err != nil {
			return SourceFile{}, fmt.Errorf("open %s failed: %w", path, err)
		}
		defer f.Close()
		text, err := pdfextract.ExtractText(f)
		if err != nil {
			return SourceFile{}, fmt.Errorf("extract pdf %s failed: %w", path, err)
		}
		return SourceFile{Path: path, Content: text}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return SourceFile{}, fmt.Errorf("read %s failed: %w", path, err)
	}
	return SourceFile{Path: path, Content: string(raw)}, nil
}
