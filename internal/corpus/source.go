package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultExtensions are the file extensions a DirSource reads when none are
// configured.
var DefaultExtensions = []string{".md", ".markdown", ".txt"}

// DirSource reads every matching file in one directory (not recursively),
// in filename order.
type DirSource struct {
	dir        string
	extensions map[string]struct{}
	logger     *slog.Logger
}

// NewDirSource creates a DirSource. Extensions are matched case-insensitively
// and may be given with or without the leading dot.
func NewDirSource(dir string, extensions []string) *DirSource {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	return &DirSource{
		dir:        dir,
		extensions: exts,
		logger:     slog.Default().With("component", "dir-source", "dir", dir),
	}
}

func (s *DirSource) Name() string { return "dir:" + s.dir }

// Dir returns the directory this source reads.
func (s *DirSource) Dir() string { return s.dir }

// Load reads the directory. An unreadable directory is an error; an
// unreadable file is logged and skipped.
func (s *DirSource) Load(ctx context.Context) ([]RawDocument, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !s.Matches(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	docs := make([]RawDocument, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable file", "filename", name, "error", err)
			continue
		}
		docs = append(docs, RawDocument{Filename: name, Content: string(data)})
	}
	return docs, nil
}

// Matches reports whether filename has one of the configured extensions.
func (s *DirSource) Matches(filename string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// MemorySource serves a fixed, replaceable document set. It backs tests and
// the CLI's inline corpus.
type MemorySource struct {
	mu   sync.RWMutex
	docs []RawDocument
	err  error
}

// NewMemorySource creates a MemorySource holding docs.
func NewMemorySource(docs ...RawDocument) *MemorySource {
	s := &MemorySource{}
	s.Set(docs...)
	return s
}

func (s *MemorySource) Name() string { return "memory" }

func (s *MemorySource) Load(ctx context.Context) ([]RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]RawDocument, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

// Set replaces the document set and clears any injected failure.
func (s *MemorySource) Set(docs ...RawDocument) {
	cp := make([]RawDocument, len(docs))
	copy(cp, docs)
	s.mu.Lock()
	s.docs = cp
	s.err = nil
	s.mu.Unlock()
}

// Fail makes every subsequent Load return err until the next Set.
func (s *MemorySource) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
