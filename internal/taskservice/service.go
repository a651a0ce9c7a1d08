// Package taskservice loads, queries and edits task files through a storage
// provider, keeping the optional task index in step with every write.
package taskservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/starford/mdql/internal/apperr"
	"github.com/starford/mdql/internal/checksum"
	"github.com/starford/mdql/internal/index"
	"github.com/starford/mdql/internal/models"
	"github.com/starford/mdql/internal/parser"
	"github.com/starford/mdql/internal/query"
	"github.com/starford/mdql/internal/report"
	"github.com/starford/mdql/internal/storage"
	"github.com/starford/mdql/internal/writer"
)

// File is a parsed task file together with the checksum of its bytes.
type File struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	*models.Document
}

// QueryResult is the outcome of a filter or mini-language query.
type QueryResult struct {
	Path     string           `json:"path"`
	Checksum string           `json:"checksum"`
	Columns  []string         `json:"columns,omitempty"`
	Rows     [][]string       `json:"rows,omitempty"`
	Tasks    []*models.Task   `json:"tasks"`
	Total    int              `json:"total"`
	Doc      *models.Document `json:"-"`
}

// ChangeFunc is called after the service wrote a file.
type ChangeFunc func(path string)

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	idx      index.TaskIndex // nil when running without an index
	logger   *slog.Logger
	onChange ChangeFunc

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a task service. idx may be nil.
func NewService(store storage.Provider, idx index.TaskIndex, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		idx:    idx,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// OnChange registers fn to be called after every successful write.
func (s *Service) OnChange(fn ChangeFunc) {
	s.onChange = fn
}

// Load reads and parses the file at path.
func (s *Service) Load(_ context.Context, path string) (*File, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return newFile(path, data), nil
}

// Query runs loosely typed predicates against the file at path. Unknown
// predicate keys are rejected.
func (s *Service) Query(ctx context.Context, path string, predicates map[string]any) (*QueryResult, error) {
	f, err := query.ParseFilter(predicates)
	if err != nil {
		return nil, err
	}
	file, err := s.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	tasks := query.Run(file.Document, f)
	return &QueryResult{
		Path:     path,
		Checksum: file.Checksum,
		Tasks:    tasks,
		Total:    len(tasks),
		Doc:      file.Document,
	}, nil
}

// RunMQL compiles and runs a mini-language query. path overrides the FROM
// clause when set. limit <= 0 returns every match.
func (s *Service) RunMQL(ctx context.Context, path, q string, limit int) (*QueryResult, error) {
	c, err := query.Compile(q)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = c.Source
	}
	file, err := s.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	tasks := query.Run(file.Document, c.Filter)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return &QueryResult{
		Path:     path,
		Checksum: file.Checksum,
		Columns:  c.Columns,
		Rows:     query.Rows(file.Document, tasks, c.Columns),
		Tasks:    tasks,
		Total:    len(tasks),
		Doc:      file.Document,
	}, nil
}

// Mutate applies m to the file at path and writes the result back. A
// non-empty ifMatch (bare checksum or ETag) must match the current bytes. The
// returned file is reparsed from the written bytes, so inserted tasks are
// visible with their new line numbers.
func (s *Service) Mutate(ctx context.Context, path string, m writer.Mutation, ifMatch string) (*File, error) {
	unlock := s.lock(path)
	defer unlock()

	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(data, ifMatch) {
		return nil, apperr.ErrConflict
	}

	doc := parser.Parse(data)
	doc.Path = path
	if _, err := writer.Apply(doc, m); err != nil {
		return nil, err
	}
	out := writer.Serialize(doc)
	if bytes.Equal(out, data) {
		return newFile(path, data), nil
	}

	if err := s.store.Write(path, out); err != nil {
		return nil, err
	}
	s.logger.Info("task file updated",
		slog.String("path", path),
		slog.String("op", string(m.Op)),
		slog.Int("line", m.Line))
	s.reindex(ctx, path, out)
	if s.onChange != nil {
		s.onChange(path)
	}
	return newFile(path, out), nil
}

// Summary returns per-section completion counts for the file at path.
func (s *Service) Summary(ctx context.Context, path string) (*report.Summary, error) {
	file, err := s.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return report.Summarize(file.Document), nil
}

// ListFiles returns every task file in the vault. Without an index the
// files are read and counted on the fly.
func (s *Service) ListFiles(_ context.Context) ([]index.FileRow, error) {
	if s.idx != nil {
		return s.idx.ListFiles()
	}
	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	out := make([]index.FileRow, 0, len(metas))
	for _, m := range metas {
		data, err := s.store.Read(m.Path)
		if err != nil {
			return nil, err
		}
		row, _ := index.RowsFor(m.Path, m.Checksum, parser.Parse(data))
		row.UpdatedAt = m.UpdatedAt
		out = append(out, row)
	}
	return out, nil
}

// Search delegates full-text search over every task in the vault to the index.
func (s *Service) Search(_ context.Context, q string, limit int) ([]index.SearchResult, error) {
	if s.idx == nil {
		return nil, apperr.ErrNoIndex
	}
	return s.idx.Search(q, limit)
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
		}
		return nil, err
	}
	return data, nil
}

// reindex refreshes the index entry for path. A failure only leaves the
// index stale until the next sync, so it is logged rather than returned.
func (s *Service) reindex(_ context.Context, path string, data []byte) {
	if s.idx == nil {
		return
	}
	if err := index.IndexFile(s.idx, path, data); err != nil {
		s.logger.Warn("reindex failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// lock serialises writers of a single path.
func (s *Service) lock(path string) func() {
	s.mu.Lock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func newFile(path string, data []byte) *File {
	doc := parser.Parse(data)
	doc.Path = path
	if doc.Tasks == nil {
		doc.Tasks = []models.Task{}
	}
	return &File{Path: path, Checksum: checksum.Sum(data), Document: doc}
}
