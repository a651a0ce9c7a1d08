package storage

import (
	"bytes"
	"cmp"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/starford/mdql/internal/apperr"
	"github.com/starford/mdql/internal/checksum"
	"github.com/starford/mdql/internal/models"
)

// TaskFileExts are the extensions List and the index treat as task files.
var TaskFileExts = []string{".md", ".markdown"}

// IsTaskFile reports whether name has a task file extension.
func IsTaskFile(name string) bool {
	return slices.Contains(TaskFileExts, strings.ToLower(path.Ext(name)))
}

// IsHidden reports whether a directory entry is hidden (.git, .mdql, ...).
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// FS implements Provider on a local directory.
type FS struct {
	root string // absolute
}

// NewFS creates a provider rooted at the existing directory root.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string {
	return f.root
}

// resolve maps a slash-separated vault path to an absolute one. Paths that
// are absolute or climb out of the vault are rejected with
// apperr.ErrInvalidPath.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" || rel == "." {
		return f.root, nil
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("storage: %w: %s escapes the vault", apperr.ErrInvalidPath, rel)
	}
	return filepath.Join(f.root, local), nil
}

// List returns every task file under dir, sorted by path. Hidden directories
// are skipped.
func (f *FS) List(dir string) ([]models.FileMetadata, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	out := make([]models.FileMetadata, 0)
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != base && IsHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsTaskFile(d.Name()) {
			return nil
		}
		meta, err := f.stat(p)
		if err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	slices.SortFunc(out, func(a, b models.FileMetadata) int { return cmp.Compare(a.Path, b.Path) })
	return out, nil
}

func (f *FS) stat(abs string) (models.FileMetadata, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return models.FileMetadata{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return models.FileMetadata{}, err
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return models.FileMetadata{}, err
	}
	return models.FileMetadata{
		Path:      filepath.ToSlash(rel),
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(rel string) ([]byte, error) {
	abs, err := f.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

// Write replaces the file through a temp file and rename, so readers and
// the watcher never see a partial write. An existing file keeps its mode.
func (f *FS) Write(rel string, content []byte) error {
	abs, err := f.resolve(rel)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: %w: empty file path", apperr.ErrInvalidPath)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(abs); statErr == nil {
		mode = info.Mode().Perm()
	}
	if err := atomic.WriteFile(abs, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("storage: write %s: %w", rel, err)
	}
	if err := os.Chmod(abs, mode); err != nil {
		return fmt.Errorf("storage: chmod %s: %w", rel, err)
	}
	return nil
}
